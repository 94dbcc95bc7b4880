package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/subtide/subtide/app/adapters"
	"github.com/subtide/subtide/app/cfg"
	"github.com/subtide/subtide/app/database"
	"github.com/subtide/subtide/app/feedgen"
	"github.com/subtide/subtide/app/ingest"
	"github.com/subtide/subtide/app/tasks"
)

func NewHandler(sourceRepo database.SourceRepository, itemRepo database.ItemRepository,
	interactionRepo database.InteractionRepository, prefRepo database.PreferenceRepository,
	registry *adapters.Registry, generator *feedgen.Generator,
	orchestrator *ingest.Orchestrator, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sourceRepo:      sourceRepo,
		itemRepo:        itemRepo,
		interactionRepo: interactionRepo,
		prefRepo:        prefRepo,
		registry:        registry,
		generator:       generator,
		orchestrator:    orchestrator,
		scheduler:       scheduler,
	}
}

// GetFeed loads the user's sources, items, preferences, rules, and
// interaction log, then runs the composition pipeline over the snapshot.
func (h *Handler) GetFeed(c *gin.Context) {
	userID := c.Param("user")

	sources, err := h.sourceRepo.ListSourcesForUser(userID)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	sourceIDs := make([]string, 0, len(sources))
	for _, src := range sources {
		if !src.Muted {
			sourceIDs = append(sourceIDs, src.ID)
		}
	}

	items, err := h.itemRepo.ListItemsForSources(sourceIDs)
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	prefs, err := h.prefRepo.Get(userID)
	if err != nil {
		slog.Warn("Failed to load preferences, using defaults", "user", userID, "error", err)
		prefs = database.DefaultPreferences(userID)
	}

	rules, err := h.prefRepo.ListFilterRules(userID)
	if err != nil {
		slog.Warn("Failed to load filter rules, composing without them", "user", userID, "error", err)
		rules = nil
	}

	interactions, err := h.interactionRepo.ListForUser(userID)
	if err != nil {
		slog.Error("Database error", "operation", "list_interactions", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	feed := h.generator.Build(feedgen.Inputs{
		Sources:      sources,
		Items:        items,
		Preferences:  prefs,
		Rules:        rules,
		Interactions: interactions,
	})

	out := make([]gin.H, 0, len(feed))
	for _, fi := range feed {
		out = append(out, gin.H{
			"position":            fi.Position,
			"item_id":             fi.Item.ID,
			"title":               fi.Item.Title,
			"description":         fi.Item.Description,
			"url":                 fi.Item.URL,
			"thumbnail_url":       fi.Item.ThumbnailURL,
			"duration_seconds":    fi.Item.DurationSeconds,
			"published_at":        fi.Item.PublishedAt.Format(time.RFC3339),
			"source_display_name": fi.SourceDisplayName,
			"is_new":              fi.IsNew,
		})
	}

	c.JSON(http.StatusOK, gin.H{"user": userID, "count": len(out), "items": out})
}

func (h *Handler) ListSources(c *gin.Context) {
	userID := c.Param("user")

	sources, err := h.sourceRepo.ListSourcesForUser(userID)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]gin.H, 0, len(sources))
	for _, src := range sources {
		out = append(out, sourceJSON(&src))
	}

	c.JSON(http.StatusOK, gin.H{"sources": out})
}

// AddSource validates the user-supplied identifier through the source
// type's adapter and registers the resolved source.
func (h *Handler) AddSource(c *gin.Context) {
	userID := c.Param("user")

	var req addSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	adapter, err := h.registry.Lookup(database.SourceType(req.Type))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	validation, err := adapter.ValidateSource(c.Request.Context(), req.Identifier)
	if err != nil {
		slog.Error("Source validation failed", "identifier", req.Identifier, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "source validation failed"})
		return
	}

	if !validation.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validation.Message})
		return
	}

	if err := h.sourceRepo.EnsureUser(userID, userID); err != nil {
		slog.Error("Database error", "operation", "ensure_user", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	source := &database.Source{
		UserID:      userID,
		Type:        database.SourceType(req.Type),
		SourceID:    validation.ResolvedID,
		DisplayName: validation.DisplayName,
		AvatarURL:   validation.AvatarURL,
	}

	id, err := h.sourceRepo.RegisterSource(source)
	if err != nil {
		slog.Error("Database error", "operation", "register_source", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	registered, err := h.sourceRepo.GetSource(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source_row_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, sourceJSON(registered))
}

// PatchSource toggles the muted flag. Muting works regardless of the
// source's fetch status; a failed source remains fully manageable.
func (h *Handler) PatchSource(c *gin.Context) {
	var req patchSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sourceRepo.SetMuted(c.Param("id"), *req.Muted); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		slog.Error("Database error", "operation", "set_muted", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteSource(c *gin.Context) {
	if err := h.sourceRepo.RemoveSource(c.Param("id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		slog.Error("Database error", "operation", "remove_source", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) AddInteraction(c *gin.Context) {
	userID := c.Param("user")

	var req addInteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := database.InteractionKind(req.Kind)
	switch kind {
	case database.InteractionWatched, database.InteractionSaved, database.InteractionDismissed,
		database.InteractionNotNow, database.InteractionBlocked:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown interaction kind"})
		return
	}

	interaction := &database.Interaction{
		UserID:         userID,
		ItemID:         req.ItemID,
		Kind:           kind,
		WatchSeconds:   req.WatchSeconds,
		CompletionRate: req.CompletionRate,
		DismissReason:  req.DismissReason,
		Collection:     req.Collection,
	}

	if err := h.interactionRepo.Add(interaction); err != nil {
		slog.Error("Database error", "operation", "add_interaction", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": interaction.ID})
}

func (h *Handler) GetPreferences(c *gin.Context) {
	prefs, err := h.prefRepo.Get(c.Param("user"))
	if err != nil {
		slog.Error("Database error", "operation", "get_preferences", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, preferencesJSON(prefs))
}

func (h *Handler) PutPreferences(c *gin.Context) {
	userID := c.Param("user")

	var req putPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prefs, err := h.prefRepo.Get(userID)
	if err != nil {
		prefs = database.DefaultPreferences(userID)
	}
	prefs.UserID = userID

	if req.BacklogRatio != nil {
		prefs.BacklogRatio = *req.BacklogRatio
	}
	if req.MaxConsecutive != nil {
		prefs.MaxConsecutive = *req.MaxConsecutive
	}
	if req.MinDurationSeconds != nil {
		prefs.MinDurationSeconds = req.MinDurationSeconds
	}
	if req.MaxDurationSeconds != nil {
		prefs.MaxDurationSeconds = req.MaxDurationSeconds
	}
	if req.Theme != nil {
		prefs.Theme = *req.Theme
	}
	if req.Density != nil {
		prefs.Density = *req.Density
	}

	if err := h.sourceRepo.EnsureUser(userID, userID); err != nil {
		slog.Error("Database error", "operation", "ensure_user", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.prefRepo.Upsert(prefs); err != nil {
		slog.Error("Database error", "operation", "upsert_preferences", "user", userID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, preferencesJSON(prefs))
}

func (h *Handler) TriggerFetchAll(c *gin.Context) {
	if err := h.scheduler.EnqueueTask(tasks.NewFetchAllTask(h.orchestrator)); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handler) TriggerFetchSource(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.sourceRepo.GetSource(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		slog.Error("Database error", "operation", "get_source", "source_row_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.scheduler.EnqueueTask(tasks.NewFetchSourceTask(h.orchestrator, id)); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "source_row_id": id})
}

func (h *Handler) TriggerBacklogTopUp(c *gin.Context) {
	if err := h.scheduler.EnqueueTask(tasks.NewBacklogTopUpTask(h.orchestrator)); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if count, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{}

	if count, err := h.sourceRepo.GetSourceCount(); err == nil {
		stats["sources"] = count
	}
	if count, err := h.itemRepo.GetItemCount(); err == nil {
		stats["items"] = count
	}

	c.JSON(http.StatusOK, stats)
}

func sourceJSON(src *database.Source) gin.H {
	out := gin.H{
		"id":                  src.ID,
		"user_id":             src.UserID,
		"type":                string(src.Type),
		"source_id":           src.SourceID,
		"display_name":        src.DisplayName,
		"avatar_url":          src.AvatarURL,
		"muted":               src.Muted,
		"fetch_status":        string(src.FetchStatus),
		"fetch_error":         src.FetchError,
		"backlog_complete":    src.BacklogComplete,
		"backlog_video_count": src.BacklogVideoCount,
	}
	if src.LastFetchedAt != nil {
		out["last_fetched_at"] = src.LastFetchedAt.Format(time.RFC3339)
	}
	return out
}

func preferencesJSON(p *database.Preferences) gin.H {
	return gin.H{
		"user_id":              p.UserID,
		"backlog_ratio":        p.BacklogRatio,
		"max_consecutive":      p.MaxConsecutive,
		"min_duration_seconds": p.MinDurationSeconds,
		"max_duration_seconds": p.MaxDurationSeconds,
		"theme":                p.Theme,
		"density":              p.Density,
	}
}
