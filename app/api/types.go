package api

import (
	"github.com/subtide/subtide/app/adapters"
	"github.com/subtide/subtide/app/database"
	"github.com/subtide/subtide/app/feedgen"
	"github.com/subtide/subtide/app/ingest"
	"github.com/subtide/subtide/app/tasks"
)

type Handler struct {
	sourceRepo      database.SourceRepository
	itemRepo        database.ItemRepository
	interactionRepo database.InteractionRepository
	prefRepo        database.PreferenceRepository
	registry        *adapters.Registry
	generator       *feedgen.Generator
	orchestrator    *ingest.Orchestrator
	scheduler       tasks.TaskSchedulerInterface
}

type addSourceRequest struct {
	Type       string `json:"type" binding:"required"`
	Identifier string `json:"identifier" binding:"required"`
}

type patchSourceRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

type addInteractionRequest struct {
	ItemID         string   `json:"item_id" binding:"required"`
	Kind           string   `json:"kind" binding:"required"`
	WatchSeconds   *int     `json:"watch_seconds"`
	CompletionRate *float64 `json:"completion_rate"`
	DismissReason  string   `json:"dismiss_reason"`
	Collection     string   `json:"collection"`
}

type putPreferencesRequest struct {
	BacklogRatio       *float64 `json:"backlog_ratio"`
	MaxConsecutive     *int     `json:"max_consecutive"`
	MinDurationSeconds *int     `json:"min_duration_seconds"`
	MaxDurationSeconds *int     `json:"max_duration_seconds"`
	Theme              *string  `json:"theme"`
	Density            *string  `json:"density"`
}
