package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	users := r.Group("/users/:user")
	{
		users.GET("/feed", handler.GetFeed)
		users.GET("/sources", handler.ListSources)
		users.GET("/preferences", handler.GetPreferences)
	}

	// Mutating routes require the API key when one is configured.
	guarded := r.Group("/", apiKeyMiddleware(apiAccessKey))
	{
		guarded.POST("/users/:user/sources", handler.AddSource)
		guarded.PATCH("/users/:user/sources/:id", handler.PatchSource)
		guarded.DELETE("/users/:user/sources/:id", handler.DeleteSource)
		guarded.POST("/users/:user/interactions", handler.AddInteraction)
		guarded.PUT("/users/:user/preferences", handler.PutPreferences)
		guarded.POST("/fetch", handler.TriggerFetchAll)
		guarded.POST("/sources/:id/fetch", handler.TriggerFetchSource)
		guarded.POST("/backlog/topup", handler.TriggerBacklogTopUp)
	}
}

func apiKeyMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiAccessKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiAccessKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Next()
	}
}
