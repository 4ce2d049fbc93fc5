// Package api exposes the operational service surface: health, Prometheus
// metrics and a token-guarded manual batch trigger. The petitioner-facing
// web endpoints live in a separate system; nothing here is public.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/parastoo-62/petitions/internal/config"
	"github.com/parastoo-62/petitions/internal/pipeline"
	"github.com/parastoo-62/petitions/internal/tasks"
)

type processRequest struct {
	BatchSize int  `json:"batch_size"`
	Inline    bool `json:"inline"`
}

// SetupRouter configures the Gin engine for the service API.
func SetupRouter(cfg *config.Config, processor *pipeline.Processor, taskClient tasks.IAsynqClient) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guarded := r.Group("/", tokenAuth(cfg.ServiceApiToken))
	guarded.POST("/process", func(c *gin.Context) {
		var req processRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}
		if req.BatchSize < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batch_size must not be negative"})
			return
		}

		// Inline runs block the request until the batch finishes, which
		// is handy for smoke tests. The default hands off to the worker.
		if req.Inline {
			result := processor.ProcessSignatures(c.Request.Context(), "", pipeline.Options{
				BatchSize: req.BatchSize,
				WorkerID:  "api",
			})
			c.JSON(httpStatusFor(result.Status), result)
			return
		}

		info, err := tasks.EnqueueSignatureProcess(c.Request.Context(), taskClient,
			tasks.SignatureProcessPayload{BatchSize: req.BatchSize})
		if err != nil {
			log.WithError(err).Error("Failed to enqueue batch run")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue batch run"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
	})

	return r
}

func tokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func httpStatusFor(s pipeline.Status) int {
	switch s {
	case pipeline.StatusOK:
		return http.StatusOK
	case pipeline.StatusBadRequest:
		return http.StatusBadRequest
	case pipeline.StatusForbidden:
		return http.StatusForbidden
	case pipeline.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
