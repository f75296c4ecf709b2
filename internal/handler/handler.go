package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DigiMedic/PillSee/internal/model"
)

const (
	serviceName    = "pillsee-api"
	serviceVersion = "1.0.0"
)

// Checker exposes the readiness of the retrieval backend.
type Checker interface {
	HealthCheck(ctx context.Context) error
	Stats(ctx context.Context) (map[string]interface{}, error)
}

type Handler struct {
	checker          Checker
	openAIConfigured bool
}

func NewHandler(checker Checker, openAIConfigured bool) *Handler {
	return &Handler{checker: checker, openAIConfigured: openAIConfigured}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	deps := map[string]string{}
	status := "healthy"

	if h.openAIConfigured {
		deps["openai"] = "configured"
	} else {
		deps["openai"] = "missing"
	}

	if h.checker != nil {
		if err := h.checker.HealthCheck(c.Request.Context()); err != nil {
			deps["database"] = "unavailable"
			status = "degraded"
		} else {
			deps["database"] = "ok"
		}
	}

	c.JSON(http.StatusOK, model.HealthResponse{
		Status:       status,
		Service:      serviceName,
		Version:      serviceVersion,
		Timestamp:    time.Now().UTC(),
		Dependencies: deps,
	})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.checker.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse("Statistiky databáze nejsou dostupné"))
		return
	}
	c.JSON(http.StatusOK, NewSuccessResponse(stats, ""))
}
