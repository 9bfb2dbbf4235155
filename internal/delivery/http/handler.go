package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mealsmith/backend/internal/domain"
	"github.com/mealsmith/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pipeline *usecase.Pipeline
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(pipeline *usecase.Pipeline, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{pipeline: pipeline, logger: logger}
}

// ComputePlanRequest is the compute endpoint payload.
type ComputePlanRequest struct {
	Meals   []domain.RawMeal    `json:"meals" binding:"required"`
	Targets domain.MacroTargets `json:"targets"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "mealsmith-backend",
		"version": "1.0.0",
	})
}

// ComputePlan runs the consistency pipeline over a generated meal plan.
// HTTP callers have no regeneration callback; a schema failure surfaces as
// 422 and the caller resubmits with fresh generator output.
func (h *Handler) ComputePlan(c *gin.Context) {
	var req ComputePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.pipeline.Execute(c.Request.Context(), usecase.ExecuteRequest{
		RawMeals: req.Meals,
		Targets:  req.Targets,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeError maps pipeline failures to HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	var structural *domain.StructuralError
	var pipeErr *domain.PipelineError

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &structural):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrValidationExhausted),
		errors.Is(err, domain.ErrResponseBlocked):
		status = http.StatusUnprocessableEntity
	}

	body := gin.H{"error": err.Error()}
	if errors.As(err, &pipeErr) {
		body["traceId"] = pipeErr.TraceID
		body["stage"] = pipeErr.Stage
		if len(pipeErr.Errs) > 0 {
			body["details"] = pipeErr.Errs
		}
	}

	h.logger.Warn("compute plan failed", zap.Int("status", status), zap.Error(err))
	c.JSON(status, body)
}
