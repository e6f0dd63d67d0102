package questions

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/callvox/backend/pkg/response"
)

// Store is the persistence surface the handler needs.
type Store interface {
	Get(ctx context.Context) ([]string, error)
	Set(ctx context.Context, list []string) error
}

// ReplaceRequest is the body for POST /api/questions.
type ReplaceRequest struct {
	Questions []string `json:"questions"`
}

// Handler handles questionnaire HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// Get handles GET /api/questions.
func (h *Handler) Get(c *gin.Context) {
	list, err := h.store.Get(c.Request.Context())
	if err != nil {
		h.logger.Error("get questions", zap.Error(err))
		response.Internal(c, "failed to get questions")
		return
	}
	if list == nil {
		list = []string{}
	}
	response.OK(c, gin.H{"questions": list})
}

// Replace handles POST /api/questions: wholesale replacement of the set.
// An empty array is valid and turns every call into an immediate goodbye.
func (h *Handler) Replace(c *gin.Context) {
	var req ReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Questions == nil {
		response.BadRequest(c, "questions must be an array")
		return
	}
	if err := h.store.Set(c.Request.Context(), req.Questions); err != nil {
		h.logger.Error("set questions", zap.Error(err))
		response.Internal(c, "failed to save questions")
		return
	}
	response.OK(c, gin.H{"questions": req.Questions})
}
