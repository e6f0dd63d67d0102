package responses

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/callvox/backend/internal/models"
	"github.com/callvox/backend/pkg/response"
)

// Lister is the read surface the handler needs.
type Lister interface {
	List(ctx context.Context) ([]models.CallResponse, error)
}

// Handler exposes collected questionnaire answers to admins.
type Handler struct {
	store  Lister
	logger *zap.Logger
}

// NewHandler creates a responses handler.
func NewHandler(store Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /api/responses (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list responses", zap.Error(err))
		response.Internal(c, "failed to list responses")
		return
	}
	response.OK(c, gin.H{"responses": list})
}
