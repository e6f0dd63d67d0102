package calls

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callvox/backend/internal/middleware"
	"github.com/callvox/backend/internal/models"
	"github.com/callvox/backend/internal/telephony"
	"github.com/callvox/backend/pkg/response"
)

// scheduleTimeLayout matches the zoneless value an HTML datetime-local input produces.
const scheduleTimeLayout = "2006-01-02T15:04"

var phoneRE = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// Store is the persistence surface the handler needs.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, name, phone string, scheduledAt time.Time) (*models.ScheduledCall, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ScheduledCall, error)
}

// Dialer places an outbound call that fetches instructions from callbackURL.
type Dialer interface {
	PlaceCall(ctx context.Context, to, from, callbackURL string) error
}

// ScheduleRequest is the body for POST /api/schedule-call. Time is a zoneless
// local timestamp interpreted in the configured schedule timezone.
type ScheduleRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone" binding:"required"`
	Time  string `json:"time" binding:"required"`
}

// DirectCallRequest is the body for POST /api/direct-call.
type DirectCallRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// Handler handles scheduled call HTTP endpoints.
type Handler struct {
	store      Store
	dialer     Dialer
	loc        *time.Location
	baseURL    string
	fromNumber string
	logger     *zap.Logger
}

// NewHandler creates a calls handler. loc is the timezone schedule timestamps
// are interpreted in before UTC normalization.
func NewHandler(store Store, dialer Dialer, loc *time.Location, baseURL, fromNumber string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, dialer: dialer, loc: loc, baseURL: baseURL, fromNumber: fromNumber, logger: logger}
}

// Schedule handles POST /api/schedule-call.
func (h *Handler) Schedule(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if !ValidPhone(req.Phone) {
		response.BadRequest(c, "invalid phone number format, use E.164 (e.g. +14155552671)")
		return
	}

	scheduledAt, err := ParseScheduleTime(req.Time, h.loc)
	if err != nil {
		response.BadRequest(c, "invalid time format")
		return
	}

	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	call, err := h.store.Create(c.Request.Context(), userID, req.Name, req.Phone, scheduledAt)
	if err != nil {
		h.logger.Error("schedule call", zap.Error(err))
		response.Internal(c, "failed to schedule call")
		return
	}
	response.Created(c, call)
}

// List handles GET /api/scheduled-calls.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.store.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list calls", zap.Error(err))
		response.Internal(c, "failed to fetch calls")
		return
	}
	response.OK(c, gin.H{"calls": list})
}

// DirectCall handles POST /api/direct-call: dial the number immediately with the
// questionnaire webhook as the call's instruction URL.
func (h *Handler) DirectCall(c *gin.Context) {
	var req DirectCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	callbackURL := h.baseURL + "/twiml/ask?questionIndex=0"
	if err := h.dialer.PlaceCall(c.Request.Context(), req.Phone, h.fromNumber, callbackURL); err != nil {
		if errors.Is(err, telephony.ErrInvalidNumber) {
			response.BadRequest(c, "invalid phone number format, use E.164 (e.g. +14155552671)")
			return
		}
		h.logger.Error("direct call", zap.Error(err), zap.String("phone", req.Phone))
		response.Internal(c, "failed to initiate call")
		return
	}
	response.OK(c, gin.H{"message": "call initiated"})
}

// ValidPhone reports whether phone is a well-formed E.164 number.
func ValidPhone(phone string) bool {
	return phoneRE.MatchString(phone)
}

// ParseScheduleTime parses a schedule timestamp and normalizes it to UTC.
// RFC3339 values keep their own offset; zoneless datetime-local values are
// interpreted in loc.
func ParseScheduleTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(scheduleTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
