package calls

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callvox/backend/internal/middleware"
	"github.com/callvox/backend/internal/models"
	"github.com/callvox/backend/internal/telephony"
)

type fakeStore struct {
	created []models.ScheduledCall
	listed  []models.ScheduledCall
}

func (f *fakeStore) Create(ctx context.Context, userID uuid.UUID, name, phone string, scheduledAt time.Time) (*models.ScheduledCall, error) {
	call := models.ScheduledCall{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Phone:       phone,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
	f.created = append(f.created, call)
	return &call, nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ScheduledCall, error) {
	return f.listed, nil
}

type fakeDialer struct {
	placed []string
	err    error
}

func (f *fakeDialer) PlaceCall(ctx context.Context, to, from, callbackURL string) error {
	if f.err != nil {
		return f.err
	}
	f.placed = append(f.placed, to)
	return nil
}

func newTestRouter(h *Handler, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, userID) })
	router.POST("/api/schedule-call", h.Schedule)
	router.GET("/api/scheduled-calls", h.List)
	router.POST("/api/direct-call", h.DirectCall)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func TestScheduleNormalizesLocalTimeToUTC(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store, &fakeDialer{}, kolkata(t), "https://calls.example.com", "+15550100000", nil)
	router := newTestRouter(h, uuid.New())

	w := postJSON(t, router, "/api/schedule-call",
		`{"name":"Asha","phone":"+919876543210","time":"2026-09-01T14:00"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, store.created, 1)
	got := store.created[0].ScheduledAt
	// 14:00 IST is 08:30 UTC.
	want := time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)
	assert.True(t, got.Equal(want), "got %v, want %v", got, want)
}

func TestScheduleRejectsInvalidPhone(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store, &fakeDialer{}, time.UTC, "https://calls.example.com", "+15550100000", nil)
	router := newTestRouter(h, uuid.New())

	for _, phone := range []string{"12345", "+0123", "555-0100", "+1 555 0100", ""} {
		w := postJSON(t, router, "/api/schedule-call",
			`{"name":"x","phone":"`+phone+`","time":"2026-09-01T14:00"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, "phone %q", phone)
	}
	assert.Empty(t, store.created)
}

func TestScheduleRejectsBadTime(t *testing.T) {
	h := NewHandler(&fakeStore{}, &fakeDialer{}, time.UTC, "https://calls.example.com", "+15550100000", nil)
	router := newTestRouter(h, uuid.New())

	w := postJSON(t, router, "/api/schedule-call",
		`{"name":"x","phone":"+14155552671","time":"tomorrow-ish"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReturnsUserCalls(t *testing.T) {
	store := &fakeStore{listed: []models.ScheduledCall{
		{ID: uuid.New(), Name: "a", Phone: "+14155552671"},
		{ID: uuid.New(), Name: "b", Phone: "+14155552672"},
	}}
	h := NewHandler(store, &fakeDialer{}, time.UTC, "https://calls.example.com", "+15550100000", nil)
	router := newTestRouter(h, uuid.New())

	req := httptest.NewRequest(http.MethodGet, "/api/scheduled-calls", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Calls []models.ScheduledCall `json:"calls"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Calls, 2)
}

func TestDirectCallMapsInvalidNumberTo400(t *testing.T) {
	h := NewHandler(&fakeStore{}, &fakeDialer{err: telephony.ErrInvalidNumber}, time.UTC, "https://calls.example.com", "+15550100000", nil)
	router := newTestRouter(h, uuid.New())

	w := postJSON(t, router, "/api/direct-call", `{"phone":"+19999999999"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDirectCallDials(t *testing.T) {
	dialer := &fakeDialer{}
	h := NewHandler(&fakeStore{}, dialer, time.UTC, "https://calls.example.com", "+15550100000", nil)
	router := newTestRouter(h, uuid.New())

	w := postJSON(t, router, "/api/direct-call", `{"phone":"+14155552671"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"+14155552671"}, dialer.placed)
}

func TestValidPhone(t *testing.T) {
	valid := []string{"+14155552671", "+919876543210", "+4915112345678"}
	for _, p := range valid {
		assert.True(t, ValidPhone(p), p)
	}
	invalid := []string{"14155552671", "+0155552671", "+1", "", "+1415555267189012345"}
	for _, p := range invalid {
		assert.False(t, ValidPhone(p), p)
	}
}

func TestParseScheduleTimeAcceptsRFC3339(t *testing.T) {
	got, err := ParseScheduleTime("2026-09-01T14:00:00+05:30", kolkata(t))
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)))
	assert.Equal(t, time.UTC, got.Location())
}
