package reservations

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roomly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     json.RawMessage `json:"errors"`
}

func newRouter(t *testing.T, h *harness) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupReservationRoutes(r.Group("/api/v1"), NewController(h.svc))
	return r
}

func call(t *testing.T, r *gin.Engine, method, path string, user uuid.UUID, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set(middleware.HeaderUserID, user.String())
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestController_CreateAndLifecycle(t *testing.T) {
	h := newHarness(t)
	r := newRouter(t, h)
	user := uuid.New()

	body := gin.H{
		"room_id":    h.room.ID,
		"start_time": at(8, 0).Format(time.RFC3339),
		"end_time":   at(9, 0).Format(time.RFC3339),
	}
	w, env := call(t, r, http.MethodPost, "/api/v1/reservations", user, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
		UserID uuid.UUID `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, user, created.UserID)

	w, _ = call(t, r, http.MethodPost, "/api/v1/reservations/"+created.ID.String()+"/check-in", user, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "check-in before confirm")

	for _, step := range []string{"confirm", "check-in", "check-out", "complete"} {
		w, _ = call(t, r, http.MethodPost, "/api/v1/reservations/"+created.ID.String()+"/"+step, user, nil)
		assert.Equal(t, http.StatusOK, w.Code, step)
	}

	w, env = call(t, r, http.MethodGet, "/api/v1/reservations/"+created.ID.String(), user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "completed", created.Status)

	w, env = call(t, r, http.MethodGet, "/api/v1/users/me/reservations?status=completed", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ReservationListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(1), list.Total)
}

func TestController_Conflict(t *testing.T) {
	h := newHarness(t)
	r := newRouter(t, h)
	h.book(t, span(10, 0, 11, 0))

	w, env := call(t, r, http.MethodPost, "/api/v1/reservations", uuid.New(), gin.H{
		"room_id":    h.room.ID,
		"start_time": at(10, 30).Format(time.RFC3339),
		"end_time":   at(11, 30).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var detail struct {
		Code       string `json:"code"`
		Resolution struct {
			Strategy     string            `json:"strategy"`
			Alternatives []json.RawMessage `json:"alternatives"`
		} `json:"resolution"`
	}
	require.NoError(t, json.Unmarshal(env.Errors, &detail))
	assert.Equal(t, "conflict", detail.Code)
	assert.Equal(t, "suggest_alternatives", detail.Resolution.Strategy)
	assert.NotEmpty(t, detail.Resolution.Alternatives)
}

func TestController_Validation(t *testing.T) {
	h := newHarness(t)
	r := newRouter(t, h)

	w, _ := call(t, r, http.MethodPost, "/api/v1/reservations", uuid.Nil, gin.H{"room_id": h.room.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = call(t, r, http.MethodPost, "/api/v1/reservations", uuid.New(), gin.H{
		"room_id":    h.room.ID,
		"start_time": at(11, 0).Format(time.RFC3339),
		"end_time":   at(10, 0).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(t, r, http.MethodPost, "/api/v1/reservations/recurring", uuid.New(), gin.H{
		"room_id":          h.room.ID,
		"first_start":      at(10, 0).Format(time.RFC3339),
		"duration_minutes": 60,
		"frequency":        "weekly",
		"interval":         1,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "count or until is required")

	w, _ = call(t, r, http.MethodGet, "/api/v1/reservations/not-a-uuid", uuid.New(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(t, r, http.MethodGet, "/api/v1/reservations/"+uuid.NewString(), uuid.New(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestController_RecurringAndExtend(t *testing.T) {
	h := newHarness(t)
	r := newRouter(t, h)
	user := uuid.New()

	w, env := call(t, r, http.MethodPost, "/api/v1/reservations/recurring", user, gin.H{
		"room_id":          h.room.ID,
		"first_start":      at(10, 0).Format(time.RFC3339),
		"duration_minutes": 60,
		"frequency":        "weekly",
		"interval":         1,
		"count":            3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var series RecurringReservationResponse
	require.NoError(t, json.Unmarshal(env.Data, &series))
	require.Len(t, series.Created, 3)

	first := series.Created[0].ID.String()
	w, _ = call(t, r, http.MethodPost, "/api/v1/reservations/"+first+"/extend", user, gin.H{"additional_minutes": 30})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, r, http.MethodPost, "/api/v1/reservations/"+first+"/cancel", user, gin.H{"reason": "moved"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestController_RoomSchedule(t *testing.T) {
	h := newHarness(t)
	r := newRouter(t, h)
	h.book(t, span(10, 0, 11, 0))
	h.book(t, span(14, 0, 15, 0))

	path := "/api/v1/rooms/" + h.room.ID.String() + "/reservations?start=" + at(9, 0).Format(time.RFC3339) + "&end=" + at(12, 0).Format(time.RFC3339)
	w, env := call(t, r, http.MethodGet, path, uuid.New(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var schedule struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &schedule))
	assert.Equal(t, 1, schedule.Total)

	w, _ = call(t, r, http.MethodGet, "/api/v1/rooms/"+h.room.ID.String()+"/reservations", uuid.New(), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(t, r, http.MethodGet, "/api/v1/rooms/"+uuid.NewString()+"/reservations?start="+at(9, 0).Format(time.RFC3339)+"&end="+at(12, 0).Format(time.RFC3339), uuid.New(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
