package glucose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/thebigby10/sugarvoice-backend/app/middleware"
	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

// memoryRepo is an in-memory GlucoseRepo.
type memoryRepo struct {
	mu       sync.Mutex
	readings map[uuid.UUID]types.GlucoseReading
}

var _ GlucoseRepo = (*memoryRepo)(nil)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{readings: map[uuid.UUID]types.GlucoseReading{}}
}

func (m *memoryRepo) Create(_ context.Context, userID uuid.UUID, params types.CreateGlucoseReading) (*types.GlucoseReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := types.GlucoseReading{ID: uuid.New(), UserID: userID, Level: params.Level, Time: params.Time.UTC(), BeforeAfterBed: params.BeforeAfterBed}
	m.readings[g.ID] = g
	return &g, nil
}

func (m *memoryRepo) Get(_ context.Context, id uuid.UUID) (*types.GlucoseReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.readings[id]
	if !ok {
		return nil, fmt.Errorf("reading %s: %w", id, types.ErrNotFound)
	}
	return &g, nil
}

func (m *memoryRepo) ListByUser(_ context.Context, userID uuid.UUID, skip, limit int) ([]types.GlucoseReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.GlucoseReading{}
	for _, g := range m.readings {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if skip >= len(out) {
		return []types.GlucoseReading{}, nil
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) Update(_ context.Context, id uuid.UUID, patch types.GlucoseReadingPatch) (*types.GlucoseReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.readings[id]
	if !ok {
		return nil, fmt.Errorf("reading %s: %w", id, types.ErrNotFound)
	}
	if patch.Level.Present() {
		g.Level = patch.Level.Value
	}
	if patch.Time.Present() {
		g.Time = patch.Time.Value.UTC()
	}
	if patch.BeforeAfterBed.Present() {
		g.BeforeAfterBed = patch.BeforeAfterBed.Value
	}
	m.readings[id] = g
	return &g, nil
}

func (m *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.readings[id]; !ok {
		return fmt.Errorf("reading %s: %w", id, types.ErrNotFound)
	}
	delete(m.readings, id)
	return nil
}

// asUser stands in for the auth middleware: the X-Test-User header names
// which identity the request is made as.
func asUser(users map[string]*types.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, ok := users[r.Header.Get("X-Test-User")]; ok {
				r = r.WithContext(appMiddleware.WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newGlucoseRouter(t *testing.T) (http.Handler, map[string]*types.Identity) {
	t.Helper()
	users := map[string]*types.Identity{
		"alice": {ID: uuid.New(), Name: "Alice", Email: "alice@example.com"},
		"bob":   {ID: uuid.New(), Name: "Bob", Email: "bob@example.com"},
	}
	h := NewHandler(NewGlucoseService(newMemoryRepo(), discardLogger()), discardLogger())

	r := chi.NewRouter()
	r.Use(asUser(users))
	r.Route("/glucose", func(r chi.Router) {
		r.Post("/", h.CreateReading)
		r.Get("/", h.ListReadings)
		r.Post("/glucose", h.QuickCreateReading)
		r.Get("/{readingID}", h.GetReading)
		r.Put("/{readingID}", h.UpdateReading)
		r.Delete("/{readingID}", h.DeleteReading)
	})
	return r, users
}

func call(t *testing.T, router http.Handler, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func createReading(t *testing.T, router http.Handler, user string, level float64, at time.Time) types.GlucoseReading {
	t.Helper()
	body := fmt.Sprintf(`{"level": %v, "time": %q, "before_after_bed": "before"}`, level, at.Format(time.RFC3339))
	rr := call(t, router, user, http.MethodPost, "/glucose/", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var g types.GlucoseReading
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &g))
	return g
}

func TestGlucoseHandler_CreateAndList(t *testing.T) {
	router, users := newGlucoseRouter(t)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		createReading(t, router, "alice", 5.0+float64(i), base.Add(time.Duration(i)*time.Hour))
	}
	createReading(t, router, "bob", 9.9, base)

	rr := call(t, router, "alice", http.MethodGet, "/glucose/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []types.GlucoseReading
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 3)
	for _, g := range list {
		assert.Equal(t, users["alice"].ID, g.UserID)
	}
	assert.Equal(t, 7.0, list[0].Level, "newest first")

	rr = call(t, router, "alice", http.MethodGet, "/glucose/?skip=1&limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 6.0, list[0].Level)

	for _, q := range []string{"limit=0", "limit=101", "skip=-1", "limit=abc"} {
		rr = call(t, router, "alice", http.MethodGet, "/glucose/?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestGlucoseHandler_CreateValidation(t *testing.T) {
	router, _ := newGlucoseRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing time", body: `{"level": 5.6, "before_after_bed": "before"}`},
		{name: "zero level", body: `{"level": 0, "time": "2024-05-01T08:00:00Z", "before_after_bed": "before"}`},
		{name: "bad marker", body: `{"level": 5.6, "time": "2024-05-01T08:00:00Z", "before_after_bed": "lunch"}`},
		{name: "unknown field", body: `{"level": 5.6, "time": "2024-05-01T08:00:00Z", "before_after_bed": "none", "user_id": 1}`},
		{name: "not json", body: `level=5.6`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := call(t, router, "alice", http.MethodPost, "/glucose/", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestGlucoseHandler_QuickCreate(t *testing.T) {
	router, _ := newGlucoseRouter(t)
	before := time.Now().UTC().Add(-time.Second)

	rr := call(t, router, "alice", http.MethodPost, "/glucose/glucose", `{"level": 6.4, "before_after_bed": "after"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var g types.GlucoseReading
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &g))
	assert.True(t, g.Time.After(before))
	assert.Equal(t, "after", g.BeforeAfterBed)
}

func TestGlucoseHandler_Ownership(t *testing.T) {
	router, _ := newGlucoseRouter(t)
	reading := createReading(t, router, "alice", 5.6, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	path := "/glucose/" + reading.ID.String()

	t.Run("owner reads", func(t *testing.T) {
		rr := call(t, router, "alice", http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, call(t, router, "bob", http.MethodGet, path, "").Code)
		assert.Equal(t, http.StatusForbidden, call(t, router, "bob", http.MethodPut, path, `{"level": 1.0}`).Code)
		assert.Equal(t, http.StatusForbidden, call(t, router, "bob", http.MethodDelete, path, "").Code)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		rr := call(t, router, "", http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
	})

	t.Run("missing and malformed ids are not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, call(t, router, "bob", http.MethodGet, "/glucose/"+uuid.NewString(), "").Code)
		assert.Equal(t, http.StatusNotFound, call(t, router, "alice", http.MethodGet, "/glucose/42", "").Code)
	})

	t.Run("owner updates only present fields", func(t *testing.T) {
		rr := call(t, router, "alice", http.MethodPut, path, `{"before_after_bed": "none"}`)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var g types.GlucoseReading
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &g))
		assert.Equal(t, "none", g.BeforeAfterBed)
		assert.Equal(t, 5.6, g.Level)
	})

	t.Run("null in update rejected", func(t *testing.T) {
		rr := call(t, router, "alice", http.MethodPut, path, `{"level": null}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("owner deletes", func(t *testing.T) {
		rr := call(t, router, "alice", http.MethodDelete, path, "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"ok": true}`, rr.Body.String())
		assert.Equal(t, http.StatusNotFound, call(t, router, "alice", http.MethodGet, path, "").Code)
	})
}

func TestGlucoseHandler_ErrorBodyShape(t *testing.T) {
	router, _ := newGlucoseRouter(t)
	rr := call(t, router, "alice", http.MethodGet, "/glucose/"+uuid.NewString(), "")

	var body map[string]any
	require.NoError(t, json.NewDecoder(strings.NewReader(rr.Body.String())).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Reading not found", body["error"])
	assert.Contains(t, body, "request_id")
}
