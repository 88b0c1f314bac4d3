package rest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/basebuild/server/api/rest"
	"github.com/kasuganosora/basebuild/server/audit"
	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
	mw "github.com/kasuganosora/basebuild/server/middleware"
	"github.com/kasuganosora/basebuild/server/model"
	"github.com/kasuganosora/basebuild/server/persist"
	"github.com/kasuganosora/basebuild/server/scheduler"
	"github.com/kasuganosora/basebuild/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "test-key"

type fakeStream struct{ published, dropped uint64 }

func (s fakeStream) Published() uint64 { return s.published }
func (s fakeStream) Dropped() uint64   { return s.dropped }

type adminFixture struct {
	r      *gin.Engine
	eng    *sim.Engine
	ledger *audit.Service
}

func newAdminRouter(t *testing.T, withLedger bool) adminFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	eng := sim.New(testutil.NewTestWorld(t, 6, 6), nil)
	sched := scheduler.New(nil)
	t.Cleanup(sched.Stop)
	sched.AddTicker("noop", time.Hour, func(time.Duration) {})

	deps := rest.AdminDeps{
		Engine:    eng,
		Saves:     persist.NewStore(db),
		Scheduler: sched,
		Stream:    fakeStream{published: 7, dropped: 2},
	}
	var ledger *audit.Service
	if withLedger {
		ledger = audit.New(db, audit.Options{FlushInterval: 10 * time.Millisecond}, nil)
		t.Cleanup(func() { ledger.Stop(t.Context()) })
		eng.Observe(ledger)
		deps.Ledger = ledger
	}

	r := gin.New()
	g := r.Group("/api/admin", mw.AdminKey(testAdminKey))
	rest.NewAdminHandler(deps, nil).Register(g)
	return adminFixture{r: r, eng: eng, ledger: ledger}
}

func adminCall(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(mw.AdminKeyHeader, testAdminKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdmin_RequiresKey(t *testing.T) {
	f := newAdminRouter(t, false)
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdmin_Metrics(t *testing.T) {
	f := newAdminRouter(t, false)
	f.eng.Step(50 * time.Millisecond)

	w := adminCall(f.r, http.MethodGet, "/api/admin/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Engine    sim.Stats             `json:"engine"`
		Scheduler []scheduler.TaskStats `json:"scheduler"`
		Events    map[string]uint64     `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.Engine.Tick)
	assert.Equal(t, 6, body.Engine.Width)
	require.Len(t, body.Scheduler, 1)
	assert.Equal(t, "noop", body.Scheduler[0].Name)
	assert.Equal(t, uint64(7), body.Events["published"])
	assert.Equal(t, uint64(2), body.Events["dropped"])
}

func TestAdmin_Pause(t *testing.T) {
	f := newAdminRouter(t, false)

	require.Equal(t, http.StatusOK, adminCall(f.r, http.MethodPost, "/api/admin/pause", `{"paused":true}`).Code)
	f.eng.Step(50 * time.Millisecond)
	assert.True(t, f.eng.Stats().Paused)
	assert.Equal(t, uint64(0), f.eng.Stats().Tick)

	require.Equal(t, http.StatusOK, adminCall(f.r, http.MethodPost, "/api/admin/pause", `{"paused":false}`).Code)
	f.eng.Step(50 * time.Millisecond)
	assert.Equal(t, uint64(1), f.eng.Stats().Tick)

	assert.Equal(t, http.StatusBadRequest, adminCall(f.r, http.MethodPost, "/api/admin/pause", `{}`).Code)
}

func TestAdmin_SaveLoadDelete(t *testing.T) {
	f := newAdminRouter(t, false)
	f.eng.Step(50 * time.Millisecond)

	w := adminCall(f.r, http.MethodPost, "/api/admin/saves/first", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var info persist.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "first", info.Name)
	assert.Equal(t, uint64(1), info.Tick)

	var list struct {
		Saves []persist.Info `json:"saves"`
	}
	require.NoError(t, json.Unmarshal(adminCall(f.r, http.MethodGet, "/api/admin/saves", "").Body.Bytes(), &list))
	require.Len(t, list.Saves, 1)
	assert.Equal(t, 6, list.Saves[0].Width)

	require.NoError(t, f.eng.Do(func(w *world.World) error {
		_, err := w.PlaceFurniture("Wall", w.TileAt(3, 3))
		return err
	}))

	w = adminCall(f.r, http.MethodPost, "/api/admin/saves/first/load", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, f.eng.Do(func(w *world.World) error {
		assert.Nil(t, w.TileAt(3, 3).Furniture())
		assert.Equal(t, uint64(1), w.Tick())
		return nil
	}))
	assert.Equal(t, uint64(1), f.eng.Stats().Swaps)

	assert.Equal(t, http.StatusNoContent, adminCall(f.r, http.MethodDelete, "/api/admin/saves/first", "").Code)
	assert.Equal(t, http.StatusNotFound, adminCall(f.r, http.MethodDelete, "/api/admin/saves/first", "").Code)
	assert.Equal(t, http.StatusNotFound, adminCall(f.r, http.MethodPost, "/api/admin/saves/first/load", "").Code)
	assert.Equal(t, http.StatusBadRequest, adminCall(f.r, http.MethodPost, "/api/admin/saves/bad.name", "").Code)
}

func TestAdmin_JobLog(t *testing.T) {
	f := newAdminRouter(t, true)

	var jobID string
	require.NoError(t, f.eng.Do(func(w *world.World) error {
		j := world.NewJob(w.TileAt(1, 1), "", 1, nil)
		if err := w.EnqueueJob(j); err != nil {
			return err
		}
		jobID = j.ID
		return w.CancelJob(j)
	}))

	var body struct {
		Entries []model.JobLog `json:"entries"`
	}
	require.Eventually(t, func() bool {
		w := adminCall(f.r, http.MethodGet, "/api/admin/joblog?job_id="+jobID, "")
		if w.Code != http.StatusOK {
			return false
		}
		body.Entries = nil
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		return len(body.Entries) == 2
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, model.JobEventCreated, body.Entries[0].Event)
	assert.Equal(t, model.JobEventCancelled, body.Entries[1].Event)

	body.Entries = nil
	w := adminCall(f.r, http.MethodGet, "/api/admin/joblog?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, model.JobEventCancelled, body.Entries[0].Event)

	assert.Equal(t, http.StatusBadRequest, adminCall(f.r, http.MethodGet, "/api/admin/joblog?limit=x", "").Code)
}

func TestAdmin_JobLogDisabled(t *testing.T) {
	f := newAdminRouter(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, adminCall(f.r, http.MethodGet, "/api/admin/joblog", "").Code)
}
