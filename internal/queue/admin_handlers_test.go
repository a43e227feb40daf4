package queue_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/queue"
)

type fakeInspector struct {
	info     asynq.QueueInfo
	dead     []*asynq.TaskInfo
	ran      []string
	runErr   map[string]error
	ranAll   bool
	infoErr  error
	listOpts int
}

func (f *fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	info := f.info
	return &info, nil
}

func (f *fakeInspector) ListArchivedTasks(_ string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	f.listOpts = len(opts)
	return f.dead, nil
}

func (f *fakeInspector) RunTask(_ string, id string) error {
	if err := f.runErr[id]; err != nil {
		return err
	}
	f.ran = append(f.ran, id)
	return nil
}

func (f *fakeInspector) RunAllArchivedTasks(string) (int, error) {
	f.ranAll = true
	return len(f.dead), nil
}

func router(insp queue.Inspector) http.Handler {
	h := &queue.AdminHandler{Inspector: insp, Queues: []string{"email"}, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	r.Get("/admin/queues/{queue}", h.Stats)
	r.Get("/admin/queues/{queue}/dead", h.ListDead)
	r.Post("/admin/queues/{queue}/replay", h.Replay)
	return r
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rr
}

func TestStatsUpdatesGauges(t *testing.T) {
	insp := &fakeInspector{info: asynq.QueueInfo{Queue: "email", Pending: 4, Archived: 2, Latency: 3 * time.Second}}
	rr := do(router(insp), http.MethodGet, "/admin/queues/email", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"dead":2`)
	assert.Equal(t, 4.0, testutil.ToFloat64(queue.QueueDepth.WithLabelValues("email")))
	assert.Equal(t, 2.0, testutil.ToFloat64(queue.QueueDLQSize.WithLabelValues("email")))
	assert.Equal(t, 3.0, testutil.ToFloat64(queue.QueueLatency.WithLabelValues("email")))
}

func TestUnknownQueue(t *testing.T) {
	rr := do(router(&fakeInspector{}), http.MethodGet, "/admin/queues/critical", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(router(&fakeInspector{infoErr: asynq.ErrQueueNotFound}), http.MethodGet, "/admin/queues/email", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(router(&fakeInspector{infoErr: errors.New("redis down")}), http.MethodGet, "/admin/queues/email", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestListDead(t *testing.T) {
	insp := &fakeInspector{
		info: asynq.QueueInfo{Queue: "email", Archived: 1},
		dead: []*asynq.TaskInfo{{ID: "t1", Type: "email:send", Retried: 8, MaxRetry: 8, LastErr: "smtp 550"}},
	}
	rr := do(router(insp), http.MethodGet, "/admin/queues/email/dead?page=1&limit=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-Total-Count"))
	assert.Contains(t, rr.Body.String(), "smtp 550")
	assert.Equal(t, 2, insp.listOpts)
}

func TestReplay(t *testing.T) {
	insp := &fakeInspector{runErr: map[string]error{"gone": errors.New("task not found")}}
	rr := do(router(insp), http.MethodPost, "/admin/queues/email/replay", `{"ids":["t1","t1","gone"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"t1"}, insp.ran)
	assert.Contains(t, rr.Body.String(), "task not found")

	rr = do(router(insp), http.MethodPost, "/admin/queues/email/replay", `{"all":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, insp.ranAll)

	rr = do(router(insp), http.MethodPost, "/admin/queues/email/replay", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
