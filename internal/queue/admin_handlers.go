package queue

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grosir-api/internal/common"
)

// Inspector is the subset of *asynq.Inspector used by the admin endpoints.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
	RunAllArchivedTasks(queue string) (int, error)
}

// AdminHandler exposes dead-letter inspection and replay for background queues.
type AdminHandler struct {
	Inspector Inspector
	// Queues limits which queue names may be addressed.
	Queues   []string
	PageSize int
	Logger   zerolog.Logger
}

var errUnknownQueue = common.NewAppError("NOT_FOUND", "unknown queue", http.StatusNotFound, nil)

type deadTask struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Retried      int       `json:"retried"`
	MaxRetry     int       `json:"maxRetry"`
	LastError    string    `json:"lastError,omitempty"`
	LastFailedAt time.Time `json:"lastFailedAt"`
}

type replayRequest struct {
	IDs []string `json:"ids" validate:"max=200,dive,required"`
	All bool     `json:"all"`
}

// Stats handles GET /api/v1/admin/queues/{queue}.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	name, ok := h.queue(w, r)
	if !ok {
		return
	}
	info, err := h.Inspector.GetQueueInfo(name)
	if err != nil {
		h.fail(w, name, err)
		return
	}
	observe(info)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"queue":          info.Queue,
		"pending":        info.Pending,
		"active":         info.Active,
		"scheduled":      info.Scheduled,
		"retry":          info.Retry,
		"dead":           info.Archived,
		"processedToday": info.Processed,
		"failedToday":    info.Failed,
		"latencySeconds": info.Latency.Seconds(),
		"paused":         info.Paused,
	}})
}

// ListDead handles GET /api/v1/admin/queues/{queue}/dead.
func (h *AdminHandler) ListDead(w http.ResponseWriter, r *http.Request) {
	name, ok := h.queue(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, h.pageSize(), 200)
	tasks, err := h.Inspector.ListArchivedTasks(name, asynq.Page(page), asynq.PageSize(perPage))
	if err != nil {
		h.fail(w, name, err)
		return
	}
	items := make([]deadTask, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, deadTask{
			ID:           t.ID,
			Type:         t.Type,
			Retried:      t.Retried,
			MaxRetry:     t.MaxRetry,
			LastError:    t.LastErr,
			LastFailedAt: t.LastFailedAt,
		})
	}
	total := len(items)
	if info, err := h.Inspector.GetQueueInfo(name); err == nil {
		total = info.Archived
		observe(info)
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// Replay handles POST /api/v1/admin/queues/{queue}/replay. It re-runs the
// listed dead tasks, or every dead task when all is true.
func (h *AdminHandler) Replay(w http.ResponseWriter, r *http.Request) {
	name, ok := h.queue(w, r)
	if !ok {
		return
	}
	var req replayRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.All {
		n, err := h.Inspector.RunAllArchivedTasks(name)
		if err != nil {
			h.fail(w, name, err)
			return
		}
		h.Logger.Info().Str("queue", name).Int("count", n).Msg("dead tasks replayed")
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"replayed": n}})
		return
	}
	if len(req.IDs) == 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "ids or all required", nil)
		return
	}

	replayed := make([]string, 0, len(req.IDs))
	failed := make(map[string]string)
	for _, id := range uniqueStrings(req.IDs) {
		if err := h.Inspector.RunTask(name, id); err != nil {
			failed[id] = err.Error()
			continue
		}
		replayed = append(replayed, id)
	}
	h.Logger.Info().Str("queue", name).Int("count", len(replayed)).Int("failed", len(failed)).Msg("dead tasks replayed")
	resp := map[string]any{"replayed": replayed}
	if len(failed) > 0 {
		resp["failed"] = failed
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

func (h *AdminHandler) queue(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "queue inspector not configured", nil)
		return "", false
	}
	name := strings.TrimSpace(chi.URLParam(r, "queue"))
	for _, q := range h.Queues {
		if q == name {
			return name, true
		}
	}
	common.WriteError(w, errUnknownQueue)
	return "", false
}

func (h *AdminHandler) fail(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, asynq.ErrQueueNotFound) {
		common.WriteError(w, errUnknownQueue)
		return
	}
	h.Logger.Error().Err(err).Str("queue", name).Msg("queue inspection failed")
	common.WriteError(w, common.NewAppError("QUEUE_UNAVAILABLE", "queue backend unavailable", http.StatusServiceUnavailable, err))
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

func observe(info *asynq.QueueInfo) {
	QueueDepth.WithLabelValues(info.Queue).Set(float64(info.Pending))
	QueueDLQSize.WithLabelValues(info.Queue).Set(float64(info.Archived))
	QueueLatency.WithLabelValues(info.Queue).Set(info.Latency.Seconds())
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
