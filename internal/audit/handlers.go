package audit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/noah-isme/grosir-api/internal/common"
)

// Handler exposes the audit log to administrators.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/admin/audit.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "AUDIT_NOT_CONFIGURED", "audit store not configured", nil)
		return
	}
	q := r.URL.Query()
	limit := common.AtoiDefault(q.Get("limit"), 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := common.AtoiDefault(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	entries, total, err := h.Store.List(r.Context(), Filter{
		Actor:        strings.TrimSpace(q.Get("actor")),
		ResourceType: strings.TrimSpace(q.Get("resourceType")),
		ResourceID:   strings.TrimSpace(q.Get("resourceId")),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		common.WriteError(w, common.NewAppError("AUDIT_QUERY_FAILED", "unable to fetch audit logs", http.StatusInternalServerError, err))
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{"data": entries, "total": total})
}
