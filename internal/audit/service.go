package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
)

// Anonymous is recorded when no admin subject is on the request.
const Anonymous = "anonymous"

// Entry is one audited admin action.
type Entry struct {
	ID           string          `json:"id"`
	Actor        string          `json:"actor"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        string          `json:"route,omitempty"`
	Status       int             `json:"status"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Filter narrows audit log listings.
type Filter struct {
	Actor        string
	ResourceType string
	ResourceID   string
	Limit        int
	Offset       int
}

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, int, error)
}

// Service records admin actions.
type Service struct {
	Store   Store
	Enabled bool
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Record builds an entry from the request and persists it.
func (s Service) Record(ctx context.Context, actor, action, resourceType, resourceID string, req *http.Request, status int, metadata map[string]any) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if strings.TrimSpace(actor) == "" {
		actor = Anonymous
	}
	if status == 0 {
		status = http.StatusOK
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	requestID := middleware.GetReqID(req.Context())
	if requestID == "" {
		requestID = strings.TrimSpace(req.Header.Get("X-Request-ID"))
	}

	entry := Entry{
		ID:           uuid.NewString(),
		Actor:        actor,
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   strings.TrimSpace(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        route,
		Status:       status,
		IP:           common.ClientIP(req),
		UserAgent:    strings.TrimSpace(req.UserAgent()),
		RequestID:    requestID,
		Metadata:     toJSON(metadata, req.URL.RawQuery),
		CreatedAt:    now,
	}
	if err := s.Store.Insert(ctx, entry); err != nil {
		return err
	}
	s.Logger.Info().
		Str("actor", entry.Actor).
		Str("action", entry.Action).
		Str("resource_id", entry.ResourceID).
		Int("status", entry.Status).
		Msg("admin_action")
	return nil
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource derives "admin.orders" style names from /api/v1 routes.
func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") {
			continue
		}
		kept = append(kept, seg)
	}
	return strings.Join(kept, ".")
}

func toJSON(metadata map[string]any, query string) json.RawMessage {
	if len(metadata) == 0 {
		if strings.TrimSpace(query) == "" {
			return nil
		}
		metadata = map[string]any{"query": query}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	return data
}
