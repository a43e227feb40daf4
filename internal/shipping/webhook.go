package shipping

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
)

// TrackingUpdate is a normalised carrier tracking event.
type TrackingUpdate struct {
	TrackingNumber string
	Carrier        string
	Milestone      Milestone
	Status         string
	Details        string
	Location       string
	OccurredAt     time.Time
}

// TrackingSink applies tracking updates to orders.
type TrackingSink interface {
	ApplyTracking(ctx context.Context, update TrackingUpdate) error
}

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Webhook handles carrier tracking callbacks.
type Webhook struct {
	Sink      TrackingSink
	Replay    replayStore
	ReplayTTL time.Duration
	// Token, when set, must match the ?token= query parameter.
	Token string
}

type trackPayload struct {
	Event string `json:"event"`
	Data  struct {
		TrackingNumber string `json:"tracking_number"`
		Carrier        string `json:"carrier"`
		TrackingStatus struct {
			Status        string     `json:"status"`
			StatusDetails string     `json:"status_details"`
			StatusDate    *time.Time `json:"status_date"`
			Location      *struct {
				City    string `json:"city"`
				State   string `json:"state"`
				Country string `json:"country"`
			} `json:"location"`
		} `json:"tracking_status"`
	} `json:"data"`
}

// Handle processes POST /api/v1/webhooks/shippo.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("shipping.Webhook").Start(r.Context(), "ShippingWebhook.Handle")
	defer span.End()

	carrierLabel := "unknown"
	outcome := "error"
	defer func() { obs.RecordShippingWebhook(carrierLabel, outcome) }()

	if h.Token != "" && subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("token")), []byte(h.Token)) != 1 {
		outcome = "unauthorized"
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid webhook token", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to read payload", nil)
		return
	}
	var payload trackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		span.RecordError(err)
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Data.TrackingNumber == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "tracking_number is required", nil)
		return
	}
	carrierLabel = normaliseLabel(payload.Data.Carrier)
	span.SetAttributes(
		attribute.String("shipping.webhook.event", payload.Event),
		attribute.String("shipping.webhook.carrier", carrierLabel),
		attribute.String("shipping.webhook.status", payload.Data.TrackingStatus.Status),
	)

	if h.Replay != nil {
		key := fmt.Sprintf("shwh:%s:%s", carrierLabel, common.Sha256Hex(string(body)))
		ok, err := h.Replay.SetNX(ctx, key, "1", h.ReplayTTL).Result()
		if err != nil {
			span.RecordError(err)
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "replay protection failed", nil)
			return
		}
		if !ok {
			span.AddEvent("shipping webhook replay prevented")
			outcome = "replay"
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook payload", nil)
			return
		}
	}

	milestone := MapTrackingStatus(payload.Data.TrackingStatus.Status)
	if milestone == MilestoneNone {
		outcome = "ignored"
		w.WriteHeader(http.StatusAccepted)
		return
	}
	update := TrackingUpdate{
		TrackingNumber: payload.Data.TrackingNumber,
		Carrier:        carrierLabel,
		Milestone:      milestone,
		Status:         payload.Data.TrackingStatus.Status,
		Details:        payload.Data.TrackingStatus.StatusDetails,
		OccurredAt:     time.Now().UTC(),
	}
	if d := payload.Data.TrackingStatus.StatusDate; d != nil {
		update.OccurredAt = *d
	}
	if loc := payload.Data.TrackingStatus.Location; loc != nil {
		update.Location = strings.Trim(strings.Join([]string{loc.City, loc.State, loc.Country}, ", "), ", ")
	}
	if err := h.Sink.ApplyTracking(ctx, update); err != nil {
		span.RecordError(err)
		common.WriteError(w, err)
		return
	}
	outcome = "success"
	w.WriteHeader(http.StatusNoContent)
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
