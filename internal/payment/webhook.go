package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/events"
	"github.com/noah-isme/grosir-api/internal/obs"
	"github.com/noah-isme/grosir-api/internal/order"
)

// ErrInvalidSignature marks webhook payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

type replayStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Webhook handles payment provider callbacks.
type Webhook struct {
	Provider  Provider
	Orders    Orders
	Events    *events.Bus
	Replay    replayStore
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

type paymentFailedPayload struct {
	OrderID  string `json:"orderId,omitempty"`
	IntentID string `json:"intentId"`
	Amount   int64  `json:"amount"`
	Message  string `json:"message,omitempty"`
}

// Handle processes a provider notification. Events the provider delivers
// more than once are acknowledged without being applied again.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil || h.Orders == nil {
		common.WriteError(w, ErrNotConfigured)
		return
	}
	provider := h.Provider.Name()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	ev, err := h.Provider.VerifyWebhook(r, body)
	if err != nil {
		obs.RecordPaymentWebhook(provider, "unknown", "invalid")
		if errors.Is(err, ErrInvalidSignature) {
			common.JSONError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "signature verification failed", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}

	ctx := r.Context()
	replayKey := ""
	if h.Replay != nil && ev.ID != "" {
		ttl := h.ReplayTTL
		if ttl <= 0 {
			ttl = 72 * time.Hour
		}
		replayKey = "wh:" + provider + ":" + ev.ID
		fresh, err := h.Replay.SetNX(ctx, replayKey, "1", ttl).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay store unavailable", nil)
			return
		}
		if !fresh {
			obs.RecordPaymentWebhook(provider, ev.Type, "duplicate")
			common.JSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
			return
		}
	}

	result, err := h.apply(ctx, ev)
	obs.RecordPaymentWebhook(provider, ev.Type, result)
	if err != nil {
		h.Logger.Error().Err(err).Str("event_id", ev.ID).Str("type", ev.Type).Msg("payment webhook failed")
		if replayKey != "" {
			_ = h.Replay.Del(context.WithoutCancel(ctx), replayKey).Err()
		}
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_FAILED", "failed to apply payment event", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"received": true})
}

func (h Webhook) apply(ctx context.Context, ev WebhookEvent) (string, error) {
	switch ev.Type {
	case EventIntentSucceeded:
		if ev.Intent.OrderID == "" {
			return "ignored", nil
		}
		if _, err := h.Orders.MarkPaid(ctx, ev.Intent.OrderID, ev.Intent.ID); err != nil {
			if errors.Is(err, order.ErrNotFound) {
				h.Logger.Warn().Str("order_id", ev.Intent.OrderID).Str("intent_id", ev.Intent.ID).Msg("payment for unknown order")
				return "ignored", nil
			}
			return "error", err
		}
		return "paid", nil
	case EventIntentFailed:
		if h.Events != nil {
			aggregate := ev.Intent.OrderID
			if aggregate == "" {
				aggregate = ev.Intent.ID
			}
			payload := paymentFailedPayload{
				OrderID:  ev.Intent.OrderID,
				IntentID: ev.Intent.ID,
				Amount:   ev.Intent.AmountCents,
				Message:  ev.Intent.FailureMessage,
			}
			if _, err := h.Events.Emit(ctx, events.TopicPaymentFailed, aggregate, payload); err != nil {
				h.Logger.Warn().Err(err).Str("intent_id", ev.Intent.ID).Msg("emit payment failed event")
			}
		}
		return "failed", nil
	}
	return "ignored", nil
}
