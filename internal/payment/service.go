package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
	"github.com/noah-isme/grosir-api/internal/order"
)

// ErrNotConfigured is returned when no payment provider is wired.
var ErrNotConfigured = common.NewAppError("PAYMENT_NOT_CONFIGURED", "payments are not configured", http.StatusServiceUnavailable, nil)

// Orders is the order state the payment flow reads and advances.
type Orders interface {
	Get(ctx context.Context, id string) (order.Order, error)
	MarkPaid(ctx context.Context, id, intentID string) (order.Order, error)
}

// Service coordinates payment intents.
type Service struct {
	Provider Provider
	Orders   Orders
	Currency string
	Logger   zerolog.Logger
}

// CreateIntent opens a payment intent with the configured provider.
func (s *Service) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if s == nil || s.Provider == nil {
		return Intent{}, ErrNotConfigured
	}
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.CreateIntent")
	defer span.End()

	start := time.Now()
	provider := s.Provider.Name()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", provider),
			attribute.Float64("payment.intent.duration_ms", obs.DurationMillis(time.Since(start))),
			attribute.String("payment.intent.result", result),
		)
		obs.RecordPaymentIntent(provider, result)
	}()

	if req.Currency == "" {
		req.Currency = s.Currency
	}
	if req.OrderID != "" {
		span.SetAttributes(attribute.String("order.id", req.OrderID))
	}
	intent, err := s.Provider.CreateIntent(ctx, req)
	if err != nil {
		if errors.Is(err, ErrAmountTooSmall) {
			result = "rejected"
			return Intent{}, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create intent failed")
		s.Logger.Error().Err(err).Str("order_id", req.OrderID).Msg("create payment intent")
		return Intent{}, common.NewAppError("PAYMENT_ERROR", "failed to create payment intent", http.StatusBadGateway, err)
	}
	result = "created"
	return intent, nil
}

// CancelIntent abandons an intent whose order could not be recorded.
func (s *Service) CancelIntent(ctx context.Context, id string) error {
	if s == nil || s.Provider == nil {
		return ErrNotConfigured
	}
	err := s.Provider.CancelIntent(ctx, id)
	result := "canceled"
	if err != nil {
		result = "cancel_error"
	}
	obs.RecordPaymentIntent(s.Provider.Name(), result)
	return err
}

// IntentForOrder returns a client secret for an unpaid order, reusing the
// intent opened at checkout when one exists.
func (s *Service) IntentForOrder(ctx context.Context, orderID, email string) (Intent, error) {
	if s == nil || s.Provider == nil || s.Orders == nil {
		return Intent{}, ErrNotConfigured
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return Intent{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(email), o.Customer.Email) {
		return Intent{}, order.ErrNotFound
	}
	if o.Status != order.StatusPendingPayment {
		return Intent{}, common.NewAppError("INVALID_STATE", "order is not awaiting payment", http.StatusConflict, nil)
	}
	if o.PaymentIntentID != "" {
		intent, err := s.Provider.GetIntent(ctx, o.PaymentIntentID)
		if err == nil {
			obs.RecordPaymentIntent(s.Provider.Name(), "reused")
			return intent, nil
		}
		s.Logger.Warn().Err(err).Str("order_id", o.ID).Msg("load existing payment intent")
	}
	return s.CreateIntent(ctx, IntentRequest{
		OrderID:     o.ID,
		Amount:      o.Total,
		Currency:    o.Currency,
		Email:       o.Customer.Email,
		Description: "Order " + o.Number,
	})
}
