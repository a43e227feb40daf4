package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/noah-isme/grosir-api/internal/pricing"
)

// Stripe event types handled by the webhook.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

const metadataOrderID = "order_id"

// intentAPI is the slice of the Stripe PaymentIntents client in use.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// StripeProvider creates card payment intents through Stripe.
type StripeProvider struct {
	intents       intentAPI
	webhookSecret string
}

// NewStripeProvider builds a provider from a secret API key.
func NewStripeProvider(secretKey, webhookSecret string, backends *stripe.Backends) *StripeProvider {
	sc := client.New(strings.TrimSpace(secretKey), backends)
	return &StripeProvider{intents: sc.PaymentIntents, webhookSecret: webhookSecret}
}

// Name implements Provider.
func (p *StripeProvider) Name() string { return "stripe" }

// CreateIntent opens a PaymentIntent with automatic payment methods. The
// order id doubles as the idempotency key so retries never double charge.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	cents := pricing.Cents(req.Amount)
	if cents < MinimumCents {
		return Intent{}, ErrAmountTooSmall
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(cents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.OrderID != "" {
		params.AddMetadata(metadataOrderID, req.OrderID)
		params.SetIdempotencyKey("order-intent-" + req.OrderID)
	}
	pi, err := p.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe create intent: %w", err)
	}
	return intentFrom(pi), nil
}

// GetIntent implements Provider.
func (p *StripeProvider) GetIntent(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.intents.Get(id, params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe get intent: %w", err)
	}
	return intentFrom(pi), nil
}

// CancelIntent abandons an intent that will never be paid.
func (p *StripeProvider) CancelIntent(ctx context.Context, id string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	if _, err := p.intents.Cancel(id, params); err != nil {
		return fmt.Errorf("stripe cancel intent: %w", err)
	}
	return nil
}

// VerifyWebhook checks the Stripe-Signature header and decodes intent events.
func (p *StripeProvider) VerifyWebhook(r *http.Request, body []byte) (WebhookEvent, error) {
	if p.webhookSecret == "" {
		return WebhookEvent{}, errors.New("stripe webhook secret not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := WebhookEvent{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil && strings.HasPrefix(out.Type, "payment_intent.") {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Intent = intentFrom(&pi)
	}
	return out, nil
}

func intentFrom(pi *stripe.PaymentIntent) Intent {
	in := Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		OrderID:      pi.Metadata[metadataOrderID],
	}
	if pi.LastPaymentError != nil {
		in.FailureMessage = pi.LastPaymentError.Msg
	}
	return in
}
