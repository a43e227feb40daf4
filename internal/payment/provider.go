package payment

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/common"
)

// MinimumCents is the smallest chargeable amount.
const MinimumCents int64 = 50

// ErrAmountTooSmall is returned for charges under MinimumCents.
var ErrAmountTooSmall = common.NewAppError("INVALID_AMOUNT", "invalid amount, minimum amount is $0.50", http.StatusBadRequest, nil)

// IntentRequest captures the information required to open a payment intent with a provider.
type IntentRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	Description string
}

// Intent is the provider's view of a payment intent.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Status       string `json:"status"`
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
	OrderID      string `json:"orderId,omitempty"`
	// FailureMessage is the last payment error reported by the provider.
	FailureMessage string `json:"failureMessage,omitempty"`
}

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	ID     string
	Type   string
	Intent Intent
}

// Provider abstracts the operations required from an upstream payment provider.
type Provider interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	GetIntent(ctx context.Context, id string) (Intent, error)
	CancelIntent(ctx context.Context, id string) error
	VerifyWebhook(r *http.Request, body []byte) (WebhookEvent, error)
}
