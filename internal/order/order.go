package order

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/shipping"
	"github.com/noah-isme/grosir-api/internal/tax"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCanceled       Status = "canceled"
)

var (
	ErrNotFound          = common.NewAppError("ORDER_NOT_FOUND", "order not found", http.StatusNotFound, nil)
	ErrInvalidTransition = common.NewAppError("INVALID_STATE", "order status transition not allowed", http.StatusConflict, nil)
	ErrDuplicate         = common.NewAppError("ORDER_EXISTS", "order already exists", http.StatusConflict, nil)
)

func statusRank(s Status) int {
	switch s {
	case StatusPendingPayment:
		return 0
	case StatusPaid:
		return 1
	case StatusProcessing:
		return 2
	case StatusShipped:
		return 3
	case StatusDelivered:
		return 4
	case StatusCanceled:
		return -1
	default:
		return -2
	}
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	return s, statusRank(s) > -2
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// CanTransition reports whether an order may move from one status to another.
// Orders only move forward. Unpaid orders can only be paid or canceled, and
// cancellation is possible from any non-terminal state.
func CanTransition(from, to Status) bool {
	if from == to || from.Terminal() || statusRank(from) < 0 {
		return false
	}
	if to == StatusCanceled {
		return true
	}
	if from == StatusPendingPayment {
		return to == StatusPaid
	}
	return statusRank(to) > statusRank(from)
}

// Customer identifies who placed the order.
type Customer struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty"`
	Company   string `json:"company,omitempty"`
	TaxExempt bool   `json:"taxExempt"`
}

// Line is a priced order line, frozen at placement time.
type Line struct {
	ProductID string          `json:"productId"`
	Slug      string          `json:"slug"`
	Title     string          `json:"title"`
	Image     string          `json:"image,omitempty"`
	Color     string          `json:"color,omitempty"`
	Option    string          `json:"option,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Retail    decimal.Decimal `json:"retailPrice"`
	TierLabel string          `json:"tierLabel"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Category  string          `json:"category,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
}

// Tracking holds fulfilment details once a label exists.
type Tracking struct {
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	TrackingURL    string     `json:"trackingUrl,omitempty"`
	LabelURL       string     `json:"labelUrl,omitempty"`
	TransactionID  string     `json:"transactionId,omitempty"`
	Status         string     `json:"status,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
}

// Order is a placed wholesale order.
type Order struct {
	ID              string           `json:"id"`
	Number          string           `json:"number"`
	Status          Status           `json:"status"`
	Customer        Customer         `json:"customer"`
	ShipTo          shipping.Address `json:"shipTo"`
	Lines           []Line           `json:"lines"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	Savings         decimal.Decimal  `json:"savings"`
	Tax             decimal.Decimal  `json:"tax"`
	Shipping        decimal.Decimal  `json:"shipping"`
	Total           decimal.Decimal  `json:"total"`
	Currency        string           `json:"currency"`
	TaxDetail       tax.Result       `json:"taxDetail"`
	ShippingRate    shipping.Rate    `json:"shippingRate"`
	PaymentIntentID string           `json:"paymentIntentId,omitempty"`
	Tracking        Tracking         `json:"tracking"`
	CartID          string           `json:"cartId,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	PaidAt          *time.Time       `json:"paidAt,omitempty"`
}

// ItemCount sums line quantities.
func (o Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// applyStatus sets the status and the timestamps that go with it.
func (o *Order) applyStatus(next Status, at time.Time) {
	o.Status = next
	o.UpdatedAt = at
	switch next {
	case StatusPaid:
		o.PaidAt = &at
	case StatusShipped:
		if o.Tracking.ShippedAt == nil {
			o.Tracking.ShippedAt = &at
		}
	case StatusDelivered:
		o.Tracking.DeliveredAt = &at
	}
}

// NewNumber builds the customer-facing order number.
func NewNumber(id string, at time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return "WS-" + at.UTC().Format("20060102") + "-" + short
}
