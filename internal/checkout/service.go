package checkout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/grosir-api/internal/cart"
	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/obs"
	"github.com/noah-isme/grosir-api/internal/order"
	"github.com/noah-isme/grosir-api/internal/payment"
	"github.com/noah-isme/grosir-api/internal/pricing"
	"github.com/noah-isme/grosir-api/internal/shipping"
	"github.com/noah-isme/grosir-api/internal/tax"
)

var (
	ErrEmptyCart   = common.NewAppError("EMPTY_CART", "cart has no items", http.StatusUnprocessableEntity, nil)
	ErrInvalidRate = common.NewAppError("INVALID_RATE", "shipping rate is not available for this cart", http.StatusUnprocessableEntity, nil)
)

// Carts loads and discards priced carts.
type Carts interface {
	Get(ctx context.Context, id string) (cart.View, error)
	Delete(ctx context.Context, id string) error
}

// Shipper quotes shipments.
type Shipper interface {
	Quote(ctx context.Context, to shipping.Address, items []shipping.Item) shipping.Quote
}

// Payments opens payment intents and abandons ones left without an order.
type Payments interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error)
	CancelIntent(ctx context.Context, id string) error
}

// Orders persists placed orders.
type Orders interface {
	Place(ctx context.Context, o order.Order) error
}

// Input is a checkout request.
type Input struct {
	CartID          string           `json:"cartId" validate:"required"`
	Customer        order.Customer   `json:"customer" validate:"-"`
	ShippingAddress shipping.Address `json:"shippingAddress" validate:"-"`
	// ShippingRateID picks a quoted rate; empty selects the cheapest.
	ShippingRateID string `json:"shippingRateId,omitempty"`
	Notes          string `json:"notes,omitempty" validate:"max=1000"`
}

// Quote is the fully priced checkout.
type Quote struct {
	Cart     cart.View       `json:"cart"`
	Rates    []shipping.Rate `json:"rates"`
	Rate     shipping.Rate   `json:"selectedRate"`
	Tax      tax.Result      `json:"tax"`
	Summary  pricing.Summary `json:"summary"`
	Currency string          `json:"currency"`
}

// Output is the result of placing an order.
type Output struct {
	Order        order.Order `json:"order"`
	ClientSecret string      `json:"clientSecret"`
}

// Service assembles orders from carts.
type Service struct {
	Carts    Carts
	Shipping Shipper
	Tax      *tax.Estimator
	Payments Payments
	Orders   Orders
	Currency string
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return "usd"
	}
	return s.Currency
}

// Quote prices the cart with tax and shipping without placing an order.
func (s *Service) Quote(ctx context.Context, in Input) (Quote, error) {
	if err := common.ValidateStruct(in); err != nil {
		return Quote{}, err
	}
	view, err := s.Carts.Get(ctx, in.CartID)
	if err != nil {
		return Quote{}, err
	}
	if err := checkLines(view); err != nil {
		return Quote{}, err
	}

	to := in.ShippingAddress
	to.Country = strings.ToUpper(strings.TrimSpace(to.Country))
	if to.Country == "" {
		to.Country = "US"
	}
	shipQuote := s.Shipping.Quote(ctx, to, shipping.ItemsFromCart(view))
	rate, err := pickRate(shipQuote.Rates, in.ShippingRateID)
	if err != nil {
		return Quote{}, err
	}

	lines := make([]pricing.Line, 0, len(view.Lines))
	taxItems := make([]tax.LineItem, 0, len(view.Lines))
	for _, l := range view.Lines {
		lines = append(lines, pricing.Line{Qty: l.Quantity, UnitPrice: l.Pricing.Price, Savings: l.Pricing.Savings})
		taxItems = append(taxItems, tax.LineItem{Category: l.Category, Tags: l.Tags, Quantity: l.Quantity})
	}
	subtotal := pricing.Compute(lines, decimal.Zero, decimal.Zero).Subtotal
	taxResult := s.Tax.Estimate(tax.Address{
		Country:   to.Country,
		State:     to.State,
		City:      to.City,
		TaxExempt: in.Customer.TaxExempt,
	}, subtotal, taxItems)
	obs.RecordTaxEstimate(taxResult.Country, taxResult.Exemption.Exempt)

	return Quote{
		Cart:     view,
		Rates:    shipQuote.Rates,
		Rate:     rate,
		Tax:      taxResult,
		Summary:  pricing.Compute(lines, taxResult.TaxAmount, rate.Price),
		Currency: s.currency(),
	}, nil
}

// Place validates and prices the cart, persists a pending_payment order
// and opens its payment intent. The cart is removed once the order exists.
func (s *Service) Place(ctx context.Context, in Input) (Output, error) {
	out, err := s.place(ctx, in)
	result := "placed"
	if err != nil {
		result = "failed"
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus < 500 {
			result = "rejected"
		}
	}
	obs.RecordCheckout(result)
	return out, err
}

func (s *Service) place(ctx context.Context, in Input) (Output, error) {
	if err := common.ValidateStruct(in); err != nil {
		return Output{}, err
	}
	if err := common.ValidateStruct(in.Customer); err != nil {
		return Output{}, err
	}
	if err := common.ValidateStruct(in.ShippingAddress); err != nil {
		return Output{}, err
	}
	q, err := s.Quote(ctx, in)
	if err != nil {
		return Output{}, err
	}

	now := s.now()
	id := uuid.NewString()
	o := order.Order{
		ID:           id,
		Number:       order.NewNumber(id, now),
		Status:       order.StatusPendingPayment,
		Customer:     in.Customer,
		ShipTo:       in.ShippingAddress,
		Lines:        orderLines(q.Cart),
		Subtotal:     q.Summary.Subtotal,
		Savings:      q.Summary.Savings,
		Tax:          q.Summary.Tax,
		Shipping:     q.Summary.Shipping,
		Total:        q.Summary.Total,
		Currency:     q.Currency,
		TaxDetail:    q.Tax,
		ShippingRate: q.Rate,
		CartID:       in.CartID,
		Notes:        strings.TrimSpace(in.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.Customer.Email = strings.ToLower(strings.TrimSpace(o.Customer.Email))
	o.ShipTo.Country = strings.ToUpper(strings.TrimSpace(o.ShipTo.Country))
	if o.ShipTo.Country == "" {
		o.ShipTo.Country = "US"
	}

	intent, err := s.Payments.CreateIntent(ctx, payment.IntentRequest{
		OrderID:     o.ID,
		Amount:      o.Total,
		Currency:    o.Currency,
		Email:       o.Customer.Email,
		Description: "Order " + o.Number,
	})
	if err != nil {
		return Output{}, err
	}
	o.PaymentIntentID = intent.ID

	if err := s.Orders.Place(ctx, o); err != nil {
		if cerr := s.Payments.CancelIntent(context.WithoutCancel(ctx), intent.ID); cerr != nil {
			s.Logger.Error().Err(cerr).Str("order_id", o.ID).Str("intent_id", intent.ID).Msg("cancel orphaned payment intent")
		}
		return Output{}, err
	}
	total, _ := o.Total.Float64()
	obs.RecordOrderValue(ctx, total, o.Currency)
	if err := s.Carts.Delete(ctx, in.CartID); err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", in.CartID).Str("order_id", o.ID).Msg("discard checked out cart")
	}
	s.Logger.Info().Str("order_id", o.ID).Str("number", o.Number).Str("total", o.Total.StringFixed(2)).Msg("order placed")
	return Output{Order: o, ClientSecret: intent.ClientSecret}, nil
}

func checkLines(view cart.View) error {
	if len(view.Lines) == 0 {
		return ErrEmptyCart
	}
	problems := map[string]string{}
	for _, l := range view.Lines {
		switch {
		case l.Unavailable:
			problems[l.ID] = "unavailable"
		case l.BelowMinimum:
			problems[l.ID] = "below_minimum"
		}
	}
	if len(problems) > 0 {
		err := common.NewAppError("CART_INVALID", "cart contains lines that cannot be ordered", http.StatusUnprocessableEntity, nil)
		err.Details = map[string]any{"lines": problems}
		return err
	}
	return nil
}

func pickRate(rates []shipping.Rate, id string) (shipping.Rate, error) {
	if len(rates) == 0 {
		return shipping.Rate{}, ErrInvalidRate
	}
	if id != "" {
		for _, r := range rates {
			if r.ID == id {
				return r, nil
			}
		}
		return shipping.Rate{}, ErrInvalidRate
	}
	best := rates[0]
	for _, r := range rates[1:] {
		if r.Price.LessThan(best.Price) {
			best = r
		}
	}
	return best, nil
}

func orderLines(view cart.View) []order.Line {
	out := make([]order.Line, 0, len(view.Lines))
	for _, l := range view.Lines {
		out = append(out, order.Line{
			ProductID: l.ProductID,
			Slug:      l.Slug,
			Title:     l.Title,
			Image:     l.Image,
			Color:     l.Color,
			Option:    l.Option,
			Quantity:  l.Quantity,
			UnitPrice: l.Pricing.Price,
			Retail:    l.Pricing.OriginalPrice,
			TierLabel: l.Pricing.TierLabel,
			LineTotal: l.LineTotal,
			Category:  l.Category,
			Tags:      l.Tags,
		})
	}
	return out
}
