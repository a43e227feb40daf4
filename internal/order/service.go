package order

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/grosir-api/internal/common"
	"github.com/noah-isme/grosir-api/internal/events"
	"github.com/noah-isme/grosir-api/internal/shipping"
)

// LabelBuyer purchases carrier labels.
type LabelBuyer interface {
	CreateLabel(ctx context.Context, rateID, fileType string) (shipping.Label, error)
}

// Locker serialises work on one key across API replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service coordinates order state changes and their side effects.
type Service struct {
	Repo   Repository
	Events *events.Bus
	Labels LabelBuyer
	// Locks, when set, prevents two admins buying a label for the same order at once.
	Locks  Locker
	Logger zerolog.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Get loads a single order.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.Repo.Get(ctx, id)
}

// Lookup returns the order only when email matches the customer on it, so
// order ids alone do not expose customer data.
func (s *Service) Lookup(ctx context.Context, id, email string) (Order, error) {
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(email), o.Customer.Email) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// List returns a page of orders and the total match count.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, int, error) {
	return s.Repo.List(ctx, f)
}

// Place persists a new order and announces it.
func (s *Service) Place(ctx context.Context, o Order) error {
	if err := s.Repo.Create(ctx, o); err != nil {
		return err
	}
	s.emit(ctx, events.TopicOrderCreated, o)
	return nil
}

// Transition moves an order to next and emits the matching event.
func (s *Service) Transition(ctx context.Context, id string, next Status) (Order, error) {
	o, err := s.Repo.UpdateStatus(ctx, id, next, s.now())
	if err != nil {
		return Order{}, err
	}
	if topic := topicFor(next); topic != "" {
		s.emit(ctx, topic, o)
	}
	return o, nil
}

// MarkPaid records a successful payment. Repeated notifications for an
// order that already moved past pending_payment are no-ops.
func (s *Service) MarkPaid(ctx context.Context, id, intentID string) (Order, error) {
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.PaymentIntentID != "" && intentID != "" && o.PaymentIntentID != intentID {
		return Order{}, common.NewAppError("PAYMENT_MISMATCH", "payment does not belong to order", http.StatusConflict, nil)
	}
	if o.Status != StatusPendingPayment {
		return o, nil
	}
	return s.Transition(ctx, id, StatusPaid)
}

// Cancel lets a customer cancel an order that has not been paid yet.
func (s *Service) Cancel(ctx context.Context, id, email string) (Order, error) {
	o, err := s.Lookup(ctx, id, email)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusPendingPayment {
		return Order{}, ErrInvalidTransition
	}
	return s.Transition(ctx, id, StatusCanceled)
}

// BuyLabel purchases a shipping label for a paid order. An empty rateID
// uses the rate chosen at checkout.
func (s *Service) BuyLabel(ctx context.Context, id, rateID, fileType string) (Order, error) {
	if s.Labels == nil {
		return Order{}, shipping.ErrNoCarrier
	}
	if s.Locks == nil {
		return s.buyLabel(ctx, id, rateID, fileType)
	}
	var out Order
	err := s.Locks.WithLock(ctx, "lock:order-label:"+id, time.Minute, func(ctx context.Context) error {
		var err error
		out, err = s.buyLabel(ctx, id, rateID, fileType)
		return err
	})
	return out, err
}

func (s *Service) buyLabel(ctx context.Context, id, rateID, fileType string) (Order, error) {
	o, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusPaid && o.Status != StatusProcessing {
		return Order{}, common.NewAppError("INVALID_STATE", "labels can only be bought for paid orders", http.StatusConflict, nil)
	}
	if o.Tracking.TransactionID != "" {
		return Order{}, common.NewAppError("LABEL_EXISTS", "order already has a shipping label", http.StatusConflict, nil)
	}
	if strings.TrimSpace(rateID) == "" {
		rateID = o.ShippingRate.ID
	}
	label, err := s.Labels.CreateLabel(ctx, rateID, fileType)
	if err != nil {
		return Order{}, err
	}
	o, err = s.Repo.SetTracking(ctx, id, Tracking{
		Carrier:        o.ShippingRate.Provider,
		TrackingNumber: label.TrackingNumber,
		TrackingURL:    label.TrackingURL,
		LabelURL:       label.LabelURL,
		TransactionID:  label.TransactionID,
		Status:         "LABEL_CREATED",
	}, s.now())
	if err != nil {
		return Order{}, err
	}
	s.emit(ctx, events.TopicShipmentLabeled, o)
	if o.Status == StatusPaid {
		return s.Transition(ctx, id, StatusProcessing)
	}
	return o, nil
}

// ApplyTracking records a carrier tracking update and advances the order
// when the update reaches a milestone.
func (s *Service) ApplyTracking(ctx context.Context, update shipping.TrackingUpdate) error {
	o, err := s.Repo.FindByTracking(ctx, update.TrackingNumber)
	if err != nil {
		return err
	}
	t := Tracking{Carrier: update.Carrier, Status: update.Status}
	if _, err := s.Repo.SetTracking(ctx, o.ID, t, s.now()); err != nil {
		return err
	}
	var next Status
	switch update.Milestone {
	case shipping.MilestoneShipped:
		next = StatusShipped
	case shipping.MilestoneDelivered:
		next = StatusDelivered
	default:
		return nil
	}
	if !CanTransition(o.Status, next) {
		s.Logger.Debug().Str("order_id", o.ID).Str("status", string(o.Status)).Str("milestone", string(update.Milestone)).Msg("tracking milestone ignored")
		return nil
	}
	if _, err := s.Transition(ctx, o.ID, next); err != nil && !errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}

func (s *Service) emit(ctx context.Context, topic string, o Order) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, o.ID, o); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("order_id", o.ID).Msg("emit order event")
	}
}

func topicFor(status Status) string {
	switch status {
	case StatusPaid:
		return events.TopicOrderPaid
	case StatusProcessing:
		return events.TopicOrderProcessing
	case StatusCanceled:
		return events.TopicOrderCanceled
	case StatusShipped:
		return events.TopicShipmentShipped
	case StatusDelivered:
		return events.TopicShipmentDelivered
	}
	return ""
}
