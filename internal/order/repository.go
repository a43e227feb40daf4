package order

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Filter narrows order listings.
type Filter struct {
	Status Status
	Email  string
	Page   int
	Limit  int
}

func (f Filter) normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	return f
}

func (f Filter) offset() int { return (f.Page - 1) * f.Limit }

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	FindByTracking(ctx context.Context, trackingNumber string) (Order, error)
	List(ctx context.Context, f Filter) ([]Order, int, error)
	// UpdateStatus moves the order to next when CanTransition allows it.
	UpdateStatus(ctx context.Context, id string, next Status, at time.Time) (Order, error)
	SetTracking(ctx context.Context, id string, t Tracking, at time.Time) (Order, error)
	Delete(ctx context.Context, id string) error
}

// MemoryRepository keeps orders in process memory. It backs local
// development and tests when no database is configured.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]Order
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]Order)}
}

func (m *MemoryRepository) Create(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[o.ID]; exists {
		return fmt.Errorf("create order %s: %w", o.ID, ErrDuplicate)
	}
	m.orders[o.ID] = clone(o)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("get order %s: %w", id, ErrNotFound)
	}
	return clone(o), nil
}

func (m *MemoryRepository) FindByTracking(_ context.Context, trackingNumber string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if trackingNumber != "" && o.Tracking.TrackingNumber == trackingNumber {
			return clone(o), nil
		}
	}
	return Order{}, fmt.Errorf("order with tracking %s: %w", trackingNumber, ErrNotFound)
}

func (m *MemoryRepository) List(_ context.Context, f Filter) ([]Order, int, error) {
	f = f.normalize()
	m.mu.RLock()
	matched := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Email != "" && strings.ToLower(o.Customer.Email) != f.Email {
			continue
		}
		matched = append(matched, o)
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := f.offset()
	if start >= total {
		return []Order{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	out := make([]Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, clone(o))
	}
	return out, total, nil
}

func (m *MemoryRepository) UpdateStatus(_ context.Context, id string, next Status, at time.Time) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("update order %s: %w", id, ErrNotFound)
	}
	if !CanTransition(o.Status, next) {
		return Order{}, fmt.Errorf("order %s %s -> %s: %w", id, o.Status, next, ErrInvalidTransition)
	}
	o.applyStatus(next, at)
	m.orders[id] = o
	return clone(o), nil
}

func (m *MemoryRepository) SetTracking(_ context.Context, id string, t Tracking, at time.Time) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("set tracking %s: %w", id, ErrNotFound)
	}
	o.Tracking = mergeTracking(o.Tracking, t)
	o.UpdatedAt = at
	m.orders[id] = o
	return clone(o), nil
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return fmt.Errorf("delete order %s: %w", id, ErrNotFound)
	}
	delete(m.orders, id)
	return nil
}

// mergeTracking overlays the non-empty fields of next onto current.
func mergeTracking(current, next Tracking) Tracking {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&current.Carrier, next.Carrier)
	set(&current.TrackingNumber, next.TrackingNumber)
	set(&current.TrackingURL, next.TrackingURL)
	set(&current.LabelURL, next.LabelURL)
	set(&current.TransactionID, next.TransactionID)
	set(&current.Status, next.Status)
	if next.ShippedAt != nil {
		current.ShippedAt = next.ShippedAt
	}
	if next.DeliveredAt != nil {
		current.DeliveredAt = next.DeliveredAt
	}
	return current
}

func clone(o Order) Order {
	o.Lines = append([]Line(nil), o.Lines...)
	for i := range o.Lines {
		o.Lines[i].Tags = append([]string(nil), o.Lines[i].Tags...)
	}
	o.TaxDetail.Breakdown = append(o.TaxDetail.Breakdown[:0:0], o.TaxDetail.Breakdown...)
	return o
}
