package payment_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/events"
	"github.com/noah-isme/grosir-api/internal/order"
	"github.com/noah-isme/grosir-api/internal/payment"
)

type fakeProvider struct {
	event     payment.WebhookEvent
	verifyErr error
	created   []payment.IntentRequest
	canceled  []string
	existing  map[string]payment.Intent
}

func (f *fakeProvider) Name() string { return "stripe" }

func (f *fakeProvider) CreateIntent(_ context.Context, req payment.IntentRequest) (payment.Intent, error) {
	f.created = append(f.created, req)
	return payment.Intent{ID: "pi_new", ClientSecret: "pi_new_secret", OrderID: req.OrderID, Currency: "usd"}, nil
}

func (f *fakeProvider) GetIntent(_ context.Context, id string) (payment.Intent, error) {
	if in, ok := f.existing[id]; ok {
		return in, nil
	}
	return payment.Intent{}, errors.New("no such intent")
}

func (f *fakeProvider) CancelIntent(_ context.Context, id string) error {
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *fakeProvider) VerifyWebhook(*http.Request, []byte) (payment.WebhookEvent, error) {
	return f.event, f.verifyErr
}

type topics struct{ seen []events.Event }

func (t *topics) Notify(_ context.Context, ev events.Event) error {
	t.seen = append(t.seen, ev)
	return nil
}

func setup(t *testing.T) (*order.Service, *topics, order.Order, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	rec := &topics{}
	svc := &order.Service{
		Repo:   order.NewMemoryRepository(),
		Events: &events.Bus{Notifiers: []events.Notifier{rec}},
		Logger: zerolog.Nop(),
	}
	o := order.Order{
		ID:              "ord-1",
		Number:          "WS-20260601-ORD1",
		Status:          order.StatusPendingPayment,
		Customer:        order.Customer{Name: "Buyer", Email: "buyer@example.com"},
		Total:           decimal.RequireFromString("213.99"),
		Currency:        "usd",
		PaymentIntentID: "pi_1",
		CreatedAt:       time.Now(),
	}
	require.NoError(t, svc.Place(context.Background(), o))
	return svc, rec, o, rdb
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body)))
	return rr
}

func TestWebhookMarksOrderPaidOnce(t *testing.T) {
	orders, rec, o, rdb := setup(t)
	provider := &fakeProvider{event: payment.WebhookEvent{
		ID:     "evt_1",
		Type:   payment.EventIntentSucceeded,
		Intent: payment.Intent{ID: "pi_1", OrderID: o.ID},
	}}
	wh := payment.Webhook{Provider: provider, Orders: orders, Events: orders.Events, Replay: rdb, ReplayTTL: time.Hour, Logger: zerolog.Nop()}

	rr := post(wh.Handle, `{}`)
	require.Equal(t, http.StatusOK, rr.Code)

	got, err := orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPaid, got.Status)

	rr = post(wh.Handle, `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"duplicate":true`)

	paidEvents := 0
	for _, ev := range rec.seen {
		if ev.Topic == events.TopicOrderPaid {
			paidEvents++
		}
	}
	require.Equal(t, 1, paidEvents)
}

func TestWebhookPaymentFailedEmitsEvent(t *testing.T) {
	orders, rec, o, _ := setup(t)
	provider := &fakeProvider{event: payment.WebhookEvent{
		ID:     "evt_2",
		Type:   payment.EventIntentFailed,
		Intent: payment.Intent{ID: "pi_1", OrderID: o.ID, AmountCents: 21399, FailureMessage: "card declined"},
	}}
	wh := payment.Webhook{Provider: provider, Orders: orders, Events: orders.Events}

	rr := post(wh.Handle, `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	last := rec.seen[len(rec.seen)-1]
	require.Equal(t, events.TopicPaymentFailed, last.Topic)
	require.Equal(t, o.ID, last.AggregateID)
	require.Contains(t, string(last.Payload), "card declined")

	got, err := orders.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPendingPayment, got.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	orders, _, _, _ := setup(t)
	provider := &fakeProvider{verifyErr: payment.ErrInvalidSignature}
	wh := payment.Webhook{Provider: provider, Orders: orders}
	rr := post(wh.Handle, `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_SIGNATURE")
}

func TestWebhookIgnoresUnknownOrders(t *testing.T) {
	orders, _, _, _ := setup(t)
	provider := &fakeProvider{event: payment.WebhookEvent{
		ID: "evt_3", Type: payment.EventIntentSucceeded, Intent: payment.Intent{ID: "pi_x", OrderID: "missing"},
	}}
	wh := payment.Webhook{Provider: provider, Orders: orders}
	require.Equal(t, http.StatusOK, post(wh.Handle, `{}`).Code)
}

func TestIntentHandler(t *testing.T) {
	orders, _, o, _ := setup(t)
	provider := &fakeProvider{existing: map[string]payment.Intent{"pi_1": {ID: "pi_1", ClientSecret: "pi_1_secret"}}}
	h := &payment.Handler{Svc: &payment.Service{Provider: provider, Orders: orders, Currency: "usd", Logger: zerolog.Nop()}}

	rr := post(h.Intent, `{"amount": 49}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_AMOUNT")

	rr = post(h.Intent, `{"amount": 2500}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "pi_new_secret")
	require.True(t, provider.created[0].Amount.Equal(decimal.RequireFromString("25")))

	rr = post(h.Intent, `{"orderId": "`+o.ID+`", "email": "buyer@example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "pi_1_secret", "reuses the checkout intent")

	rr = post(h.Intent, `{"orderId": "`+o.ID+`", "email": "other@example.com"}`)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = post(h.Intent, `{"orderId": "`+o.ID+`"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServiceCancelIntent(t *testing.T) {
	provider := &fakeProvider{}
	svc := &payment.Service{Provider: provider, Logger: zerolog.Nop()}
	require.NoError(t, svc.CancelIntent(context.Background(), "pi_1"))
	require.Equal(t, []string{"pi_1"}, provider.canceled)

	var unset *payment.Service
	require.ErrorIs(t, unset.CancelIntent(context.Background(), "pi_1"), payment.ErrNotConfigured)
}
