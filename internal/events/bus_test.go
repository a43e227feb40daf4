package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grosir-api/internal/events"
)

type stubStore struct {
	events []events.Event
	err    error
}

func (s *stubStore) InsertEvent(_ context.Context, ev events.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return c.err
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}, Now: func() time.Time { return fixed }}

	event, err := bus.Emit(context.Background(), events.TopicOrderCreated, "order-1", map[string]any{"orderId": "123"})
	require.NoError(t, err)
	require.Len(t, store.events, 1)
	require.Equal(t, events.TopicOrderCreated, store.events[0].Topic)
	require.JSONEq(t, `{"orderId":"123"}`, string(store.events[0].Payload))
	require.Len(t, notifier.events, 1)
	require.Equal(t, event.ID, notifier.events[0].ID)
	require.Equal(t, fixed, event.OccurredAt)

	var decoded map[string]any
	require.NoError(t, event.Decode(&decoded))
	require.Equal(t, "123", decoded["orderId"])
}

func TestEmitValidation(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "order-1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderPaid, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderPaid, "order-1", "not json")
	require.Error(t, err)

	ev, err := bus.Emit(context.Background(), events.TopicOrderPaid, "order-1", json.RawMessage(nil))
	require.NoError(t, err, "nil store skips persistence")
	require.Equal(t, "{}", string(ev.Payload))
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	failing := &captureNotifier{err: errors.New("smtp down")}
	after := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{failing, nil, after}}

	_, err := bus.Emit(context.Background(), events.TopicOrderPaid, "order-1", nil)
	require.ErrorContains(t, err, "smtp down")
	require.Len(t, after.events, 1, "later notifiers still run")

	store := &stubStore{err: errors.New("db down")}
	bus = events.Bus{Store: store, Notifiers: []events.Notifier{after}}
	_, err = bus.Emit(context.Background(), events.TopicOrderPaid, "order-1", nil)
	require.Error(t, err)
	require.Len(t, after.events, 1, "nothing is dispatched when persistence fails")
}

type recordingExec struct {
	sql  string
	args []any
}

func (r *recordingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestPGStoreInsertsRow(t *testing.T) {
	db := &recordingExec{}
	ev := events.Event{ID: "e1", Topic: events.TopicOrderPaid, AggregateID: "o1", Payload: json.RawMessage(`{"a":1}`)}
	require.NoError(t, events.PGStore{DB: db}.InsertEvent(context.Background(), ev))
	require.Contains(t, db.sql, "INSERT INTO domain_events")
	require.Equal(t, "e1", db.args[0])
	require.Equal(t, []byte(`{"a":1}`), db.args[3])
}
