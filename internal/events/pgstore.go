package events

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore appends events to the domain_events table.
type PGStore struct {
	DB execer
}

// InsertEvent implements EventStore.
func (s PGStore) InsertEvent(ctx context.Context, ev Event) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt,
	)
	return err
}
