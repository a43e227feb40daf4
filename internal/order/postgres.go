package order

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations to databaseURL.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func migrateURL(databaseURL string) string {
	u := databaseURL
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(u, prefix) {
			u = "pgx5://" + strings.TrimPrefix(u, prefix)
			break
		}
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "x-migrations-table=grosir_schema_migrations"
}

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores each order as a JSONB document alongside the
// columns used for filtering.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository wraps a connection pool.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

func (r *PostgresRepository) Create(ctx context.Context, o Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO orders (id, number, status, customer_email, payment_intent_id, tracking_number, total, currency, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11)`,
		o.ID, o.Number, string(o.Status), o.Customer.Email, o.PaymentIntentID, o.Tracking.TrackingNumber,
		o.Total, o.Currency, doc, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create order %s: %w", o.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Order, error) {
	return r.one(ctx, r.db, `SELECT document FROM orders WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByTracking(ctx context.Context, trackingNumber string) (Order, error) {
	return r.one(ctx, r.db, `SELECT document FROM orders WHERE tracking_number = $1 ORDER BY created_at DESC LIMIT 1`, trackingNumber)
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Order, int, error) {
	f = f.normalize()
	const where = `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR lower(customer_email) = $2)`
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM orders `+where, string(f.Status), f.Email).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT document FROM orders `+where+` ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		string(f.Status), f.Email, f.Limit, f.offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	out := make([]Order, 0, f.Limit)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		var o Order
		if err := json.Unmarshal(doc, &o); err != nil {
			return nil, 0, fmt.Errorf("decode order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate orders: %w", err)
	}
	return out, total, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, next Status, at time.Time) (Order, error) {
	return r.mutate(ctx, id, func(o *Order) error {
		if !CanTransition(o.Status, next) {
			return fmt.Errorf("order %s %s -> %s: %w", id, o.Status, next, ErrInvalidTransition)
		}
		o.applyStatus(next, at)
		return nil
	})
}

func (r *PostgresRepository) SetTracking(ctx context.Context, id string, t Tracking, at time.Time) (Order, error) {
	return r.mutate(ctx, id, func(o *Order) error {
		o.Tracking = mergeTracking(o.Tracking, t)
		o.UpdatedAt = at
		return nil
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete order %s: %w", id, ErrNotFound)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PostgresRepository) one(ctx context.Context, q querier, sql string, arg any) (Order, error) {
	var doc []byte
	if err := q.QueryRow(ctx, sql, arg).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("order %v: %w", arg, ErrNotFound)
		}
		return Order{}, fmt.Errorf("load order: %w", err)
	}
	var o Order
	if err := json.Unmarshal(doc, &o); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	return o, nil
}

// mutate loads the row under FOR UPDATE, applies fn and writes it back.
func (r *PostgresRepository) mutate(ctx context.Context, id string, fn func(*Order) error) (Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.one(ctx, tx, `SELECT document FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return Order{}, err
	}
	if err := fn(&o); err != nil {
		return Order{}, err
	}
	doc, err := json.Marshal(o)
	if err != nil {
		return Order{}, fmt.Errorf("encode order: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, tracking_number = NULLIF($3, ''), document = $4, updated_at = $5
		WHERE id = $1`,
		id, string(o.Status), o.Tracking.TrackingNumber, doc, o.UpdatedAt,
	); err != nil {
		return Order{}, fmt.Errorf("update order: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}
