package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MemoryStore keeps entries in process, newest first.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// Insert implements Store.
func (m *MemoryStore) Insert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]Entry{e}, m.entries...)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, f Filter) ([]Entry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []Entry
	for _, e := range m.entries {
		if f.Actor != "" && e.Actor != f.Actor {
			continue
		}
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		if f.ResourceID != "" && e.ResourceID != f.ResourceID {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if f.Offset >= total {
		return []Entry{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return append([]Entry(nil), matched[f.Offset:end]...), total, nil
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore writes entries to the admin_audit_log table.
type PGStore struct {
	DB DB
}

const insertEntry = `INSERT INTO admin_audit_log
	(id, actor, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata, created_at)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), $13, $14)`

// Insert implements Store.
func (s PGStore) Insert(ctx context.Context, e Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	_, err := s.DB.Exec(ctx, insertEntry,
		e.ID, e.Actor, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Route,
		e.Status, e.IP, e.UserAgent, e.RequestID, metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// List implements Store.
func (s PGStore) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT count(*) FROM admin_audit_log"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count entries: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	sql := fmt.Sprintf(`SELECT id, actor, action, resource_type, COALESCE(resource_id, ''), method, path,
		COALESCE(route, ''), status, COALESCE(ip, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''),
		metadata, created_at
		FROM admin_audit_log%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e        Entry
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID, &e.Method, &e.Path,
			&e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &metadata, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.Metadata = metadata
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func filterClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("actor", f.Actor)
	add("resource_type", f.ResourceType)
	add("resource_id", f.ResourceID)
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
