package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is an unpublished appointment transition joined with the
// participants of its appointment.
type Record struct {
	ID            int64
	AppointmentID int64
	Event         string
	State         string
	ActorID       *int64
	OccurredAt    time.Time
	ProviderID    int64
	RequesterID   int64
}

// Store hands out batches of unpublished transitions. fn runs while the rows
// are locked; when it returns nil the whole batch is marked published.
type Store interface {
	WithUnpublished(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) error
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) WithUnpublished(ctx context.Context, limit int, fn func(ctx context.Context, records []Record) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := fetchUnpublished(ctx, tx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	if err := fn(ctx, records); err != nil {
		return err
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE appointment_transitions
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return tx.Commit(ctx)
}

func fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]Record, error) {
	rows, err := tx.Query(ctx, `
		SELECT t.id, t.appointment_id, t.event, t.state, t.actor_id, t.occurred_at,
		       a.provider_id, a.requester_id
		FROM appointment_transitions t
		JOIN appointments a ON a.id = t.appointment_id
		WHERE t.published_at IS NULL
		ORDER BY t.id
		LIMIT $1
		FOR UPDATE OF t SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.AppointmentID, &r.Event, &r.State, &r.ActorID, &r.OccurredAt,
			&r.ProviderID, &r.RequesterID); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
