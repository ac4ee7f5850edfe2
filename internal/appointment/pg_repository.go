package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/appointment-consultations/internal/db"
)

const confirmedSlotIndex = "appointments_confirmed_slot_key"

const appointmentColumns = `id, requester_id, provider_id, requested_time, confirmed_time, state,
	reason, notes, cancellation_reason, created_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var confirmedTime *time.Time
	var state string

	err := row.Scan(
		&a.ID,
		&a.RequesterID,
		&a.ProviderID,
		&a.RequestedTime,
		&confirmedTime,
		&state,
		&a.Reason,
		&a.Notes,
		&a.CancellationReason,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.State = State(state)
	a.ConfirmedTime = confirmedTime
	return &a, nil
}

func insertTransition(ctx context.Context, tx pgx.Tx, appointmentID int64, ev Event, state State, actorID *int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_transitions (appointment_id, event, state, actor_id, occurred_at)
		VALUES ($1, $2, $3, $4, now())
	`, appointmentID, string(ev), string(state), actorID)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment, actorID *int64) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (requester_id, provider_id, requested_time, state, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING `+appointmentColumns,
		a.RequesterID, a.ProviderID, a.RequestedTime, string(StateRequested), a.Reason))
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := insertTransition(ctx, tx, created.ID, EventRequested, created.State, actorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	f = f.Normalize()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.DateFrom != nil {
		add("requested_time >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("requested_time <= $%d", *f.DateTo)
	}
	if f.State != nil {
		add("state = $%d", string(*f.State))
	}
	if f.ProviderID != nil {
		add("provider_id = $%d", *f.ProviderID)
	}
	if f.RequesterID != nil {
		add("requester_id = $%d", *f.RequesterID)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		%s
		ORDER BY requested_time ASC, id ASC
		LIMIT $%d OFFSET $%d
	`, appointmentColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Mutate(ctx context.Context, id int64, actorID *int64, fn MutateFunc) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}

	before := *current
	ev, err := fn(current)
	if err != nil {
		return nil, err
	}
	if ev == "" {
		return &before, nil
	}

	if NeedsSlotCheck(before, *current) {
		taken, err := slotTaken(ctx, tx, current.ProviderID, *current.ConfirmedTime, current.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSlotTaken
		}
	}

	updated, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET requested_time = $2,
		    confirmed_time = $3,
		    state = $4,
		    reason = $5,
		    notes = $6,
		    cancellation_reason = $7
		WHERE id = $1
		RETURNING `+appointmentColumns,
		current.ID, current.RequestedTime, current.ConfirmedTime, string(current.State),
		current.Reason, current.Notes, current.CancellationReason))
	if err != nil {
		// a concurrent confirmation of the same slot committed first
		if db.IsUniqueViolation(err, confirmedSlotIndex) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	if err := insertTransition(ctx, tx, updated.ID, ev, updated.State, actorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if db.IsUniqueViolation(err, confirmedSlotIndex) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func slotTaken(ctx context.Context, tx pgx.Tx, providerID int64, at time.Time, excludeID int64) (bool, error) {
	var taken bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE provider_id = $1
			  AND confirmed_time = $2
			  AND state = 'confirmed'
			  AND id <> $3
		)
	`, providerID, at, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check confirmed slot: %w", err)
	}
	return taken, nil
}

func (r *PgRepository) History(ctx context.Context, id int64) ([]Transition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, event, state, actor_id, occurred_at
		FROM appointment_transitions
		WHERE appointment_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Transition, 0)
	for rows.Next() {
		var (
			t     Transition
			ev    string
			state string
		)
		if err := rows.Scan(&t.ID, &t.AppointmentID, &ev, &state, &t.ActorID, &t.OccurredAt); err != nil {
			return nil, err
		}
		t.Event = Event(ev)
		t.State = State(state)
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
