package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	if err := row.Scan(&c.ID, &c.AppointmentID, &c.Description, &c.OccurredAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PgRepository) Create(ctx context.Context, c *Consultation) (*Consultation, error) {
	// FOR SHARE blocks a concurrent cancel until this insert commits, and a
	// cancel that committed first makes the SELECT return no row.
	created, err := scanConsultation(r.pool.QueryRow(ctx, `
		INSERT INTO consultations (appointment_id, description, occurred_at, created_at)
		SELECT a.id, $2, $3, now()
		FROM appointments a
		WHERE a.id = $1 AND a.state = 'confirmed'
		FOR SHARE
		RETURNING id, appointment_id, description, occurred_at, created_at
	`, c.AppointmentID, c.Description, c.OccurredAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotConfirmed
		}
		return nil, fmt.Errorf("insert consultation: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id int64) (*Consultation, error) {
	c, err := scanConsultation(r.pool.QueryRow(ctx, `
		SELECT id, appointment_id, description, occurred_at, created_at
		FROM consultations
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConsultationNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Consultation, error) {
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
		add("c.occurred_at >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("c.occurred_at <= $%d", *f.DateTo)
	}
	if f.AppointmentID != nil {
		add("c.appointment_id = $%d", *f.AppointmentID)
	}
	if f.ProviderID != nil {
		add("a.provider_id = $%d", *f.ProviderID)
	}
	if f.RequesterID != nil {
		add("a.requester_id = $%d", *f.RequesterID)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT c.id, c.appointment_id, c.description, c.occurred_at, c.created_at
		FROM consultations c
		JOIN appointments a ON a.id = c.appointment_id
		%s
		ORDER BY c.occurred_at ASC, c.id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Consultation, 0)
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
