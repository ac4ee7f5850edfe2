package appointment

import (
	"context"

	"github.com/hackgods/appointment-consultations/internal/apperr"
)

var (
	ErrAppointmentNotFound   = apperr.New(apperr.ErrNotFound, "appointment not found")
	ErrSlotTaken             = apperr.New(apperr.ErrConflict, "provider already has a confirmed appointment at this time")
	ErrSlotBusy              = apperr.New(apperr.ErrConflict, "slot is currently being confirmed, please retry")
	ErrConfirmedTimeRequired = apperr.New(apperr.ErrValidation, "confirmed_time is required")
)

// MutateFunc changes a loaded appointment in place and returns the event to
// record. An empty event means nothing changed and nothing is written.
type MutateFunc func(a *Appointment) (Event, error)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Create inserts a requested appointment and its first transition.
	Create(ctx context.Context, a *Appointment, actorID *int64) (*Appointment, error)
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	List(ctx context.Context, f ListFilter) ([]Appointment, error)

	// Mutate loads the appointment under a row lock, applies fn and persists
	// the result together with a transition entry in one transaction. When the
	// result claims a confirmed slot, no other confirmed appointment of the
	// same provider may hold that exact time; if one does, ErrSlotTaken is
	// returned and nothing is written.
	Mutate(ctx context.Context, id int64, actorID *int64, fn MutateFunc) (*Appointment, error)

	History(ctx context.Context, id int64) ([]Transition, error)
}
