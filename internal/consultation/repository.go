package consultation

import (
	"context"

	"github.com/hackgods/appointment-consultations/internal/apperr"
)

var (
	ErrConsultationNotFound    = apperr.New(apperr.ErrNotFound, "consultation not found")
	ErrAppointmentNotConfirmed = apperr.New(apperr.ErrInvalidState, "consultations can only be recorded for confirmed appointments")
	ErrParticipantMismatch     = apperr.New(apperr.ErrValidation, "provider_id or requester_id does not match the appointment")
)

type Repository interface {
	// Create inserts c only if its appointment is confirmed at the moment of
	// the write. Otherwise ErrAppointmentNotConfirmed is returned.
	Create(ctx context.Context, c *Consultation) (*Consultation, error)
	GetByID(ctx context.Context, id int64) (*Consultation, error)
	List(ctx context.Context, f ListFilter) ([]Consultation, error)
}
