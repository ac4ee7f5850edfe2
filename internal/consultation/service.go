package consultation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/appointment-consultations/internal/actor"
	"github.com/hackgods/appointment-consultations/internal/apperr"
	"github.com/hackgods/appointment-consultations/internal/appointment"
)

// AppointmentReader resolves an appointment with the caller's access rules
// applied. *appointment.Service satisfies it.
type AppointmentReader interface {
	GetAppointment(ctx context.Context, id int64) (*appointment.Appointment, error)
}

type Service struct {
	repo  Repository
	appts AppointmentReader
	log   *zap.Logger
	now   func() time.Time
}

func NewService(repo Repository, appts AppointmentReader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:  repo,
		appts: appts,
		log:   log,
		now:   time.Now,
	}
}

// CreateConsultation records a consultation against a confirmed appointment.
// OccurredAt defaults to the current time.
func (s *Service) CreateConsultation(ctx context.Context, in CreateInput) (*Consultation, error) {
	description := strings.TrimSpace(in.Description)

	fields := map[string]string{}
	if in.AppointmentID <= 0 {
		fields["appointment_id"] = "appointment_id is required"
	}
	if description == "" {
		fields["description"] = "description is required"
	}
	if in.OccurredAt != nil && in.OccurredAt.IsZero() {
		fields["occurred_at"] = "occurred_at must be a valid timestamp"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	appt, err := s.appts.GetAppointment(ctx, in.AppointmentID)
	if err != nil {
		return nil, err
	}
	if a, ok := actor.FromContext(ctx); ok {
		if a.Role != actor.RoleProvider || a.ID != appt.ProviderID {
			return nil, apperr.New(apperr.ErrForbidden, "only the appointment's provider may record a consultation")
		}
	}
	if appt.State != appointment.StateConfirmed {
		return nil, ErrAppointmentNotConfirmed
	}
	if in.ProviderID != nil && *in.ProviderID != appt.ProviderID {
		return nil, ErrParticipantMismatch
	}
	if in.RequesterID != nil && *in.RequesterID != appt.RequesterID {
		return nil, ErrParticipantMismatch
	}

	occurredAt := s.now()
	if in.OccurredAt != nil {
		occurredAt = *in.OccurredAt
	}

	c, err := s.repo.Create(ctx, &Consultation{
		AppointmentID: appt.ID,
		Description:   description,
		OccurredAt:    appointment.NormalizeTime(occurredAt),
	})
	if err != nil {
		return nil, fmt.Errorf("create consultation: %w", err)
	}

	s.log.Info("consultation recorded",
		zap.Int64("consultation_id", c.ID),
		zap.Int64("appointment_id", c.AppointmentID),
		zap.Time("occurred_at", c.OccurredAt),
	)
	return c, nil
}

func (s *Service) GetConsultation(ctx context.Context, id int64) (*Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get consultation: %w", err)
	}
	if _, ok := actor.FromContext(ctx); ok {
		if _, err := s.appts.GetAppointment(ctx, c.AppointmentID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ListConsultations returns consultations ordered by occurrence. An attached
// actor only sees consultations of their own appointments.
func (s *Service) ListConsultations(ctx context.Context, f ListFilter) ([]Consultation, error) {
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return nil, apperr.Validation(map[string]string{"date_to": "date_to must not be before date_from"})
	}

	if a, ok := actor.FromContext(ctx); ok {
		id := a.ID
		switch a.Role {
		case actor.RoleRequester:
			if f.RequesterID != nil && *f.RequesterID != id {
				return nil, apperr.New(apperr.ErrForbidden, "requesters may only list their own consultations")
			}
			f.RequesterID = &id
		case actor.RoleProvider:
			if f.ProviderID != nil && *f.ProviderID != id {
				return nil, apperr.New(apperr.ErrForbidden, "providers may only list their own consultations")
			}
			f.ProviderID = &id
		}
	}

	consultations, err := s.repo.List(ctx, f.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	return consultations, nil
}
