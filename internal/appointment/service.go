package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/appointment-consultations/internal/actor"
	"github.com/hackgods/appointment-consultations/internal/apperr"
	redisclient "github.com/hackgods/appointment-consultations/internal/redis"
)

var (
	errNotParticipant = apperr.New(apperr.ErrForbidden, "actor is not a participant of this appointment")
	errNotProvider    = apperr.New(apperr.ErrForbidden, "only the appointment's provider may do this")
	errNotRequester   = apperr.New(apperr.ErrForbidden, "appointments are requested by the requester themselves")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	log    *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, log *zap.Logger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		log:    log,
	}
}

// RequestAppointment creates a new appointment in the requested state.
func (s *Service) RequestAppointment(ctx context.Context, in RequestInput) (*Appointment, error) {
	fields := map[string]string{}
	if in.RequesterID <= 0 {
		fields["requester_id"] = "requester_id is required"
	}
	if in.ProviderID <= 0 {
		fields["provider_id"] = "provider_id is required"
	}
	if in.RequestedTime.IsZero() {
		fields["requested_time"] = "requested_time is required"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation(fields)
	}

	if a, ok := actor.FromContext(ctx); ok {
		if a.Role != actor.RoleRequester || a.ID != in.RequesterID {
			return nil, errNotRequester
		}
	}

	appt, err := s.repo.Create(ctx, &Appointment{
		RequesterID:   in.RequesterID,
		ProviderID:    in.ProviderID,
		RequestedTime: NormalizeTime(in.RequestedTime),
		State:         StateRequested,
		Reason:        strings.TrimSpace(in.Reason),
	}, actor.IDFromContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.log.Info("appointment requested",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("requester_id", appt.RequesterID),
		zap.Int64("provider_id", appt.ProviderID),
		zap.Time("requested_time", appt.RequestedTime),
	)
	return appt, nil
}

// ListAppointments returns appointments matching f ordered by requested time.
// An attached actor only ever sees their own appointments.
func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	if f.State != nil && !f.State.Valid() {
		return nil, apperr.Validation(map[string]string{"state": "unknown state " + string(*f.State)})
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return nil, apperr.Validation(map[string]string{"date_to": "date_to must not be before date_from"})
	}

	f, err := scopeToActor(ctx, f)
	if err != nil {
		return nil, err
	}

	appointments, err := s.repo.List(ctx, f.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func scopeToActor(ctx context.Context, f ListFilter) (ListFilter, error) {
	a, ok := actor.FromContext(ctx)
	if !ok {
		return f, nil
	}

	id := a.ID
	switch a.Role {
	case actor.RoleRequester:
		if f.RequesterID != nil && *f.RequesterID != id {
			return f, apperr.New(apperr.ErrForbidden, "requesters may only list their own appointments")
		}
		f.RequesterID = &id
	case actor.RoleProvider:
		if f.ProviderID != nil && *f.ProviderID != id {
			return f, apperr.New(apperr.ErrForbidden, "providers may only list their own appointments")
		}
		f.ProviderID = &id
	}
	return f, nil
}

// GetAppointment retrieves a single appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if err := authorizeParticipant(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// GetAppointmentHistory returns the recorded transitions of an appointment.
func (s *Service) GetAppointmentHistory(ctx context.Context, id int64) ([]Transition, error) {
	if _, err := s.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("appointment history: %w", err)
	}
	return history, nil
}

// ConfirmAppointment assigns the confirmed time and moves the appointment to
// confirmed. Two confirmations of the same provider slot never both succeed:
// the loser gets a conflict error.
func (s *Service) ConfirmAppointment(ctx context.Context, id int64, confirmedTime time.Time) (*Appointment, error) {
	return s.claimSlot(ctx, id, confirmedTime, "confirm", func(a *Appointment) (Event, error) {
		if err := authorizeProvider(ctx, a); err != nil {
			return "", err
		}
		return a.Confirm(confirmedTime)
	})
}

// UpdateAppointment patches reason, notes and the appointment times. Changing
// the confirmed time goes through the same exclusivity check as confirm.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, p Patch) (*Appointment, error) {
	fn := func(a *Appointment) (Event, error) {
		if err := authorizeParticipant(ctx, a); err != nil {
			return "", err
		}
		if p.ConfirmedTime != nil {
			if err := authorizeProvider(ctx, a); err != nil {
				return "", err
			}
		}
		return a.Apply(p)
	}

	if p.ConfirmedTime != nil && !p.ConfirmedTime.IsZero() {
		return s.claimSlot(ctx, id, *p.ConfirmedTime, "update", fn)
	}
	return s.mutate(ctx, id, "update", fn)
}

// RejectAppointment declines a requested appointment.
func (s *Service) RejectAppointment(ctx context.Context, id int64, reason string) (*Appointment, error) {
	return s.mutate(ctx, id, "reject", func(a *Appointment) (Event, error) {
		if err := authorizeProvider(ctx, a); err != nil {
			return "", err
		}
		return a.Reject(reason)
	})
}

// CancelAppointment cancels from any state. Cancelling an already cancelled
// appointment succeeds without changing it.
func (s *Service) CancelAppointment(ctx context.Context, id int64, reason string) (*Appointment, error) {
	return s.mutate(ctx, id, "cancel", func(a *Appointment) (Event, error) {
		if err := authorizeParticipant(ctx, a); err != nil {
			return "", err
		}
		return a.Cancel(reason)
	})
}

// CompleteAppointment marks a confirmed appointment as attended.
func (s *Service) CompleteAppointment(ctx context.Context, id int64, notes string) (*Appointment, error) {
	return s.mutate(ctx, id, "complete", func(a *Appointment) (Event, error) {
		if err := authorizeProvider(ctx, a); err != nil {
			return "", err
		}
		return a.Complete(notes)
	})
}

// claimSlot runs a mutation that may claim the provider slot at under the
// slot lock. The mutation is first applied to a copy of the current row so
// refused or no-op calls never hold the lock; Mutate re-runs it under the row
// lock either way.
func (s *Service) claimSlot(ctx context.Context, id int64, at time.Time, op string, fn MutateFunc) (*Appointment, error) {
	if at.IsZero() {
		// let the state machine report the precise error
		return s.mutate(ctx, id, op, fn)
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s appointment: %w", op, err)
	}

	dry := *appt
	ev, err := fn(&dry)
	if err != nil {
		return nil, fmt.Errorf("%s appointment: %w", op, err)
	}
	if ev == "" || !NeedsSlotCheck(*appt, dry) {
		return s.mutate(ctx, id, op, fn)
	}

	var updated *Appointment
	err = s.locker.WithSlotLock(ctx, appt.ProviderID, NormalizeTime(at), func(lockCtx context.Context) error {
		var err error
		updated, err = s.mutate(lockCtx, id, op, fn)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.log.Warn("slot lock contended",
				zap.Int64("appointment_id", id),
				zap.Int64("provider_id", appt.ProviderID),
				zap.Time("confirmed_time", at),
			)
			return nil, ErrSlotBusy
		}
		return nil, err
	}
	return updated, nil
}

func (s *Service) mutate(ctx context.Context, id int64, op string, fn MutateFunc) (*Appointment, error) {
	appt, err := s.repo.Mutate(ctx, id, actor.IDFromContext(ctx), fn)
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			s.log.Info("confirmed slot conflict", zap.Int64("appointment_id", id), zap.String("op", op))
		}
		return nil, fmt.Errorf("%s appointment: %w", op, err)
	}

	s.log.Info("appointment "+op,
		zap.Int64("appointment_id", appt.ID),
		zap.String("state", string(appt.State)),
	)
	return appt, nil
}

func authorizeParticipant(ctx context.Context, appt *Appointment) error {
	a, ok := actor.FromContext(ctx)
	if !ok {
		return nil
	}
	if !appt.IsParticipant(a.ID) {
		return errNotParticipant
	}
	return nil
}

func authorizeProvider(ctx context.Context, appt *Appointment) error {
	a, ok := actor.FromContext(ctx)
	if !ok {
		return nil
	}
	if a.Role != actor.RoleProvider || a.ID != appt.ProviderID {
		return errNotProvider
	}
	return nil
}
