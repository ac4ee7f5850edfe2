package appointment

import (
	"strings"
	"time"

	"github.com/hackgods/appointment-consultations/internal/apperr"
)

// The methods below are the only writers of State and ConfirmedTime. Each
// returns the event to record, or an empty event when nothing changed.

func invalidTransition(op string, from State) error {
	return apperr.Newf(apperr.ErrInvalidState, "cannot %s an appointment in state %s", op, from)
}

// Confirm moves the appointment to confirmed at the given time. Slot
// exclusivity is checked by the repository in the same transaction.
func (a *Appointment) Confirm(at time.Time) (Event, error) {
	if a.State.Terminal() {
		return "", invalidTransition("confirm", a.State)
	}
	if at.IsZero() {
		return "", ErrConfirmedTimeRequired
	}

	t := NormalizeTime(at)
	if a.State == StateConfirmed && a.ConfirmedTime != nil && a.ConfirmedTime.Equal(t) {
		// retried confirmation of the slot already held
		return "", nil
	}
	a.ConfirmedTime = &t
	a.State = StateConfirmed
	return EventConfirmed, nil
}

// Reject declines a request that was never confirmed.
func (a *Appointment) Reject(reason string) (Event, error) {
	if a.State != StateRequested {
		return "", invalidTransition("reject", a.State)
	}
	a.State = StateRejected
	if reason = strings.TrimSpace(reason); reason != "" {
		a.CancellationReason = reason
	}
	return EventRejected, nil
}

// Cancel is accepted from every state. Cancelling twice is a no-op and keeps
// the first cancellation reason.
func (a *Appointment) Cancel(reason string) (Event, error) {
	if a.State == StateCancelled {
		return "", nil
	}
	a.State = StateCancelled
	a.CancellationReason = strings.TrimSpace(reason)
	return EventCancelled, nil
}

// Complete records attendance. Only a confirmed appointment can complete.
func (a *Appointment) Complete(notes string) (Event, error) {
	if a.State != StateConfirmed {
		return "", invalidTransition("complete", a.State)
	}
	a.State = StateCompleted
	if notes = strings.TrimSpace(notes); notes != "" {
		a.Notes = notes
	}
	return EventCompleted, nil
}

// Apply patches non-state fields. RequestedTime may change only while the
// appointment is still requested; ConfirmedTime only while it is confirmed,
// which reschedules the confirmed slot and is subject to the same
// exclusivity check as Confirm.
func (a *Appointment) Apply(p Patch) (Event, error) {
	if p.Empty() {
		return "", apperr.Validation(map[string]string{"patch": "at least one field must be provided"})
	}

	fields := map[string]string{}
	if p.RequestedTime != nil && p.RequestedTime.IsZero() {
		fields["requested_time"] = "requested_time must be a valid timestamp"
	}
	if p.ConfirmedTime != nil && p.ConfirmedTime.IsZero() {
		fields["confirmed_time"] = "confirmed_time must be a valid timestamp"
	}
	if len(fields) > 0 {
		return "", apperr.Validation(fields)
	}

	if p.RequestedTime != nil && a.State != StateRequested {
		return "", invalidTransition("change the requested time of", a.State)
	}
	if p.ConfirmedTime != nil && a.State != StateConfirmed {
		return "", invalidTransition("change the confirmed time of", a.State)
	}

	if p.RequestedTime != nil {
		a.RequestedTime = NormalizeTime(*p.RequestedTime)
	}
	if p.ConfirmedTime != nil {
		t := NormalizeTime(*p.ConfirmedTime)
		a.ConfirmedTime = &t
	}
	if p.Reason != nil {
		a.Reason = strings.TrimSpace(*p.Reason)
	}
	if p.Notes != nil {
		a.Notes = strings.TrimSpace(*p.Notes)
	}
	return EventUpdated, nil
}

// NeedsSlotCheck reports whether moving from before to after claims a
// confirmed slot the appointment did not already hold.
func NeedsSlotCheck(before, after Appointment) bool {
	if after.State != StateConfirmed || after.ConfirmedTime == nil {
		return false
	}
	if before.State != StateConfirmed || before.ConfirmedTime == nil {
		return true
	}
	return !before.ConfirmedTime.Equal(*after.ConfirmedTime)
}
