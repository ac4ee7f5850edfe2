package appointment

import (
	"time"
)

type State string

const (
	StateRequested State = "requested"
	StateConfirmed State = "confirmed"
	StateRejected  State = "rejected"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
)

func (s State) Valid() bool {
	switch s {
	case StateRequested, StateConfirmed, StateRejected, StateCancelled, StateCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further confirm, reject or complete is allowed.
// Cancel is still accepted from every state.
func (s State) Terminal() bool {
	return s == StateRejected || s == StateCancelled || s == StateCompleted
}

// Event names a recorded mutation in the transition log.
type Event string

const (
	EventRequested Event = "requested"
	EventConfirmed Event = "confirmed"
	EventRejected  Event = "rejected"
	EventCancelled Event = "cancelled"
	EventCompleted Event = "completed"
	EventUpdated   Event = "updated"
)

type Appointment struct {
	ID                 int64
	RequesterID        int64
	ProviderID         int64
	RequestedTime      time.Time
	ConfirmedTime      *time.Time
	State              State
	Reason             string
	Notes              string
	CancellationReason string
	CreatedAt          time.Time
}

// IsParticipant reports whether userID is the requester or the provider.
func (a *Appointment) IsParticipant(userID int64) bool {
	return a.RequesterID == userID || a.ProviderID == userID
}

// Transition is one append-only entry of an appointment's history.
type Transition struct {
	ID            int64
	AppointmentID int64
	Event         Event
	State         State
	ActorID       *int64
	OccurredAt    time.Time
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	RequestedTime *time.Time
	ConfirmedTime *time.Time
	Reason        *string
	Notes         *string
}

func (p Patch) Empty() bool {
	return p.RequestedTime == nil && p.ConfirmedTime == nil && p.Reason == nil && p.Notes == nil
}

type RequestInput struct {
	RequesterID   int64
	ProviderID    int64
	RequestedTime time.Time
	Reason        string
}

type ListFilter struct {
	DateFrom    *time.Time // inclusive, on RequestedTime
	DateTo      *time.Time // inclusive, on RequestedTime
	State       *State
	ProviderID  *int64
	RequesterID *int64
	Limit       int
	Offset      int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalize clamps paging to the supported range.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// NormalizeTime truncates t to the precision the store keeps, so confirmed
// times compare equal before and after a round trip.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
