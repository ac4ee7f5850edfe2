package consultation

import "time"

// Consultation records what happened during a confirmed appointment.
type Consultation struct {
	ID            int64
	AppointmentID int64
	Description   string
	OccurredAt    time.Time
	CreatedAt     time.Time
}

// CreateInput is the payload of CreateConsultation. ProviderID and
// RequesterID are optional cross-checks against the appointment.
type CreateInput struct {
	AppointmentID int64
	Description   string
	OccurredAt    *time.Time
	ProviderID    *int64
	RequesterID   *int64
}

type ListFilter struct {
	DateFrom      *time.Time // inclusive, on OccurredAt
	DateTo        *time.Time // inclusive, on OccurredAt
	AppointmentID *int64
	ProviderID    *int64
	RequesterID   *int64
	Limit         int
	Offset        int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

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
