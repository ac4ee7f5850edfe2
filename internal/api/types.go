package api

import (
	"time"

	"github.com/hackgods/appointment-consultations/internal/appointment"
	"github.com/hackgods/appointment-consultations/internal/consultation"
)

type RequestAppointmentRequest struct {
	RequesterID   int64      `json:"requester_id" validate:"required,gt=0"`
	ProviderID    int64      `json:"provider_id" validate:"required,gt=0"`
	RequestedTime *time.Time `json:"requested_time" validate:"required"`
	Reason        string     `json:"reason" validate:"max=2000"`
}

type UpdateAppointmentRequest struct {
	RequestedTime *time.Time `json:"requested_time"`
	ConfirmedTime *time.Time `json:"confirmed_time"`
	Reason        *string    `json:"reason" validate:"omitempty,max=2000"`
	Notes         *string    `json:"notes" validate:"omitempty,max=10000"`
}

type ConfirmAppointmentRequest struct {
	ConfirmedTime *time.Time `json:"confirmed_time" validate:"required"`
}

type RejectAppointmentRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type CancelAppointmentRequest struct {
	CancellationReason string `json:"cancellation_reason" validate:"max=2000"`
}

type CompleteAppointmentRequest struct {
	Notes string `json:"notes" validate:"max=10000"`
}

type CreateConsultationRequest struct {
	AppointmentID int64      `json:"appointment_id" validate:"required,gt=0"`
	Description   string     `json:"description" validate:"required,max=10000"`
	OccurredAt    *time.Time `json:"occurred_at"`
	ProviderID    *int64     `json:"provider_id" validate:"omitempty,gt=0"`
	RequesterID   *int64     `json:"requester_id" validate:"omitempty,gt=0"`
}

type AppointmentResponse struct {
	ID                 int64      `json:"id"`
	RequesterID        int64      `json:"requester_id"`
	ProviderID         int64      `json:"provider_id"`
	RequestedTime      time.Time  `json:"requested_time"`
	ConfirmedTime      *time.Time `json:"confirmed_time,omitempty"`
	State              string     `json:"state"`
	Reason             string     `json:"reason,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type TransitionResponse struct {
	ID         int64     `json:"id"`
	Event      string    `json:"event"`
	State      string    `json:"state"`
	ActorID    *int64    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type HistoryResponse struct {
	AppointmentID int64                `json:"appointment_id"`
	Transitions   []TransitionResponse `json:"transitions"`
}

type ConsultationResponse struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointment_id"`
	Description   string    `json:"description"`
	OccurredAt    time.Time `json:"occurred_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type ConsultationListResponse struct {
	Consultations []ConsultationResponse `json:"consultations"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 a.ID,
		RequesterID:        a.RequesterID,
		ProviderID:         a.ProviderID,
		RequestedTime:      a.RequestedTime.UTC(),
		State:              string(a.State),
		Reason:             a.Reason,
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt.UTC(),
	}
	if a.ConfirmedTime != nil {
		ct := a.ConfirmedTime.UTC()
		resp.ConfirmedTime = &ct
	}
	return resp
}

func toConsultationResponse(c *consultation.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:            c.ID,
		AppointmentID: c.AppointmentID,
		Description:   c.Description,
		OccurredAt:    c.OccurredAt.UTC(),
		CreatedAt:     c.CreatedAt.UTC(),
	}
}
