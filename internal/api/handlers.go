package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/appointment-consultations/internal/appointment"
)

func requestAppointmentHandler(svc AppointmentService, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RequestAppointmentRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if err := v.Validate(&req); err != nil {
			writeValidationError(w, v.FormatValidationErrors(err))
			return
		}

		appt, err := svc.RequestAppointment(r.Context(), appointment.RequestInput{
			RequesterID:   req.RequesterID,
			ProviderID:    req.ProviderID,
			RequestedTime: *req.RequestedTime,
			Reason:        req.Reason,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p := queryParser{values: q, fields: map[string]string{}}

		f := appointment.ListFilter{
			DateFrom:    p.timeParam("date_from"),
			DateTo:      p.timeParam("date_to"),
			ProviderID:  p.idParam("provider_id"),
			RequesterID: p.idParam("requester_id"),
			Limit:       p.intParam("limit"),
			Offset:      p.intParam("offset"),
		}
		if s := q.Get("state"); s != "" {
			state := appointment.State(s)
			f.State = &state
		}
		if len(p.fields) > 0 {
			writeValidationError(w, p.fields)
			return
		}

		appointments, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		f = f.Normalize()
		resp := AppointmentListResponse{
			Appointments: make([]AppointmentResponse, 0, len(appointments)),
			Limit:        f.Limit,
			Offset:       f.Offset,
		}
		for i := range appointments {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&appointments[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func appointmentHistoryHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		history, err := svc.GetAppointmentHistory(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		resp := HistoryResponse{AppointmentID: id, Transitions: make([]TransitionResponse, 0, len(history))}
		for _, t := range history {
			resp.Transitions = append(resp.Transitions, TransitionResponse{
				ID:         t.ID,
				Event:      string(t.Event),
				State:      string(t.State),
				ActorID:    t.ActorID,
				OccurredAt: t.OccurredAt.UTC(),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func updateAppointmentHandler(svc AppointmentService, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if err := v.Validate(&req); err != nil {
			writeValidationError(w, v.FormatValidationErrors(err))
			return
		}

		appt, err := svc.UpdateAppointment(r.Context(), id, appointment.Patch{
			RequestedTime: req.RequestedTime,
			ConfirmedTime: req.ConfirmedTime,
			Reason:        req.Reason,
			Notes:         req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc AppointmentService, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req ConfirmAppointmentRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if err := v.Validate(&req); err != nil {
			writeValidationError(w, v.FormatValidationErrors(err))
			return
		}

		appt, err := svc.ConfirmAppointment(r.Context(), id, *req.ConfirmedTime)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rejectAppointmentHandler(svc AppointmentService, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req RejectAppointmentRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		if err := v.Validate(&req); err != nil {
			writeValidationError(w, v.FormatValidationErrors(err))
			return
		}

		appt, err := svc.RejectAppointment(r.Context(), id, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc AppointmentService, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		if err := v.Validate(&req); err != nil {
			writeValidationError(w, v.FormatValidationErrors(err))
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id, req.CancellationReason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func completeAppointmentHandler(svc AppointmentService, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req CompleteAppointmentRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		if err := v.Validate(&req); err != nil {
			writeValidationError(w, v.FormatValidationErrors(err))
			return
		}

		appt, err := svc.CompleteAppointment(r.Context(), id, req.Notes)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// Helpers

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into dst. An empty body is accepted
// when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
	return false
}

// queryParser collects per-parameter errors while reading list filters.
type queryParser struct {
	values url.Values
	fields map[string]string
}

func (p queryParser) timeParam(key string) *time.Time {
	raw := p.values.Get(key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		p.fields[key] = key + " must be an RFC 3339 timestamp"
		return nil
	}
	return &t
}

func (p queryParser) idParam(key string) *int64 {
	raw := p.values.Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		p.fields[key] = key + " must be a positive integer"
		return nil
	}
	return &v
}

func (p queryParser) intParam(key string) int {
	raw := p.values.Get(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		p.fields[key] = key + " must be a non-negative integer"
		return 0
	}
	return v
}
