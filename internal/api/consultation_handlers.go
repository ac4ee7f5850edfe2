package api

import (
	"net/http"

	"github.com/hackgods/appointment-consultations/internal/consultation"
)

func createConsultationHandler(svc ConsultationService, v *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateConsultationRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if err := v.Validate(&req); err != nil {
			writeValidationError(w, v.FormatValidationErrors(err))
			return
		}

		c, err := svc.CreateConsultation(r.Context(), consultation.CreateInput{
			AppointmentID: req.AppointmentID,
			Description:   req.Description,
			OccurredAt:    req.OccurredAt,
			ProviderID:    req.ProviderID,
			RequesterID:   req.RequesterID,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toConsultationResponse(c))
	}
}

func listConsultationsHandler(svc ConsultationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := queryParser{values: r.URL.Query(), fields: map[string]string{}}
		f := consultation.ListFilter{
			DateFrom:      p.timeParam("date_from"),
			DateTo:        p.timeParam("date_to"),
			AppointmentID: p.idParam("appointment_id"),
			ProviderID:    p.idParam("provider_id"),
			RequesterID:   p.idParam("requester_id"),
			Limit:         p.intParam("limit"),
			Offset:        p.intParam("offset"),
		}
		if len(p.fields) > 0 {
			writeValidationError(w, p.fields)
			return
		}

		consultations, err := svc.ListConsultations(r.Context(), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		f = f.Normalize()
		resp := ConsultationListResponse{
			Consultations: make([]ConsultationResponse, 0, len(consultations)),
			Limit:         f.Limit,
			Offset:        f.Offset,
		}
		for i := range consultations {
			resp.Consultations = append(resp.Consultations, toConsultationResponse(&consultations[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getConsultationHandler(svc ConsultationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		c, err := svc.GetConsultation(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toConsultationResponse(c))
	}
}
