package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-consultations/internal/appointment"
	"github.com/hackgods/appointment-consultations/internal/consultation"
)

type AppointmentService interface {
	RequestAppointment(ctx context.Context, in appointment.RequestInput) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*appointment.Appointment, error)
	GetAppointmentHistory(ctx context.Context, id int64) ([]appointment.Transition, error)
	UpdateAppointment(ctx context.Context, id int64, p appointment.Patch) (*appointment.Appointment, error)
	ConfirmAppointment(ctx context.Context, id int64, confirmedTime time.Time) (*appointment.Appointment, error)
	RejectAppointment(ctx context.Context, id int64, reason string) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id int64, reason string) (*appointment.Appointment, error)
	CompleteAppointment(ctx context.Context, id int64, notes string) (*appointment.Appointment, error)
}

type ConsultationService interface {
	CreateConsultation(ctx context.Context, in consultation.CreateInput) (*consultation.Consultation, error)
	ListConsultations(ctx context.Context, f consultation.ListFilter) ([]consultation.Consultation, error)
	GetConsultation(ctx context.Context, id int64) (*consultation.Consultation, error)
}

type RouterConfig struct {
	Appointments  AppointmentService
	Consultations ConsultationService
	PgPool        *pgxpool.Pool
	Redis         *redis.Client // optional
	Logger        *zap.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	v := NewValidator()

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", requestAppointmentHandler(cfg.Appointments, v))
			r.Get("/", listAppointmentsHandler(cfg.Appointments))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
			r.Patch("/{id}", updateAppointmentHandler(cfg.Appointments, v))
			r.Post("/{id}/confirm", confirmAppointmentHandler(cfg.Appointments, v))
			r.Post("/{id}/reject", rejectAppointmentHandler(cfg.Appointments, v))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments, v))
			r.Post("/{id}/complete", completeAppointmentHandler(cfg.Appointments, v))
			r.Get("/{id}/history", appointmentHistoryHandler(cfg.Appointments))
		})

		r.Route("/consultations", func(r chi.Router) {
			r.Post("/", createConsultationHandler(cfg.Consultations, v))
			r.Get("/", listConsultationsHandler(cfg.Consultations))
			r.Get("/{id}", getConsultationHandler(cfg.Consultations))
		})
	})

	return r
}
