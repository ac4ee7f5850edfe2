package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-consultations/internal/apperr"
	"github.com/hackgods/appointment-consultations/internal/appointment"
	"github.com/hackgods/appointment-consultations/internal/config"
	"github.com/hackgods/appointment-consultations/internal/consultation"
	"github.com/hackgods/appointment-consultations/internal/db"
	"github.com/hackgods/appointment-consultations/internal/logger"
)

var reasons = []string{
	"Annual checkup",
	"Persistent headache",
	"Follow-up on lab results",
	"Skin rash",
	"Back pain",
	"Vaccination",
	"Blood pressure review",
	"Sleep problems",
	"Knee injury",
	"Prescription renewal",
}

var findings = []string{
	"Vitals normal, no further action needed.",
	"Prescribed a two week course of antibiotics.",
	"Referred to a specialist for further evaluation.",
	"Ordered blood work, results to be reviewed at next visit.",
	"Recommended physiotherapy twice a week.",
	"Adjusted dosage of current medication.",
	"Advised rest and increased fluid intake.",
}

type seedCounts struct {
	requested, confirmed, conflicts, consultations, completed, cancelled, rejected int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	// Seeding runs without an actor, so no authorization applies.
	appointments := appointment.NewService(appointment.NewPgRepository(pool), nil, zap.NewNop())
	consultations := consultation.NewService(consultation.NewPgRepository(pool), appointments, zap.NewNop())

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	counts, err := seed(context.Background(), faker, appointments, consultations,
		getInt("SEED_APPOINTMENTS", 500), getInt("SEED_PROVIDERS", 25), getInt("SEED_REQUESTERS", 2000))
	if err != nil {
		log.Fatal("seed appointments", zap.Error(err))
	}

	log.Info("seed complete",
		zap.Int("requested", counts.requested),
		zap.Int("confirmed", counts.confirmed),
		zap.Int("slot_conflicts", counts.conflicts),
		zap.Int("consultations", counts.consultations),
		zap.Int("completed", counts.completed),
		zap.Int("cancelled", counts.cancelled),
		zap.Int("rejected", counts.rejected),
	)
}

// seed requests count appointments on half-hour slots over the next two weeks
// and walks a share of them through the lifecycle. Slot collisions between
// providers' confirmations are expected and counted.
func seed(ctx context.Context, faker *gofakeit.Faker, appts *appointment.Service, consults *consultation.Service,
	count, providers, requesters int) (seedCounts, error) {
	var c seedCounts
	base := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)

	for i := 0; i < count; i++ {
		at := base.Add(time.Duration(faker.Number(0, 14*24*2-1)) * 30 * time.Minute)

		appt, err := appts.RequestAppointment(ctx, appointment.RequestInput{
			RequesterID:   int64(faker.Number(1, requesters)),
			ProviderID:    int64(1_000_000 + faker.Number(1, providers)),
			RequestedTime: at,
			Reason:        faker.RandomString(reasons),
		})
		if err != nil {
			return c, fmt.Errorf("request: %w", err)
		}
		c.requested++

		switch roll := faker.Number(1, 100); {
		case roll <= 10:
			if _, err := appts.RejectAppointment(ctx, appt.ID, "Provider unavailable"); err != nil {
				return c, fmt.Errorf("reject %d: %w", appt.ID, err)
			}
			c.rejected++
			continue
		case roll <= 30:
			continue
		}

		if _, err := appts.ConfirmAppointment(ctx, appt.ID, at); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				c.conflicts++
				continue
			}
			return c, fmt.Errorf("confirm %d: %w", appt.ID, err)
		}
		c.confirmed++

		switch roll := faker.Number(1, 100); {
		case roll <= 15:
			if _, err := appts.CancelAppointment(ctx, appt.ID, "Patient requested cancellation"); err != nil {
				return c, fmt.Errorf("cancel %d: %w", appt.ID, err)
			}
			c.cancelled++
		case roll <= 60:
			occurred := at.Add(time.Duration(faker.Number(0, 25)) * time.Minute)
			if _, err := consults.CreateConsultation(ctx, consultation.CreateInput{
				AppointmentID: appt.ID,
				Description:   faker.RandomString(findings),
				OccurredAt:    &occurred,
			}); err != nil {
				return c, fmt.Errorf("consultation for %d: %w", appt.ID, err)
			}
			c.consultations++

			if _, err := appts.CompleteAppointment(ctx, appt.ID, ""); err != nil {
				return c, fmt.Errorf("complete %d: %w", appt.ID, err)
			}
			c.completed++
		}
	}
	return c, nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
