package consultation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-consultations/internal/apperr"
	"github.com/hackgods/appointment-consultations/internal/appointment"
	"github.com/hackgods/appointment-consultations/internal/db"
)

func TestPgRepository_StateGatedInsert(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	require.NoError(t, db.Migrate(dsn))

	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	appts := appointment.NewService(appointment.NewPgRepository(pool), nil, zap.NewNop())
	svc := NewService(NewPgRepository(pool), appts, zap.NewNop())

	provider := time.Now().UnixNano() % 1_000_000_000_000
	at := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)

	a, err := appts.RequestAppointment(ctx, appointment.RequestInput{RequesterID: 1, ProviderID: provider, RequestedTime: at})
	require.NoError(t, err)

	_, err = svc.CreateConsultation(ctx, CreateInput{AppointmentID: a.ID, Description: "too early"})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = appts.ConfirmAppointment(ctx, a.ID, at)
	require.NoError(t, err)

	c, err := svc.CreateConsultation(ctx, CreateInput{AppointmentID: a.ID, Description: "all good"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.AppointmentID)

	// the conditional insert rejects a cancelled appointment even when the
	// service-level check is bypassed
	_, err = appts.CancelAppointment(ctx, a.ID, "")
	require.NoError(t, err)
	_, err = NewPgRepository(pool).Create(ctx, &Consultation{AppointmentID: a.ID, Description: "late", OccurredAt: at})
	assert.ErrorIs(t, err, ErrAppointmentNotConfirmed)

	list, err := svc.ListConsultations(ctx, ListFilter{ProviderID: &provider})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}
