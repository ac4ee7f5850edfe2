package appointment

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/appointment-consultations/internal/apperr"
	"github.com/hackgods/appointment-consultations/internal/db"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	require.NoError(t, db.Migrate(dsn))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// uniqueProvider keeps runs against a shared database from seeing each other.
func uniqueProvider() int64 {
	return time.Now().UnixNano() % 1_000_000_000_000
}

func TestPgRepository_ConcurrentConfirm(t *testing.T) {
	pool := testPool(t)
	svc := NewService(NewPgRepository(pool), nil, zap.NewNop())
	ctx := context.Background()

	provider := uniqueProvider()
	at := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)

	const n = 8
	ids := make([]int64, n)
	for i := range ids {
		a, err := svc.RequestAppointment(ctx, RequestInput{RequesterID: int64(i + 1), ProviderID: provider, RequestedTime: at})
		require.NoError(t, err)
		ids[i] = a.ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		start     = make(chan struct{})
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			<-start
			_, err := svc.ConfirmAppointment(ctx, id, at)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)

	confirmed := StateConfirmed
	list, err := svc.ListAppointments(ctx, ListFilter{ProviderID: &provider, State: &confirmed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].ConfirmedTime.Equal(at))
}

func TestPgRepository_LifecycleAndHistory(t *testing.T) {
	pool := testPool(t)
	repo := NewPgRepository(pool)
	svc := NewService(repo, nil, zap.NewNop())
	ctx := context.Background()

	provider := uniqueProvider()
	at := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)

	a, err := svc.RequestAppointment(ctx, RequestInput{RequesterID: 1, ProviderID: provider, RequestedTime: at, Reason: "checkup"})
	require.NoError(t, err)

	_, err = svc.ConfirmAppointment(ctx, a.ID, at)
	require.NoError(t, err)
	_, err = svc.CompleteAppointment(ctx, a.ID, "fine")
	require.NoError(t, err)
	_, err = svc.CompleteAppointment(ctx, a.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	got, err := svc.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
	assert.Equal(t, "fine", got.Notes)

	history, err := svc.GetAppointmentHistory(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, EventCompleted, history[2].Event)

	_, err = repo.GetByID(ctx, -1)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}
