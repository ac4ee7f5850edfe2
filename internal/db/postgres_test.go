package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@db:5432/app?sslmode=disable", "pgx5://u:p@db:5432/app?sslmode=disable"},
		{"postgresql://db/app", "pgx5://db/app"},
		{"pgx5://db/app", "pgx5://db/app"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, migrateURL(tt.in))
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "0001_appointments.up.sql")
	assert.Contains(t, names, "0002_consultations.up.sql")
	assert.Len(t, names, 4)
}

func TestIsUniqueViolation(t *testing.T) {
	slot := &pgconn.PgError{Code: "23505", ConstraintName: "appointments_confirmed_slot_key"}

	assert.True(t, IsUniqueViolation(slot, "appointments_confirmed_slot_key"))
	assert.True(t, IsUniqueViolation(fmt.Errorf("update: %w", slot), ""))
	assert.False(t, IsUniqueViolation(slot, "other_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}
