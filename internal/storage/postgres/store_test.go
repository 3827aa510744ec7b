package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/tripdesk/internal/models"
	"github.com/hongminglow/tripdesk/internal/storage"
)

// TestStoreIntegration exercises the identity store against a live Postgres database.
func TestStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_STORE_INTEGRATION") != "true" {
		t.Skip("set RUN_STORE_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dbURL)
	require.NoError(t, err)
	defer store.Close()

	tenant, err := store.CreateTenant(ctx, models.Tenant{Name: fmt.Sprintf("agency_%d", time.Now().UnixNano())})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, tenant.Status)

	email := fmt.Sprintf("agent_%d@example.com", time.Now().UnixNano())
	created, err := store.CreateUser(ctx, models.User{
		TenantID:          tenant.ID,
		Email:             email,
		FirstName:         "Ada",
		LastName:          "Agent",
		Role:              models.RoleAgent,
		Status:            models.StatusActive,
		PasswordHash:      "hash",
		VerificationToken: "verify-" + email,
	})
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, models.User{TenantID: tenant.ID, Email: email, Role: models.RoleAgent, Status: models.StatusActive, PasswordHash: "hash"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	found, err := store.FindUserByEmail(ctx, email, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = store.FindUserByEmail(ctx, email, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	byToken, err := store.FindUserByVerificationToken(ctx, "verify-"+email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byToken.ID)

	expiry := time.Now().Add(time.Hour)
	byToken.VerificationToken = ""
	byToken.EmailVerified = true
	byToken.ResetToken = "reset-" + email
	byToken.ResetTokenExpiry = &expiry
	saved, err := store.SaveUser(ctx, byToken)
	require.NoError(t, err)
	assert.True(t, saved.EmailVerified)

	_, err = store.FindUserByVerificationToken(ctx, "verify-"+email)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.FindUserByResetToken(ctx, "reset-"+email, time.Now())
	require.NoError(t, err)
	_, err = store.FindUserByResetToken(ctx, "reset-"+email, expiry.Add(time.Minute))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
