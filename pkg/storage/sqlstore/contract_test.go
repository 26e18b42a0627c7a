package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/accounts/pkg/auth"
	"github.com/platinummonkey/accounts/pkg/storage"
)

// runStoreContract exercises a migrated store against a real database
func runStoreContract(t *testing.T, s *Store) {
	ctx := context.Background()

	p := &auth.Principal{
		Name:         "A",
		Email:        "a@x.com",
		PasswordHash: "$2a$04$hash",
		Role:         auth.RoleUser,
		Active:       true,
	}
	require.NoError(t, s.Create(ctx, p))
	require.NotEmpty(t, p.ID)

	t.Run("get by email with and without hash", func(t *testing.T) {
		got, err := s.GetByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Empty(t, got.PasswordHash)
		assert.True(t, got.Active)

		withHash, err := s.GetByEmail(ctx, "a@x.com", storage.WithPasswordHash())
		require.NoError(t, err)
		assert.Equal(t, "$2a$04$hash", withHash.PasswordHash)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := s.Create(ctx, &auth.Principal{Name: "B", Email: "a@x.com", PasswordHash: "x", Role: auth.RoleUser, Active: true})
		assert.ErrorIs(t, err, storage.ErrDuplicateEmail)
	})

	t.Run("update and deactivate", func(t *testing.T) {
		name := "Renamed"
		got, err := s.Update(ctx, p.ID, storage.Update{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
		assert.True(t, got.Active)

		inactive := false
		got, err = s.Update(ctx, p.ID, storage.Update{Active: &inactive})
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.Equal(t, "Renamed", got.Name)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, &auth.Principal{Name: "Admin", Email: "admin@x.com", PasswordHash: "x", Role: auth.RoleAdmin, Active: true}))

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, p.ID))
		_, err := s.GetByID(ctx, p.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, p.ID), storage.ErrNotFound)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, s.HealthCheck(ctx))
	})
}
