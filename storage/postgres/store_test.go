package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voting-ledger/models"
	"voting-ledger/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("VOTING_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VOTING_POSTGRES_DSN not set")
	}
	store, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func randomAddress() models.Pubkey {
	var pk models.Pubkey
	id := uuid.New()
	copy(pk[:], id[:])
	return pk
}

func TestCreateGetPut(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	address := randomAddress()

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		return tx.Create(address, []byte("v1"))
	}))

	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.Create(address, []byte("again"))
	})
	assert.ErrorIs(t, err, storage.ErrAlreadyInitialized)

	require.NoError(t, store.Update(ctx, func(tx storage.Tx) error {
		return tx.Put(address, []byte("v2"))
	}))

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		got, err := tx.Get(address)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
		return nil
	}))
}

func TestMissingAccount(t *testing.T) {
	store := openTestStore(t)
	err := store.Update(context.Background(), func(tx storage.Tx) error {
		_, err := tx.Get(randomAddress())
		return err
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
