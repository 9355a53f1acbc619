package repository

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/domain"
)

func tempDB(t *testing.T) *badger.DB {
	t.Helper()

	db, err := OpenDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestClientCreateAndGet(t *testing.T) {
	repo := NewClientRepository(tempDB(t), zap.NewNop())
	ctx := context.Background()

	client, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, client.APIKey)

	got, err := repo.Get(ctx, client.APIKey)
	require.NoError(t, err)
	assert.Equal(t, client.APIKey, got.APIKey)
}

func TestClientCreateAllocatesUniqueKeys(t *testing.T) {
	repo := NewClientRepository(tempDB(t), zap.NewNop())
	ctx := context.Background()

	a, err := repo.Create(ctx)
	require.NoError(t, err)
	b, err := repo.Create(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, a.APIKey, b.APIKey)
}

func TestClientGetUnknown(t *testing.T) {
	repo := NewClientRepository(tempDB(t), zap.NewNop())

	_, err := repo.Get(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientDelete(t *testing.T) {
	repo := NewClientRepository(tempDB(t), zap.NewNop())
	ctx := context.Background()

	client, err := repo.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, client.APIKey))

	_, err = repo.Get(ctx, client.APIKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// deleting again is safe
	assert.NoError(t, repo.Delete(ctx, client.APIKey))
}
