package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunChainStoreContract runs a suite of tests to verify that a ChainStore implementation
// adheres to the defined interface contract.
func RunChainStoreContract(t *testing.T, store ChainStore) {
	ctx := context.Background()
	chainID := "contract-test-chain-" + time.Now().Format("20060102150405")

	newSnapshot := func(id string) *domain.ChainSnapshot {
		return &domain.ChainSnapshot{
			ID:     id,
			Query:  "2+2?",
			Status: domain.StatusRunning,
			Emission: domain.Emission{
				ChainID:    id,
				Transcript: domain.Transcript{{Title: domain.StepTitle(1, "compute"), Content: "2+2=4"}},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot(chainID)

		err := store.Save(ctx, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, chainID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Query, loaded.Query)
		assert.Equal(t, snap.Status, loaded.Status)
		require.Len(t, loaded.Emission.Transcript, 1)
		assert.Equal(t, "2+2=4", loaded.Emission.Transcript[0].Content)
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, chainID)
		require.NoError(t, err)
		loaded.Emission.Transcript[0].Content = "mutated"

		again, err := store.Load(ctx, chainID)
		require.NoError(t, err)
		assert.Equal(t, "2+2=4", again.Emission.Transcript[0].Content)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+chainID)
		assert.ErrorIs(t, err, domain.ErrChainNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, newSnapshot(chainID))
		require.NoError(t, err)

		err = store.Delete(ctx, chainID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, chainID)
		assert.ErrorIs(t, err, domain.ErrChainNotFound, "Load after Delete should return ErrChainNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := chainID + "-1"
		id2 := chainID + "-2"
		_ = store.Save(ctx, newSnapshot(id1))
		_ = store.Save(ctx, newSnapshot(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		chains, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, chains, id1)
		assert.Contains(t, chains, id2)
	})
}
