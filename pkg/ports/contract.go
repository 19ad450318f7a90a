package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHistoryStoreContract runs a suite of tests to verify that a HistoryStore implementation
// adheres to the defined interface contract.
func RunHistoryStoreContract(t *testing.T, store HistoryStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Append and Get", func(t *testing.T) {
		first, err := store.Append(ctx, sessionID, domain.Artifact{RunID: "r1", Query: "q1", Document: "<html>1</html>"})
		require.NoError(t, err)
		second, err := store.Append(ctx, sessionID, domain.Artifact{RunID: "r2", Query: "q2", Document: "<html>2</html>"})
		require.NoError(t, err)

		assert.Equal(t, 0, first.Index)
		assert.Equal(t, 1, second.Index)

		got, err := store.Get(ctx, sessionID, 1)
		require.NoError(t, err)
		assert.Equal(t, "r2", got.RunID)
		assert.Equal(t, "<html>2</html>", got.Document)
	})

	t.Run("List Preserves Order", func(t *testing.T) {
		list, err := store.List(ctx, sessionID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		for i, a := range list {
			assert.Equal(t, i, a.Index)
			assert.Equal(t, fmt.Sprintf("r%d", i+1), a.RunID)
		}
	})

	t.Run("Sessions Lists Appended", func(t *testing.T) {
		ids, err := store.Sessions(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, sessionID)
		assert.NotContains(t, ids, "non-existent-"+sessionID)
	})

	t.Run("Unknown Session", func(t *testing.T) {
		_, err := store.List(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Index Out Of Range", func(t *testing.T) {
		_, err := store.Get(ctx, sessionID, 7)
		assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
		_, err = store.Get(ctx, sessionID, -1)
		assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	})
}
