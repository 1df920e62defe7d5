package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/social-harvester/internal/checkpoint"
)

func TestReadUnknownKeyReturnsSentinel(t *testing.T) {
	t.Parallel()

	store := New()
	cp, err := store.Read(context.Background(), "user:alice:posts")
	require.NoError(t, err)
	require.Equal(t, checkpoint.NeverRun, cp.LastTimestamp)
	require.False(t, cp.LastSucceeded)
}

func TestWriteReplacesRow(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, checkpoint.Checkpoint{Key: "community:golang", LastTimestamp: 1000, LastSucceeded: true}))
	require.NoError(t, store.Write(ctx, checkpoint.Checkpoint{Key: "community:golang", LastTimestamp: 2000, LastSucceeded: false}))

	cp, err := store.Read(ctx, "community:golang")
	require.NoError(t, err)
	require.Equal(t, int64(2000), cp.LastTimestamp)
	require.False(t, cp.LastSucceeded)
}

func TestListOrdersByKey(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, checkpoint.Checkpoint{Key: "user:alice:posts"}))
	require.NoError(t, store.Write(ctx, checkpoint.Checkpoint{Key: "community:golang"}))

	cps, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	require.Equal(t, "community:golang", cps[0].Key)
	require.Equal(t, "user:alice:posts", cps[1].Key)
}
