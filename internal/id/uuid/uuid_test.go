package uuid

import (
	"testing"

	guuid "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsValidUUIDv7(t *testing.T) {
	t.Parallel()

	g := NewGenerator()
	id, err := g.NewID()
	require.NoError(t, err)

	parsed, err := guuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, guuid.Version(7), parsed.Version())
}

func TestNewIDsAreUnique(t *testing.T) {
	t.Parallel()

	g := NewGenerator()
	seen := make(map[string]struct{})
	for range 100 {
		id, err := g.NewID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
