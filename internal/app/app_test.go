package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/social-harvester/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Index:      config.IndexConfig{Provider: "memory"},
		Checkpoint: config.CheckpointConfig{Provider: "memory"},
	}
}

func TestNewWiresCoreServices(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Logger())
	require.NotNil(t, a.Checkpoints())
	require.NotNil(t, a.Indexer())
	// No watched entities, no upstream clients.
	require.Nil(t, a.Reddit())
	require.Nil(t, a.Twitter())
}

func TestNewWiresSourcesForWatchedEntities(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Reddit.ClientID = "id"
	cfg.Reddit.ClientSecret = "secret"
	cfg.Reddit.Communities = []string{"golang"}
	cfg.Twitter.BearerToken = "token"
	cfg.Twitter.Users = []string{"satoshi"}

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Reddit())
	require.NotNil(t, a.Twitter())
}

func TestNewRejectsUnknownProviders(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Checkpoint.Provider = "etcd"
	_, err := New(context.Background(), cfg)
	require.Error(t, err)

	cfg = memoryConfig()
	cfg.Index.Provider = "solr"
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
}

func TestNoopIndexProvider(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.Index.Provider = "noop"
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Indexer())
}
