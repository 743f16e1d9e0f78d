package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/pkg/config"
)

func TestOpenStoreMemory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: ""}}

	store, err := OpenStore(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, store.Driver)
	assert.NoError(t, store.Ready(context.Background()))

	require.NoError(t, store.Write(context.Background(), "courses", "c1", map[string]interface{}{"name": "Go"}))
	doc, err := store.Read(context.Background(), "courses", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", doc.ID)
	assert.NoError(t, store.Close())
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "cassandra"}}

	_, err := OpenStore(context.Background(), cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}
