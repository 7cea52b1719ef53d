package metadata_test

import (
	"context"
	"testing"

	"github.com/hupe1980/findmymeow/metadata"
	"github.com/hupe1980/findmymeow/metadata/metadatatest"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	metadatatest.RunStoreConformance(t, func(t *testing.T) metadata.Store {
		return metadata.NewMemoryStore()
	})
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := metadata.NewMemoryStore().FindPosts(ctx, metadata.PostQuery{})
	assert.ErrorIs(t, err, context.Canceled)
}
