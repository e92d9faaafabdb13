package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zewo/opsdash/internal/config"
	"github.com/zewo/opsdash/internal/vault"
)

var _ vault.BlobStore = (*MinIOStorage)(nil)

func TestNewMinIOStorageRequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), config.MinIOConfig{Bucket: "b"})
	require.Error(t, err)
}
