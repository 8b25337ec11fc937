package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/replica/blob"
	"github.com/outofforest/replica/slab"
	"github.com/outofforest/replica/store"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestEmptyInputGivesDefault(t *testing.T) {
	requireT := require.New(t)

	config, err := Parse(nil)
	requireT.NoError(err)
	requireT.Equal(Default(), config)
}

func TestLoad(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	requireT.NoError(os.WriteFile(path, []byte(`
store:
  indexCapacity: 4096
  slab:
    minChunkSize: 64
    maxChunkSize: 65536
    pageSize: 1048576
    minChunksPerPage: 16
consumer:
  refreshInterval: 5s
blob:
  compression: none
`), 0o600))

	config, err := Load(path)
	requireT.NoError(err)
	requireT.Equal(Config{
		Store: store.Config{
			IndexCapacity: 4096,
			Slab: slab.Config{
				MinChunkSize:     64,
				MaxChunkSize:     65536,
				PageSize:         1048576,
				MinChunksPerPage: 16,
			},
		},
		Consumer: ConsumerConfig{RefreshInterval: 5 * time.Second},
		Blob:     BlobConfig{Compression: CompressionNone},
	}, config)
	requireT.Equal(blob.NoCompression, config.Blob.Options().Compression)

	s, err := store.New(config.Store)
	requireT.NoError(err)
	s.Close()
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	requireT := require.New(t)

	for _, data := range []string{
		"store:\n  slab:\n    minChunkSize: 48\n",
		"store:\n  slab:\n    maxChunkSize: 16\n",
		"store:\n  slab:\n    pageSize: 0\n",
		"consumer:\n  refreshInterval: 0s\n",
		"blob:\n  compression: zstd\n",
		"unknown: 1\n",
	} {
		_, err := Parse([]byte(data))
		requireT.Error(err, data)
	}
}

func TestBlobOptions(t *testing.T) {
	require.Equal(t, blob.SnappyCompression, Default().Blob.Options().Compression)
}
