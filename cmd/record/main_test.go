package record

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephysio/kwikstore/utils"
)

const testConfig = `
root_directory: %s
recordings: 2
recording_duration: 1
block_size: 512
seed: 7
disk_usage_interval: 1
compress_spikes: true
sources:
  - node_id: 100
    sample_rate: 30000
    channels: 4
    spike_electrodes: 1
  - node_id: 101
    sample_rate: 1000
    channels: 1
`

func parse(t *testing.T, root string) *utils.RecorderConfig {
	t.Helper()
	var cfg utils.RecorderConfig
	require.Nil(t, cfg.Parse([]byte(fmt.Sprintf(testConfig, root))))
	return &cfg
}

func TestRecordWritesKwikFiles(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	stats, err := Record(context.Background(), parse(t, root))
	require.Nil(t, err)
	assert.Equal(t, 2, stats.Recordings)
	assert.Equal(t, int64(2*(4*30000+1000)), stats.Samples)
	assert.Equal(t, 0, stats.NotReady)

	for _, name := range []string{
		"experiment1_100.raw.kwd",
		"experiment1_101.raw.kwd",
		"experiment1.kwe",
		"experiment1.kwx",
	} {
		fi, err := os.Stat(filepath.Join(root, name))
		require.Nil(t, err, name)
		assert.True(t, fi.Size() > 16, name)
	}
}

func TestRecordCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := Record(ctx, parse(t, t.TempDir()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), stats.Samples)
}

func TestRecordUnknownFormat(t *testing.T) {
	cfg := parse(t, t.TempDir())
	cfg.Format = "HDF5"
	_, err := Record(context.Background(), cfg)
	assert.NotNil(t, err)
}
