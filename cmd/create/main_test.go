package create

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephysio/kwikstore/utils"
)

func TestInitialize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rig")
	require.Nil(t, Initialize(dir))

	fi, err := os.Stat(filepath.Join(dir, "data"))
	require.Nil(t, err)
	assert.True(t, fi.IsDir())

	data, err := os.ReadFile(filepath.Join(dir, "kwikstore.yml"))
	require.Nil(t, err)
	var cfg utils.RecorderConfig
	require.Nil(t, cfg.Parse(data))
	assert.Equal(t, "data", cfg.RootDirectory)
	assert.Len(t, cfg.Sources, 2)
	assert.Equal(t, "KWIK", cfg.Format)

	assert.NotNil(t, Initialize(dir), "existing configuration is not overwritten")
}
