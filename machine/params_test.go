package machine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsSane(t *testing.T) {
	p := Default()
	assert.Greater(t, p.Parallelism, int64(0))
	assert.Greater(t, p.LastLevelCacheSize, int64(0))
	assert.Greater(t, p.Balance, int64(0))
}

func TestLoadOverridesDefaultsSelectively(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallelism: 32\n"), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)

	merged := Default().MergeFrom(loaded)
	assert.Equal(t, int64(32), merged.Parallelism)
	assert.Equal(t, Default().LastLevelCacheSize, merged.LastLevelCacheSize)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/machine.yaml")
	assert.Error(t, err)
}

func TestNaturalVectorSize(t *testing.T) {
	p := Params{VectorBytes: 32}
	assert.Equal(t, 8, p.NaturalVectorSize(4))
	assert.Equal(t, 4, p.NaturalVectorSize(8))
	assert.Equal(t, 1, p.NaturalVectorSize(0))
}
