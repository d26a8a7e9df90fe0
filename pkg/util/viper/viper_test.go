package viper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Codec struct {
		Strategy string `mapstructure:"strategy"`
		MaxDepth int    `mapstructure:"max-depth"`
	} `mapstructure:"codec"`
	Frame struct {
		MaxSize int `mapstructure:"max-size"`
	} `mapstructure:"frame"`
}

func TestDefaultsWithoutFile(t *testing.T) {
	c := New()
	c.SetDefaults(map[string]any{
		"codec.strategy":  "compiled",
		"codec.max-depth": 8,
	})
	assert.True(t, c.IsSet("codec.strategy"))
	assert.False(t, c.IsSet("frame.max-size"))

	var s sample
	require.NoError(t, c.Unmarshal(&s))
	assert.Equal(t, "compiled", s.Codec.Strategy)
	assert.Equal(t, 8, s.Codec.MaxDepth)
	assert.Zero(t, s.Frame.MaxSize)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("codec:\n  strategy: reflect\nframe:\n  max-size: 1024\n"), 0o600))

	c := New()
	c.SetDefault("codec.strategy", "compiled")
	c.SetDefault("codec.max-depth", 8)
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, path, c.ConfigFileUsed())

	var s sample
	require.NoError(t, c.Unmarshal(&s))
	assert.Equal(t, "reflect", s.Codec.Strategy)
	assert.Equal(t, 8, s.Codec.MaxDepth)
	assert.Equal(t, 1024, s.Frame.MaxSize)

	c.Set("codec.max-depth", 3)
	var codec struct {
		MaxDepth int `mapstructure:"max-depth"`
	}
	require.NoError(t, c.UnmarshalKey("codec", &codec))
	assert.Equal(t, 3, codec.MaxDepth)
}

func TestLoadJSONAndMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "binn.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"frame":{"max-size":7}}`), 0o600))

	c := New()
	require.NoError(t, c.LoadFile(path))
	var s sample
	require.NoError(t, c.Unmarshal(&s))
	assert.Equal(t, 7, s.Frame.MaxSize)

	assert.Error(t, New().LoadFile(filepath.Join(dir, "absent.yaml")))
}
