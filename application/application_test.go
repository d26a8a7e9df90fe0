package application

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/binn-go/internal/codec"
	"github.com/lk2023060901/binn-go/internal/compressor"
	"github.com/lk2023060901/binn-go/internal/framer"
	"github.com/lk2023060901/binn-go/internal/serializer"
	"github.com/lk2023060901/binn-go/pkg/binn"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
)

type account struct {
	Name    string   `binn:"name"`
	Balance int64    `binn:"balance"`
	Tags    []string `binn:"tags"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "binn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunWithDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	app := New()
	require.NoError(t, app.RunArgs(nil))
	defer app.Close()

	conf := app.Settings()
	assert.Equal(t, StrategyCompiled, conf.Codec.Strategy)
	assert.Equal(t, serializer.NameBinn, conf.Codec.Format)
	assert.True(t, conf.Codec.CycleCheck)
	assert.Equal(t, framer.DefaultMaxFrameSize, conf.Frame.MaxSize)
	assert.Equal(t, compressor.DefaultMinCompressSize, conf.Compression.MinSize)
	assert.False(t, conf.Compression.Enable)

	enc := app.Encoder()
	assert.Same(t, app.Cache(), enc.Cache())
	data, err := enc.Encode(account{Name: "a", Balance: -5, Tags: []string{"x"}})
	require.NoError(t, err)

	v, err := app.Decoder().Decode(data)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "a", "balance": int64(-5), "tags": []string{"x"}}, v)

	c, err := app.Compressor()
	require.NoError(t, err)
	assert.IsType(t, compressor.NopCompressor{}, c)

	// 未配置的模块回落到全局日志
	assert.NotNil(t, app.Logger("missing"))
}

func TestRunWithFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
codec:
  strategy: reflect
  max-depth: 2
  decode-max-depth: 4
compression:
  enable: true
  min-size: 64
frame:
  max-size: 65536
logging:
  property-cache:
    level: warn
`)
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvLogLevel, "error")

	app := New()
	require.NoError(t, app.RunArgs([]string{"encode", "--config=" + path}))
	defer app.Close()

	conf := app.Settings()
	assert.Equal(t, path, app.Config().ConfigFileUsed())
	assert.Equal(t, StrategyReflect, conf.Codec.Strategy)
	assert.Equal(t, 2, conf.Codec.MaxDepth)
	assert.Equal(t, 4, conf.Codec.DecodeMaxDepth)
	assert.Equal(t, uint32(65536), conf.Frame.MaxSize)
	assert.Equal(t, "error", conf.Log.Level)
	assert.Contains(t, conf.Logging, "property-cache")

	_, err := app.Encoder().Encode([][][]int{{{1}}})
	assert.ErrorIs(t, err, merr.ErrDepthExceeded)

	pipeline, err := app.Codec("")
	require.NoError(t, err)
	in := account{Name: strings.Repeat("n", 200), Balance: 1 << 40, Tags: []string{"a", "b"}}
	var buf bytes.Buffer
	require.NoError(t, pipeline.Encode(&buf, in))

	flags, raw, err := pipeline.DecodeRaw(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, codec.FlagCompressed, flags&codec.FlagCompressed)

	var out account
	require.NoError(t, binn.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}

func TestEncryptedCodec(t *testing.T) {
	key := strings.Repeat("11", 32)
	path := writeConfig(t, "encryption:\n  enable: true\n  key: \""+key+"\"\n  mac-key: \"abcd\"\n")
	t.Setenv(EnvConfigPath, "")

	app := New()
	require.NoError(t, app.RunArgs([]string{"--config", path}))
	defer app.Close()

	pipeline, err := app.Codec(serializer.NameBinn)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, pipeline.Encode(&buf, account{Name: "sealed"}))
	assert.Equal(t, codec.FlagEncrypted, buf.Bytes()[0])

	var out account
	require.NoError(t, pipeline.Decode(&buf, &out))
	assert.Equal(t, "sealed", out.Name)

	bad := writeConfig(t, "encryption:\n  enable: true\n  key: \"00\"\n  mac-key: \"abcd\"\n")
	app2 := New()
	require.NoError(t, app2.RunArgs([]string{"--config", bad}))
	defer app2.Close()
	_, err = app2.Codec("")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestConfigFromEnv(t *testing.T) {
	path := writeConfig(t, "codec:\n  format: json\n")
	t.Setenv(EnvConfigPath, path)

	app := New()
	require.NoError(t, app.RunArgs(nil))
	defer app.Close()

	s, err := app.Serializer("")
	require.NoError(t, err)
	assert.Equal(t, serializer.NameJSON, s.Name())

	s, err = app.Serializer(serializer.NameCBOR)
	require.NoError(t, err)
	assert.Equal(t, serializer.NameCBOR, s.Name())

	_, err = app.Serializer("xml")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestRunErrors(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	err := New().RunArgs([]string{"--config"})
	assert.ErrorIs(t, err, merr.ErrParameterMissing)

	err = New().RunArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)

	err = New().RunArgs([]string{"--config", writeConfig(t, "codec:\n  strategy: jit\n")})
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	err = New().RunArgs([]string{"--config", writeConfig(t, "codec:\n  format: xml\n")})
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestPreloadAndMetrics(t *testing.T) {
	path := writeConfig(t, "metrics:\n  enable: true\ncodec:\n  preload-workers: 2\n")
	t.Setenv(EnvConfigPath, "")

	reg := prometheus.NewRegistry()
	app := New(WithRegisterer(reg))
	require.NoError(t, app.RunArgs([]string{"--config", path}))
	defer app.Close()

	require.NoError(t, app.Preload(context.Background(), reflect.TypeFor[account]()))
	assert.Equal(t, 1, app.Cache().Len())

	_, err := app.Encoder().Encode(account{Name: "m"})
	require.NoError(t, err)
}
