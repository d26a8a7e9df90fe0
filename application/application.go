package application

import (
	"context"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lk2023060901/binn-go/internal/codec"
	"github.com/lk2023060901/binn-go/internal/compressor"
	"github.com/lk2023060901/binn-go/internal/crypto"
	"github.com/lk2023060901/binn-go/internal/framer"
	"github.com/lk2023060901/binn-go/internal/serializer"
	"github.com/lk2023060901/binn-go/pkg/binn"
	zlog "github.com/lk2023060901/binn-go/pkg/log"
	"github.com/lk2023060901/binn-go/pkg/metrics"
	"github.com/lk2023060901/binn-go/pkg/util/hardware"
	"github.com/lk2023060901/binn-go/pkg/util/merr"
	zviper "github.com/lk2023060901/binn-go/pkg/util/viper"
)

const (
	EnvConfigPath = "BINN_CONFIG_FILE_PATH"
	EnvLogLevel   = "BINN_LOG_LEVEL"

	defaultConfigPath = "./binn.yaml"
)

// Accessor strategies accepted by codec.strategy.
const (
	StrategyCompiled = "compiled"
	StrategyReflect  = "reflect"
)

// CodecConfig controls the binn encoder, decoder and property cache.
type CodecConfig struct {
	Format         string `mapstructure:"format"`
	Strategy       string `mapstructure:"strategy"`
	MaxDepth       int    `mapstructure:"max-depth"`
	DecodeMaxDepth int    `mapstructure:"decode-max-depth"`
	CycleCheck     bool   `mapstructure:"cycle-check"`
	PreloadWorkers int    `mapstructure:"preload-workers"`
}

type CompressionConfig struct {
	Enable      bool `mapstructure:"enable"`
	MinSize     int  `mapstructure:"min-size"`
	Concurrency int  `mapstructure:"concurrency"`
}

// EncryptionConfig holds hex encoded keys for the sealing stage of the codec.
type EncryptionConfig struct {
	Enable bool   `mapstructure:"enable"`
	Key    string `mapstructure:"key"`
	MacKey string `mapstructure:"mac-key"`
}

type FrameConfig struct {
	MaxSize uint32 `mapstructure:"max-size"`
}

type MetricsConfig struct {
	Enable bool `mapstructure:"enable"`
}

// Config is the typed view of the configuration file.
type Config struct {
	Log         zlog.Config            `mapstructure:"log"`
	Logging     map[string]zlog.Config `mapstructure:"logging"`
	Codec       CodecConfig            `mapstructure:"codec"`
	Compression CompressionConfig      `mapstructure:"compression"`
	Encryption  EncryptionConfig       `mapstructure:"encryption"`
	Frame       FrameConfig            `mapstructure:"frame"`
	Metrics     MetricsConfig          `mapstructure:"metrics"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":               "info",
		"log.format":              "console",
		"log.stderr":              true,
		"codec.format":            serializer.NameBinn,
		"codec.strategy":          StrategyCompiled,
		"codec.max-depth":         0,
		"codec.decode-max-depth":  0,
		"codec.cycle-check":       true,
		"codec.preload-workers":   0,
		"compression.enable":      false,
		"compression.min-size":    compressor.DefaultMinCompressSize,
		"compression.concurrency": 0,
		"encryption.enable":       false,
		"frame.max-size":          framer.DefaultMaxFrameSize,
		"metrics.enable":          false,
	}
}

// Application is the runtime container of binn tools.
// It owns configuration and builds codec components from it.
type Application struct {
	cfg       *zviper.Config
	conf      Config
	loggers   map[string]*zlog.MLogger
	registry  prometheus.Registerer
	overrides map[string]any

	cacheOnce sync.Once
	cache     *binn.PropertyCache

	mu      sync.Mutex
	closers []func()
}

// Option customizes an Application.
type Option func(*Application)

// WithRegisterer sets the registry used when metrics.enable is true.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(a *Application) {
		a.registry = r
	}
}

// WithOverrides sets config keys with higher priority than the config file,
// e.g. values taken from command line flags.
func WithOverrides(kv map[string]any) Option {
	return func(a *Application) {
		a.overrides = kv
	}
}

// New creates a new Application instance.
func New(opts ...Option) *Application {
	a := &Application{}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run loads configuration using os.Args, see RunArgs.
func (a *Application) Run() error {
	return a.RunArgs(os.Args[1:])
}

// RunArgs loads configuration and initializes logging and metrics.
// The config file is resolved with the following priority:
//  1. CLI: --config <path> or --config=<path>
//  2. Env: BINN_CONFIG_FILE_PATH
//  3. ./binn.yaml when it exists
//
// Without any file the built-in defaults are used.
func (a *Application) RunArgs(args []string) error {
	cfg, err := a.loadConfig(args)
	if err != nil {
		return err
	}
	a.cfg = cfg
	for k, v := range a.overrides {
		cfg.Set(k, v)
	}

	if err := cfg.Unmarshal(&a.conf); err != nil {
		return errors.Wrap(err, "decode config")
	}
	if lv := strings.TrimSpace(os.Getenv(EnvLogLevel)); lv != "" {
		a.conf.Log.Level = lv
	}
	if err := a.conf.validate(); err != nil {
		return err
	}

	if err := a.initLogging(); err != nil {
		return err
	}
	if a.conf.Metrics.Enable {
		r := a.registry
		if r == nil {
			r = prometheus.DefaultRegisterer
		}
		metrics.Register(r)
	}

	zlog.Debug("application started",
		zap.String("config", cfg.ConfigFileUsed()),
		zap.String("format", a.conf.Codec.Format),
		zap.String("strategy", a.conf.Codec.Strategy),
		zap.Bool("compression", a.conf.Compression.Enable))
	return nil
}

func (c *Config) validate() error {
	switch c.Codec.Strategy {
	case StrategyCompiled, StrategyReflect:
	default:
		return merr.WrapErrParameterInvalid(StrategyCompiled+"|"+StrategyReflect, c.Codec.Strategy, "codec.strategy")
	}
	switch c.Codec.Format {
	case serializer.NameBinn, serializer.NameJSON, serializer.NameCBOR:
	default:
		return merr.WrapErrParameterInvalid("binn|json|cbor", c.Codec.Format, "codec.format")
	}
	return nil
}

// Config returns the loaded configuration.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Settings returns the typed configuration.
func (a *Application) Settings() Config {
	return a.conf
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig(args []string) (*zviper.Config, error) {
	var configPath string
	explicit := false

	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		configPath = envPath
		explicit = true
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, merr.WrapErrParameterMissing("--config", "missing value after --config")
			}
			configPath = args[i+1]
			explicit = true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				configPath = val
				explicit = true
			}
			continue
		}
	}

	cfg := zviper.New()
	cfg.SetDefaults(defaults())

	if !explicit {
		if _, err := os.Stat(defaultConfigPath); err != nil {
			return cfg, nil
		}
		configPath = defaultConfigPath
	}
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %q", configPath)
	}
	return cfg, nil
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	logger, props, err := zlog.InitLogger(&a.conf.Log)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	zlog.ReplaceGlobals(logger, props)

	// logging:
	//   serializer:
	//     level: debug
	//     file:
	//       rootpath: ./logs
	//       filename: serializer.log
	if len(a.conf.Logging) == 0 {
		return nil
	}
	a.loggers = make(map[string]*zlog.MLogger, len(a.conf.Logging))
	for name, lc := range a.conf.Logging {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

// Cache returns the property cache shared by every encoder built here.
func (a *Application) Cache() *binn.PropertyCache {
	a.cacheOnce.Do(func() {
		var acc binn.Accessor = binn.CompiledAccessor{}
		if a.conf.Codec.Strategy == StrategyReflect {
			acc = binn.ReflectAccessor{}
		}
		a.cache = binn.NewPropertyCache(
			binn.WithAccessor(acc),
			binn.WithCacheLogger(a.Logger("property-cache").With(zlog.FieldComponent("property-cache"))),
		)
	})
	return a.cache
}

// Preload resolves types into the cache using codec.preload-workers goroutines.
func (a *Application) Preload(ctx context.Context, types ...reflect.Type) error {
	workers := a.conf.Codec.PreloadWorkers
	if workers <= 0 {
		workers = hardware.GetCPUNum()
	}
	return a.Cache().Preload(ctx, workers, types...)
}

func (a *Application) Encoder() *binn.Encoder {
	return binn.NewEncoder(
		binn.WithCache(a.Cache()),
		binn.WithMaxDepth(a.conf.Codec.MaxDepth),
		binn.WithCycleCheck(a.conf.Codec.CycleCheck),
	)
}

func (a *Application) Decoder() *binn.Decoder {
	return binn.NewDecoder(binn.WithDecodeMaxDepth(a.conf.Codec.DecodeMaxDepth))
}

// Serializer builds the serializer for format, empty means codec.format.
func (a *Application) Serializer(format string) (serializer.Serializer, error) {
	if format == "" {
		format = a.conf.Codec.Format
	}
	switch format {
	case serializer.NameBinn:
		return serializer.NewBinnSerializer(a.Encoder(), a.Decoder()), nil
	case serializer.NameJSON:
		return serializer.JSONSerializer{}, nil
	case serializer.NameCBOR:
		cs, err := serializer.NewCBORSerializer()
		if err != nil {
			return nil, err
		}
		return cs, nil
	default:
		return nil, merr.WrapErrParameterInvalid("binn|json|cbor", format, "serializer format")
	}
}

// Compressor returns zstd when compression is enabled, otherwise a no-op.
func (a *Application) Compressor() (compressor.Compressor, error) {
	if !a.conf.Compression.Enable {
		return compressor.NopCompressor{}, nil
	}
	zc, err := compressor.NewZstdCompressorWithConcurrency(a.conf.Compression.Concurrency)
	if err != nil {
		return nil, errors.Wrap(err, "create zstd compressor")
	}
	zc.SetMinCompressSize(a.conf.Compression.MinSize)
	a.onClose(zc.Close)
	return zc, nil
}

// Encryptor returns the AES-GCM sealer when encryption is enabled, otherwise a no-op.
func (a *Application) Encryptor() (crypto.Encryptor, error) {
	if !a.conf.Encryption.Enable {
		return crypto.NopEncryptor{}, nil
	}
	sealer, err := crypto.NewSealerFromHex(a.conf.Encryption.Key, a.conf.Encryption.MacKey)
	if err != nil {
		return nil, err
	}
	return sealer, nil
}

func (a *Application) Framer() framer.Framer {
	return framer.NewLengthPrefixedFramer(a.conf.Frame.MaxSize)
}

// Codec assembles serializer, compressor and framer into one pipeline.
func (a *Application) Codec(format string) (codec.Codec, error) {
	s, err := a.Serializer(format)
	if err != nil {
		return nil, err
	}
	c, err := a.Compressor()
	if err != nil {
		return nil, err
	}
	e, err := a.Encryptor()
	if err != nil {
		return nil, err
	}
	return codec.New(codec.Options{
		Framer:            a.Framer(),
		Serializer:        s,
		Compressor:        c,
		Encryptor:         e,
		EnableCompression: a.conf.Compression.Enable,
		EnableEncryption:  a.conf.Encryption.Enable,
	})
}

func (a *Application) onClose(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

// Close releases compressors created by the application and flushes logs.
func (a *Application) Close() {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	_ = zlog.Sync()
}
