// Package config loads the server configuration from HCL sources.
package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
)

type ConfigBuilder struct {
	logger        *zap.Logger
	sources       []any
	blockHandlers map[string]BlockHandler
}

// ServerSettings come from the server "http" block.
type ServerSettings struct {
	Name            string
	Listen          string
	BasePath        string
	ShutdownTimeout time.Duration
}

// WebSocketSettings come from the websocket block.
type WebSocketSettings struct {
	QueueSize      int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	ReadLimit      int64
	TraceTopics    []string
	OriginPatterns []string
}

// AuthSettings come from the auth block. At least one of HMACSecret and
// UserService is set after a successful build.
type AuthSettings struct {
	HMACSecret  string
	Audience    string
	Leeway      time.Duration
	UserService string
	Timeout     time.Duration
}

// StatsSettings come from the stats block.
type StatsSettings struct {
	Enabled  bool
	Schedule string
	Location *time.Location
}

type Config struct {
	Logger    *zap.Logger
	Functions map[string]function.Function
	Constants map[string]cty.Value
	evalCtx   *hcl.EvalContext

	Server    ServerSettings
	WebSocket WebSocketSettings
	Auth      AuthSettings
	Users     []model.User
	Stats     StatsSettings
}

const (
	DefaultListen          = ":8080"
	DefaultBasePath        = "/PiedPiper/api/v1"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultQueueSize       = 16
	DefaultPingInterval    = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultReadLimit       = 32768
	DefaultAuthTimeout     = 5 * time.Second
	DefaultStatsSchedule   = "@every 1m"
)

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		sources:       make([]any, 0),
		blockHandlers: GetBlockHandlers(),
	}
}

func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	cb.logger = logger
	return cb
}

// WithSources adds file or directory paths, raw []byte, or any fs.FS such
// as an embed.FS.
func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

func defaults() Config {
	return Config{
		Constants: make(map[string]cty.Value),
		Server: ServerSettings{
			Name:            "main",
			Listen:          DefaultListen,
			BasePath:        DefaultBasePath,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		WebSocket: WebSocketSettings{
			QueueSize:    DefaultQueueSize,
			PingInterval: DefaultPingInterval,
			WriteTimeout: DefaultWriteTimeout,
			ReadLimit:    DefaultReadLimit,
		},
		Auth: AuthSettings{
			Timeout: DefaultAuthTimeout,
		},
		Stats: StatsSettings{
			Enabled:  true,
			Schedule: DefaultStatsSchedule,
			Location: time.Local,
		},
	}
}

func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	config := defaults()
	config.Logger = cb.logger
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	blocks, addDiags := cb.GetBlocks(bodies)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	config.Functions = GetFunctions()
	config.Constants["env"] = GetEnvObject()
	config.Constants["httpstatus"] = GetStatusCodeObject()

	config.evalCtx = &hcl.EvalContext{
		Functions: config.Functions,
		Variables: config.Constants,
	}

	for _, block := range blocks {
		if handler, ok := cb.blockHandlers[block.Type]; ok {
			diags = diags.Extend(handler.Preprocess(block))
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	for _, name := range handlerOrder {
		diags = diags.Extend(cb.blockHandlers[name].FinishPreprocessing(&config))
	}
	if diags.HasErrors() {
		return nil, diags
	}

	for _, name := range handlerOrder {
		for _, block := range blocks {
			if block.Type == name {
				diags = diags.Extend(cb.blockHandlers[name].Process(&config, block))
			}
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	for _, name := range handlerOrder {
		diags = diags.Extend(cb.blockHandlers[name].FinishProcessing(&config))
	}
	if diags.HasErrors() {
		return nil, diags
	}

	config.Logger.Info("Config built successfully",
		zap.String("listen", config.Server.Listen),
		zap.String("base_path", config.Server.BasePath),
		zap.Int("directory_users", len(config.Users)),
	)

	return &config, diags
}

// EvalContext returns the context used to evaluate configuration
// expressions.
func (c *Config) EvalContext() *hcl.EvalContext {
	return c.evalCtx
}
