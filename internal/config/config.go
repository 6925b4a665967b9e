package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultOrderInterval   = time.Second
	defaultSpreadThreshold = 0.002
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	Venue     VenueConfig     `yaml:"venue"`
	Feed      FeedConfig      `yaml:"feed"`
	Quote     QuoteConfig     `yaml:"quote"`
	State     StateConfig     `yaml:"state"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File enables a rotated log file next to stderr output.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type VenueConfig struct {
	Symbol         string        `yaml:"symbol"`
	PublicWSURL    string        `yaml:"public_ws_url"`
	PrivateBaseURL string        `yaml:"private_base_url"`
	RESTTimeout    time.Duration `yaml:"rest_timeout"`
	APIKey         string        `yaml:"-"`
	APISecret      string        `yaml:"-"`
}

type FeedConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
	CloseTimeout time.Duration `yaml:"close_timeout"`
	ReadLimit    int64         `yaml:"read_limit"`
}

type QuoteConfig struct {
	Quantity        string        `yaml:"quantity"`
	// OrderInterval and SpreadThreshold accept an explicit zero; nil means the default.
	OrderInterval   *time.Duration `yaml:"order_interval"`
	SpreadThreshold *float64       `yaml:"spread_threshold"`
	Tick            string        `yaml:"tick"`
	PriceDecimals   int32         `yaml:"price_decimals"`
	UnsetInterval   time.Duration `yaml:"unset_interval"`
	IdleInterval    time.Duration `yaml:"idle_interval"`
	GatewayTimeout  time.Duration `yaml:"gateway_timeout"`
	// MaxBookAge skips acting on a top-of-book older than this. Zero disables the check.
	MaxBookAge       time.Duration `yaml:"max_book_age"`
	DryRun           bool          `yaml:"dry_run"`
	CancelOnShutdown *bool         `yaml:"cancel_on_shutdown"`
}

func (q QuoteConfig) OrderIntervalValue() time.Duration {
	if q.OrderInterval == nil {
		return defaultOrderInterval
	}
	return *q.OrderInterval
}

func (q QuoteConfig) SpreadThresholdValue() float64 {
	if q.SpreadThreshold == nil {
		return defaultSpreadThreshold
	}
	return *q.SpreadThreshold
}

func (q QuoteConfig) CancelOnShutdownValue() bool {
	return q.CancelOnShutdown == nil || *q.CancelOnShutdown
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	SampleInterval  time.Duration `yaml:"sample_interval"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	return cfg, validate(cfg)
}

// Read parses path and applies defaults and environment overrides without validating, for
// tools that only need a subset of the settings.
func Read(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
	if cfg.Venue.Symbol == "" {
		cfg.Venue.Symbol = "DOGE"
	}
	if cfg.Venue.PublicWSURL == "" {
		cfg.Venue.PublicWSURL = "wss://api.coin.z.com/ws/public/v1"
	}
	if cfg.Venue.PrivateBaseURL == "" {
		cfg.Venue.PrivateBaseURL = "https://api.coin.z.com/private"
	}
	if cfg.Venue.RESTTimeout == 0 {
		cfg.Venue.RESTTimeout = 10 * time.Second
	}
	if cfg.Feed.MaxRetries == 0 {
		cfg.Feed.MaxRetries = 5
	}
	if cfg.Feed.RetryDelay == 0 {
		cfg.Feed.RetryDelay = 5 * time.Second
	}
	if cfg.Feed.DialTimeout == 0 {
		cfg.Feed.DialTimeout = 10 * time.Second
	}
	if cfg.Feed.PingInterval == 0 {
		cfg.Feed.PingInterval = 20 * time.Second
	}
	if cfg.Feed.PingTimeout == 0 {
		cfg.Feed.PingTimeout = 10 * time.Second
	}
	if cfg.Feed.CloseTimeout == 0 {
		cfg.Feed.CloseTimeout = 10 * time.Second
	}
	if cfg.Feed.ReadLimit == 0 {
		cfg.Feed.ReadLimit = 1 << 20
	}
	if cfg.Quote.Quantity == "" {
		cfg.Quote.Quantity = "10"
	}
	if cfg.Quote.OrderInterval == nil {
		interval := defaultOrderInterval
		cfg.Quote.OrderInterval = &interval
	}
	if cfg.Quote.SpreadThreshold == nil {
		threshold := defaultSpreadThreshold
		cfg.Quote.SpreadThreshold = &threshold
	}
	if cfg.Quote.Tick == "" {
		cfg.Quote.Tick = "0.001"
	}
	if cfg.Quote.PriceDecimals == 0 {
		cfg.Quote.PriceDecimals = 3
	}
	if cfg.Quote.UnsetInterval == 0 {
		cfg.Quote.UnsetInterval = 100 * time.Millisecond
	}
	if cfg.Quote.IdleInterval == 0 {
		cfg.Quote.IdleInterval = 500 * time.Millisecond
	}
	if cfg.Quote.GatewayTimeout == 0 {
		cfg.Quote.GatewayTimeout = 5 * time.Second
	}
	if cfg.Quote.CancelOnShutdown == nil {
		enabled := true
		cfg.Quote.CancelOnShutdown = &enabled
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/gmo-maker-bot.db"
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9001"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
	if cfg.Timescale.SampleInterval == 0 {
		cfg.Timescale.SampleInterval = time.Second
	}
}

func applyEnvOverrides(cfg *Config) {
	if val := strings.TrimSpace(os.Getenv("GMO_API_KEY")); val != "" {
		cfg.Venue.APIKey = val
	}
	if val := strings.TrimSpace(os.Getenv("GMO_API_SECRET")); val != "" {
		cfg.Venue.APISecret = val
	}
	if val := strings.TrimSpace(os.Getenv("MM_TELEGRAM_TOKEN")); val != "" {
		cfg.Telegram.Token = val
	}
	if val := strings.TrimSpace(os.Getenv("MM_TELEGRAM_CHAT_ID")); val != "" {
		cfg.Telegram.ChatID = val
	}
	if val := strings.TrimSpace(os.Getenv("MM_TIMESCALE_DSN")); val != "" {
		cfg.Timescale.DSN = val
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Venue.Symbol) == "" {
		return errors.New("venue.symbol is required")
	}
	if cfg.Feed.MaxRetries < 1 {
		return errors.New("feed.max_retries must be >= 1")
	}
	if cfg.Feed.RetryDelay < 0 || cfg.Feed.PingInterval < 0 || cfg.Feed.PingTimeout < 0 || cfg.Feed.CloseTimeout < 0 {
		return errors.New("feed durations must be >= 0")
	}
	if _, err := PositiveDecimal(cfg.Quote.Quantity); err != nil {
		return errors.New("quote.quantity must be a positive decimal")
	}
	if _, err := PositiveDecimal(cfg.Quote.Tick); err != nil {
		return errors.New("quote.tick must be a positive decimal")
	}
	if cfg.Quote.SpreadThresholdValue() < 0 {
		return errors.New("quote.spread_threshold must be >= 0")
	}
	if cfg.Quote.PriceDecimals < 0 {
		return errors.New("quote.price_decimals must be >= 0")
	}
	if cfg.Quote.OrderIntervalValue() < 0 {
		return errors.New("quote.order_interval must be >= 0")
	}
	if cfg.Quote.MaxBookAge < 0 {
		return errors.New("quote.max_book_age must be >= 0")
	}
	if !cfg.Quote.DryRun && (cfg.Venue.APIKey == "" || cfg.Venue.APISecret == "") {
		return errors.New("GMO_API_KEY and GMO_API_SECRET are required unless quote.dry_run is set")
	}
	if cfg.Metrics.EnabledValue() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if cfg.Telegram.Enabled && (strings.TrimSpace(cfg.Telegram.Token) == "" || strings.TrimSpace(cfg.Telegram.ChatID) == "") {
		return errors.New("telegram token and chat_id are required when telegram is enabled")
	}
	return nil
}
