// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by DEXARB_* environment variables.
type Config struct {
	Chain      ChainConfig       `toml:"chain"`
	Tokens     map[string]string `toml:"tokens"`
	Venues     []VenueConfig     `toml:"venues"`
	Arbitrage  ArbitrageConfig   `toml:"arbitrage"`
	Risk       RiskConfig        `toml:"risk"`
	Monitoring MonitoringConfig  `toml:"monitoring"`
	Wallet     WalletConfig      `toml:"wallet"`
	Postgres   PostgresConfig    `toml:"postgres"`
	Redis      RedisConfig       `toml:"redis"`
	S3         S3Config          `toml:"s3"`
	Server     ServerConfig      `toml:"server"`
	Notify     NotifyConfig      `toml:"notify"`
	Mode       string            `toml:"mode"`
	LogLevel   string            `toml:"log_level"`
}

// ChainConfig holds RPC connection parameters. RPCURLs are tried in order at
// connect time; the first endpoint that answers a liveness check wins.
type ChainConfig struct {
	RPCURLs     []string `toml:"rpc_urls"`
	ChainID     int64    `toml:"chain_id"`
	DialTimeout Duration `toml:"dial_timeout"`
	CallTimeout Duration `toml:"call_timeout"`
}

// VenueConfig describes one DEX venue (UniswapV2-style router + factory).
type VenueConfig struct {
	Name    string `toml:"name"`
	Router  string `toml:"router"`
	Factory string `toml:"factory"`
	Enabled bool   `toml:"enabled"`
}

// ArbitrageConfig holds scan thresholds. Thresholds are fractions
// (0.003 = 0.3%). ReportThreshold must stay strictly below
// MinProfitThreshold: sub-report discrepancies are invisible, opportunities
// between the two floors are surfaced but not flagged actionable.
type ArbitrageConfig struct {
	MinProfitThreshold float64 `toml:"min_profit_threshold"`
	ReportThreshold    float64 `toml:"report_threshold"`
	TradeSize          float64 `toml:"trade_size"`
	MaxFanout          int     `toml:"max_fanout"`
}

// RiskConfig holds gas-cost estimation parameters.
type RiskConfig struct {
	GasLimitPerTx        uint64  `toml:"gas_limit_per_tx"`
	FallbackGasPriceGwei float64 `toml:"fallback_gas_price_gwei"`
}

// MonitoringConfig holds scan cadence parameters.
type MonitoringConfig struct {
	ScanInterval Duration `toml:"scan_interval"`
	TickTimeout  Duration `toml:"tick_timeout"`
	SummaryEvery int      `toml:"summary_every"`
	ErrorBackoff Duration `toml:"error_backoff"`
	MinInterval  Duration `toml:"min_interval"`
}

// WalletConfig holds the optional signing credential. When every field is
// empty the process runs in read-only mode and all decisions terminate at
// simulated/skipped.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds connection parameters for the history store.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds connection parameters for the price cache and signal bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for ledger archival.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval Duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "30s", "5m").
type Duration struct {
	time.Duration
}

// DurationOf wraps a time.Duration.
func DurationOf(d time.Duration) Duration {
	return Duration{d}
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse Duration strings like "30s" or "5m".
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURLs:     []string{"https://rpc.coredao.org"},
			ChainID:     1116,
			DialTimeout: Duration{10 * time.Second},
			CallTimeout: Duration{5 * time.Second},
		},
		Tokens: map[string]string{},
		Venues: []VenueConfig{
			{
				Name:    "icecreamswap",
				Router:  "0xBb5e1777A331ED93E07cF043363e48d320eb96c4",
				Factory: "0x9E6d21E759A7A288b80eef94E4737D313D31c13f",
				Enabled: true,
			},
		},
		Arbitrage: ArbitrageConfig{
			MinProfitThreshold: 0.003,
			ReportThreshold:    0.001,
			TradeSize:          1.0,
			MaxFanout:          4,
		},
		Risk: RiskConfig{
			GasLimitPerTx:        300_000,
			FallbackGasPriceGwei: 30.0,
		},
		Monitoring: MonitoringConfig{
			ScanInterval: Duration{30 * time.Second},
			TickTimeout:  Duration{25 * time.Second},
			SummaryEvery: 10,
			ErrorBackoff: Duration{30 * time.Second},
			MinInterval:  Duration{5 * time.Second},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "dexarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "dexarb-ledger",
			ForcePathStyle:  true,
			ArchiveInterval: Duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_found", "error"},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"trade":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, trade, monitor)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if len(c.Chain.RPCURLs) == 0 {
		errs = append(errs, "chain: rpc_urls must list at least one endpoint")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("chain: chain_id must be positive, got %d", c.Chain.ChainID))
	}
	if c.Chain.CallTimeout.Duration <= 0 {
		errs = append(errs, "chain: call_timeout must be > 0")
	}

	// Venues
	enabledVenues := 0
	for i, v := range c.Venues {
		if !v.Enabled {
			continue
		}
		enabledVenues++
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
		}
		if v.Router == "" || v.Factory == "" {
			errs = append(errs, fmt.Sprintf("venues[%d] (%s): router and factory must both be set", i, v.Name))
		}
	}
	if enabledVenues == 0 {
		errs = append(errs, "venues: at least one venue must be enabled")
	}

	// Arbitrage thresholds. The report floor must stay strictly below the
	// profit floor so near-miss discrepancies remain visible without being
	// flagged actionable.
	if c.Arbitrage.MinProfitThreshold <= 0 {
		errs = append(errs, "arbitrage: min_profit_threshold must be > 0")
	}
	if c.Arbitrage.ReportThreshold < 0 {
		errs = append(errs, "arbitrage: report_threshold must be >= 0")
	}
	if c.Arbitrage.ReportThreshold >= c.Arbitrage.MinProfitThreshold {
		errs = append(errs, "arbitrage: report_threshold must be strictly below min_profit_threshold")
	}
	if c.Arbitrage.TradeSize <= 0 {
		errs = append(errs, "arbitrage: trade_size must be > 0")
	}
	if c.Arbitrage.MaxFanout < 1 {
		errs = append(errs, "arbitrage: max_fanout must be >= 1")
	}

	// Risk
	if c.Risk.GasLimitPerTx == 0 {
		errs = append(errs, "risk: gas_limit_per_tx must be > 0")
	}
	// Zero disables the fallback: a failed gas read then fails the decision
	// instead of estimating with a conservative constant.
	if c.Risk.FallbackGasPriceGwei < 0 {
		errs = append(errs, "risk: fallback_gas_price_gwei must be >= 0")
	}

	// Monitoring
	if c.Monitoring.ScanInterval.Duration <= 0 {
		errs = append(errs, "monitoring: scan_interval must be > 0")
	}
	if c.Monitoring.TickTimeout.Duration <= 0 {
		errs = append(errs, "monitoring: tick_timeout must be > 0")
	}
	if c.Monitoring.SummaryEvery < 1 {
		errs = append(errs, "monitoring: summary_every must be >= 1")
	}

	// Trade mode requires a credential source.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
