package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quantdash/internal/strategy"
)

// Config holds all application configuration.
// It is built once at startup and treated as read-only afterwards.
type Config struct {
	Server struct {
		Addr         string        `yaml:"addr"`
		Mode         string        `yaml:"mode"` // gin mode: debug, release, test
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`
	MarketData struct {
		BaseURL           string        `yaml:"base_url"` // empty selects Yahoo
		APIKey            string        `yaml:"api_key"`
		Lookback          string        `yaml:"lookback"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		RSIPeriod         int           `yaml:"rsi_period"`
	} `yaml:"market_data"`
	AI struct {
		APIKey        string        `yaml:"api_key"`
		BaseURL       string        `yaml:"base_url"`
		Model         string        `yaml:"model"`
		VectorStoreID string        `yaml:"vector_store_id"`
		Timeout       time.Duration `yaml:"timeout"`
		HealthTimeout time.Duration `yaml:"health_timeout"`
		Required      bool          `yaml:"required"`
		Disabled      bool          `yaml:"disabled"`
	} `yaml:"ai"`
	Cache struct {
		Backend       string        `yaml:"backend"` // memory or redis
		TTL           time.Duration `yaml:"ttl"`
		RedisAddr     string        `yaml:"redis_addr"`
		RedisPassword string        `yaml:"redis_password"`
		RedisDB       int           `yaml:"redis_db"`
	} `yaml:"cache"`
	Scoring  strategy.Rules `yaml:"scoring"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Polling  bool   `yaml:"polling"`
	} `yaml:"telegram"`
	Schedule struct {
		CorpusCheckCron string   `yaml:"corpus_check_cron"`
		DigestCron      string   `yaml:"digest_cron"`
		Watchlist       []string `yaml:"watchlist"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Log struct {
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{Scoring: strategy.DefaultRules()}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_VECTOR_STORE_ID"); v != "" {
		cfg.AI.VectorStoreID = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("AI_REQUIRED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AI.Required = b
		}
	}
	if v := os.Getenv("MARKET_DATA_BASE_URL"); v != "" {
		cfg.MarketData.BaseURL = v
	}
	if v := os.Getenv("MARKET_DATA_API_KEY"); v != "" {
		cfg.MarketData.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
		if cfg.Cache.Backend == "" {
			cfg.Cache.Backend = "redis"
		}
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 90 * time.Second
	}
	if cfg.MarketData.Lookback == "" {
		cfg.MarketData.Lookback = "3mo"
	}
	if cfg.MarketData.Timeout == 0 {
		cfg.MarketData.Timeout = 10 * time.Second
	}
	if cfg.MarketData.RequestsPerSecond == 0 {
		cfg.MarketData.RequestsPerSecond = 2
	}
	if cfg.MarketData.RSIPeriod == 0 {
		cfg.MarketData.RSIPeriod = 14
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4.1-mini"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 45 * time.Second
	}
	if cfg.AI.HealthTimeout == 0 {
		cfg.AI.HealthTimeout = 10 * time.Second
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Schedule.CorpusCheckCron == "" {
		cfg.Schedule.CorpusCheckCron = "0 */5 * * * *"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}
	for i, t := range cfg.Schedule.Watchlist {
		cfg.Schedule.Watchlist[i] = strings.ToUpper(strings.TrimSpace(t))
	}
}

// ErrAIMissing is returned by Validate when AI is required but not configured.
var ErrAIMissing = errors.New("ai credentials missing")

// Validate checks that all values are usable. It runs before the server starts.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("server.addr %q: %w", c.Server.Addr, err)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	switch c.MarketData.Lookback {
	case "1mo", "3mo", "6mo", "1y", "2y":
	default:
		return fmt.Errorf("market_data.lookback must be one of 1mo, 3mo, 6mo, 1y, 2y, got %q", c.MarketData.Lookback)
	}
	if c.MarketData.RequestsPerSecond < 0 {
		return errors.New("market_data.requests_per_second must not be negative")
	}
	if c.MarketData.RSIPeriod < 2 {
		return errors.New("market_data.rsi_period must be at least 2")
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must be positive")
	}
	if c.AI.Required && !c.AI.Disabled {
		if missing := c.MissingAI(); len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrAIMissing, strings.Join(missing, ", "))
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return errors.New("telegram.bot_token and telegram.chat_id must be set together")
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	return nil
}

// MissingAI lists the environment variables the AI commentary still needs.
func (c *Config) MissingAI() []string {
	var missing []string
	if c.AI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.AI.VectorStoreID == "" {
		missing = append(missing, "OPENAI_VECTOR_STORE_ID")
	}
	return missing
}

// TelegramEnabled reports whether a bot token and chat are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
