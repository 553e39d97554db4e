package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/vitos/ladder_bot/internal/domain"
	"github.com/vitos/ladder_bot/internal/indicator"
	"github.com/vitos/ladder_bot/internal/usecase"
	"gopkg.in/yaml.v3"
)

// Bybit caps kline requests at 1000 bars.
const maxCandleLimit = 1000

type Config struct {
	Exchange    ExchangeConfig        `yaml:"exchange"`
	Strategy    StrategyConfig        `yaml:"strategy"`
	Retry       usecase.RetryPolicy   `yaml:"retry"`
	Persistence PersistenceConfig     `yaml:"persistence"`
	Logging     LoggingConfig         `yaml:"logging"`
	Server      ServerConfig          `yaml:"server"`
	Notify      NotifyConfig          `yaml:"notify"`
	Symbols     []domain.SymbolConfig `yaml:"symbols"`
}

type ExchangeConfig struct {
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	RESTEndpoint string `yaml:"rest_endpoint"`
	WSEndpoint   string `yaml:"ws_endpoint"`
}

type StrategyConfig struct {
	Interval          string        `yaml:"interval"`
	CandleLimit       int           `yaml:"candle_limit"`
	Schedule          string        `yaml:"schedule"`
	ADXPeriod         int           `yaml:"adx_period"`
	ADXThreshold      float64       `yaml:"adx_threshold"`
	BBPeriod          int           `yaml:"bb_period"`
	EvaluationTimeout time.Duration `yaml:"evaluation_timeout"`
}

type PersistenceConfig struct {
	Backend    string `yaml:"backend"` // sqlite or redis
	SQLitePath string `yaml:"sqlite_path"`
	Redis      struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
}

// Defaults mirrors the production strategy: 4h candles evaluated at the top
// of every hour.
func Defaults() Config {
	return Config{
		Strategy: StrategyConfig{
			Interval:          "240",
			CandleLimit:       200,
			Schedule:          "0 * * * *",
			ADXPeriod:         14,
			ADXThreshold:      20,
			BBPeriod:          20,
			EvaluationTimeout: 30 * time.Second,
		},
		Retry: usecase.DefaultRetryPolicy(),
		Persistence: PersistenceConfig{
			Backend:    "sqlite",
			SQLitePath: "ladder_bot.db",
		},
		Logging: LoggingConfig{Level: "info"},
		Server:  ServerConfig{Port: 8080},
	}
}

// Load reads the YAML file at path on top of Defaults, then applies .env and
// LADDER_* environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Exchange.APIKey, "LADDER_BYBIT_API_KEY")
	setStr(&cfg.Exchange.APISecret, "LADDER_BYBIT_API_SECRET")
	setStr(&cfg.Exchange.RESTEndpoint, "LADDER_BYBIT_REST_ENDPOINT")
	setStr(&cfg.Exchange.WSEndpoint, "LADDER_BYBIT_WS_ENDPOINT")

	setStr(&cfg.Persistence.Backend, "LADDER_PERSISTENCE_BACKEND")
	setStr(&cfg.Persistence.SQLitePath, "LADDER_SQLITE_PATH")
	setStr(&cfg.Persistence.Redis.Addr, "LADDER_REDIS_ADDR")
	setStr(&cfg.Persistence.Redis.Password, "LADDER_REDIS_PASSWORD")
	setInt(&cfg.Persistence.Redis.DB, "LADDER_REDIS_DB")

	setStr(&cfg.Notify.TelegramToken, "LADDER_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LADDER_TELEGRAM_CHAT_ID")

	setStr(&cfg.Logging.Level, "LADDER_LOG_LEVEL")
	setInt(&cfg.Server.Port, "LADDER_SERVER_PORT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// MinCandles is the shortest history every indicator the strategy reads
// needs at its deepest lookback.
func (s StrategyConfig) MinCandles() int {
	need := 2*s.ADXPeriod + 2
	if n := s.BBPeriod + 1; n > need {
		need = n
	}
	if n := indicator.MinTripleSmoothedBars + 1; n > need {
		need = n
	}
	return need
}

func (c *Config) Validate() error {
	var errs []error

	s := c.Strategy
	if s.Interval == "" {
		errs = append(errs, errors.New("strategy.interval is empty"))
	}
	if s.ADXPeriod <= 0 || s.BBPeriod <= 0 {
		errs = append(errs, errors.New("strategy periods must be positive"))
	}
	if s.CandleLimit < s.MinCandles() || s.CandleLimit > maxCandleLimit {
		errs = append(errs, fmt.Errorf("strategy.candle_limit must be in [%d, %d], got %d", s.MinCandles(), maxCandleLimit, s.CandleLimit))
	}
	if _, err := cron.ParseStandard(s.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("strategy.schedule: %w", err))
	}
	if s.EvaluationTimeout <= 0 {
		errs = append(errs, errors.New("strategy.evaluation_timeout must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}

	switch c.Persistence.Backend {
	case "sqlite":
		if c.Persistence.SQLitePath == "" {
			errs = append(errs, errors.New("persistence.sqlite_path is empty"))
		}
	case "redis":
		if c.Persistence.Redis.Addr == "" {
			errs = append(errs, errors.New("persistence.redis.addr is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("persistence.backend %q is not sqlite or redis", c.Persistence.Backend))
	}

	if len(c.Symbols) == 0 {
		errs = append(errs, errors.New("no symbols configured"))
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, sc := range c.Symbols {
		if err := sc.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[sc.Symbol] {
			errs = append(errs, fmt.Errorf("symbol %s configured twice", sc.Symbol))
		}
		seen[sc.Symbol] = true
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return nil
}
