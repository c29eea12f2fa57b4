package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	SendBuffer int           `mapstructure:"send_buffer"`
	KickSlow   bool          `mapstructure:"kick_slow"`

	// EngineToken guards the game engine's start/finish signals.
	EngineToken string `mapstructure:"engine_token"`

	InviteTTL       time.Duration `mapstructure:"invite_ttl"`
	InviteRetention time.Duration `mapstructure:"invite_retention"`
	InviteRate      RateConfig    `mapstructure:"invite_rate"`

	ResumeGrace       time.Duration `mapstructure:"resume_grace"`
	FinishedRetention time.Duration `mapstructure:"finished_retention"`
	EmptyTableTTL     time.Duration `mapstructure:"empty_table_ttl"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`

	StartingBalance string `mapstructure:"starting_balance"`
	Currency        string `mapstructure:"currency"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("engine_token", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("kick_slow", false)

	v.SetDefault("invite_ttl", "30s")
	v.SetDefault("invite_retention", "2m")
	v.SetDefault("invite_rate.limit", 20)
	v.SetDefault("invite_rate.interval", "10s")

	v.SetDefault("resume_grace", "45s")
	v.SetDefault("finished_retention", "5m")
	v.SetDefault("empty_table_ttl", "2m")
	v.SetDefault("sweep_interval", "5s")

	v.SetDefault("starting_balance", "1000")
	v.SetDefault("currency", "USD")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// A .env file, if present, is loaded first and LOBBY_* variables override
// file values (LOBBY_INVITE_RATE_LIMIT for invite_rate.limit).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("read .env")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("mode %q: want debug, release or test", c.Mode))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Mode == "release" && len(c.Secret) < 16 {
		errs = append(errs, errors.New("secret must be at least 16 bytes in release mode"))
	}
	if c.Mode == "release" && len(c.EngineToken) < 16 {
		errs = append(errs, errors.New("engine_token must be at least 16 bytes in release mode"))
	}
	if c.ReadLimit <= 0 {
		errs = append(errs, errors.New("read_limit must be positive"))
	}
	if c.PingPeriod <= 0 {
		errs = append(errs, errors.New("ping_period must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("send_buffer must be positive"))
	}
	if c.InviteTTL <= 0 {
		errs = append(errs, errors.New("invite_ttl must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if c.InviteRate.Limit > 0 && c.InviteRate.Interval <= 0 {
		errs = append(errs, errors.New("invite_rate.interval must be positive when a limit is set"))
	}
	if _, err := c.Balance(); err != nil {
		errs = append(errs, fmt.Errorf("starting_balance: %w", err))
	}
	if strings.TrimSpace(c.Currency) == "" {
		errs = append(errs, errors.New("currency is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Balance is the opening balance of the development ledger.
func (c *Config) Balance() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.StartingBalance)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("must not be negative")
	}
	return d, nil
}
