package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrMissingToken = errors.New("config: discord token is not set")
	ErrBadGrace     = errors.New("config: grace_period must be positive")
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	Token         string        `mapstructure:"token"`
	GracePeriod   time.Duration `mapstructure:"grace_period"`
	StatusText    string        `mapstructure:"status_text"`
	LogLevel      string        `mapstructure:"log_level"`
	GateOpenTalks bool          `mapstructure:"gate_open_talks"`
	SyncCommands  bool          `mapstructure:"sync_commands"`
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// A .env file in the working directory is applied to the process
// environment first, so DISCORD_BOT_TOKEN can live there.
func Load() (*Config, error) {
	_ = godotenv.Load()

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

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("grace_period", "60s")
	v.SetDefault("status_text", "/talks")
	v.SetDefault("log_level", "info")
	v.SetDefault("gate_open_talks", false)
	v.SetDefault("sync_commands", true)
	if err := v.BindEnv("token", "DISCORD_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("bind token env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
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
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Dur("grace", cfg.GracePeriod).
		Bool("gate_open_talks", cfg.GateOpenTalks).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.GracePeriod <= 0 {
		return ErrBadGrace
	}
	return nil
}
