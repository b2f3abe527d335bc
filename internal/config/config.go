package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	Secret   string `mapstructure:"secret"`

	BackendURL  string        `mapstructure:"backend_url"`
	VerifyPath  string        `mapstructure:"verify_path"`
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`

	AllowedOrigins []string `mapstructure:"allowed_origins"`

	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	JoinLimit    int           `mapstructure:"join_limit"`
	JoinInterval time.Duration `mapstructure:"join_interval"`
	Backpressure string        `mapstructure:"backpressure"`

	ICEServerURLs []string `mapstructure:"ice_servers"`
	ICEUsername   string   `mapstructure:"ice_username"`
	ICECredential string   `mapstructure:"ice_credential"`
}

var defaults = map[string]any{
	"mode":         "release",
	"port":         3001,
	"log_level":    "info",
	"secret":       "dev-secret",
	"backend_url":  "http://study-hub-backend-iota.vercel.app",
	"verify_path":  "/api/auth/verify-token",
	"auth_timeout": "10s",
	"allowed_origins": []string{
		"http://localhost:5173",
		"http://localhost:3000",
		"https://studyhub.live",
	},
	"read_limit":     65536,
	"ping_period":    "54s",
	"send_buffer":    256,
	"join_limit":     5,
	"join_interval":  "10s",
	"backpressure":   "kick",
	"ice_servers":    []string{"stun:stun.l.google.com:19302"},
	"ice_username":   "",
	"ice_credential": "",
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml if present, then the
// environment. Environment variables are the upper-cased keys (PORT,
// BACKEND_URL, ...).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Str("module", "config").Msg(".env not loaded")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	cfg.ICEServerURLs = splitList(cfg.ICEServerURLs)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("backend", cfg.BackendURL).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.BackendURL == "" {
		return errors.New("backend_url is empty")
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("invalid ping_period %s", c.PingPeriod)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("invalid send_buffer %d", c.SendBuffer)
	}
	return nil
}
