package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env           string        `mapstructure:"app_env"`
	Host          string        `mapstructure:"app_host"`
	DatabaseURL   string        `mapstructure:"database_url"`
	MigrationsDir string        `mapstructure:"migrations_dir"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	CORSOrigins   []string      `mapstructure:"cors_origins"`
	Redis         RedisConfig   `mapstructure:"redis"`
	LoginLimit    LimitConfig   `mapstructure:"login_rate"`
	Sweep         SweepConfig   `mapstructure:"sweep"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type SweepConfig struct {
	// OperatorID is recorded as rejected_by_id when the sweep runs from cron.
	OperatorID int `mapstructure:"operator_id"`
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads config.yaml from ./configs or the working directory when present
// and lets environment variables override every key (redis.addr -> REDIS_ADDR).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("cors_origins"))

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("app_host", ":8080")
	v.SetDefault("database_url", "")
	v.SetDefault("migrations_dir", "./migrations")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 120*time.Hour)
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("login_rate.limit", 10)
	v.SetDefault("login_rate.window", 5*time.Minute)
	v.SetDefault("sweep.operator_id", 0)
}

func splitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
