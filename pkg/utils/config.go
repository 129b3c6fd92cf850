package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Payment  PaymentConfig
	Redis    RedisConfig
	Admin    AdminConfig
	Sweeper  SweeperConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type PaymentConfig struct {
	// AttemptTimeout bounds a single provider call inside the fallback loop.
	AttemptTimeout      time.Duration
	ProviderHTTPTimeout time.Duration
	DefaultCurrency     string
}

// RedisConfig untuk outbound event stream. Addr kosong = publisher nonaktif.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

type AdminConfig struct {
	KeyHash string
}

type SweeperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

func LoadConfig() (*Config, error) {
	return LoadConfigFrom(".env")
}

// LoadConfigFrom reads an env-style file and overlays the process environment.
// A missing file is not an error; every key can come from the environment.
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	// Set defaults
	v.SetDefault("APP_NAME", "payment-orchestrator")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("ATTEMPT_TIMEOUT", "15s")
	v.SetDefault("PROVIDER_HTTP_TIMEOUT", "10s")
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EVENT_STREAM", "payment_events")
	v.SetDefault("EVENT_STREAM_MAXLEN", 100000)
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("SWEEP_STALE_AFTER", "10m")

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    v.GetString("APP_NAME"),
			Port:    v.GetString("PORT"),
			Debug:   v.GetBool("DEBUG"),
			LogPath: v.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
		},
		Payment: PaymentConfig{
			AttemptTimeout:      v.GetDuration("ATTEMPT_TIMEOUT"),
			ProviderHTTPTimeout: v.GetDuration("PROVIDER_HTTP_TIMEOUT"),
			DefaultCurrency:     v.GetString("DEFAULT_CURRENCY"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Stream:   v.GetString("EVENT_STREAM"),
			MaxLen:   v.GetInt64("EVENT_STREAM_MAXLEN"),
		},
		Admin: AdminConfig{
			KeyHash: v.GetString("ADMIN_KEY_HASH"),
		},
		Sweeper: SweeperConfig{
			Interval:   v.GetDuration("SWEEP_INTERVAL"),
			StaleAfter: v.GetDuration("SWEEP_STALE_AFTER"),
		},
	}

	// tanpa batas waktu, satu provider yang hang menahan seluruh run
	if config.Payment.AttemptTimeout <= 0 {
		return nil, fmt.Errorf("ATTEMPT_TIMEOUT must be positive, got %s", config.Payment.AttemptTimeout)
	}

	return config, nil
}
