// Package config собирает настройки приложения из окружения.
// Локальный .env подхватывается через godotenv и не обязателен.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/duka/mpesa"
)

// Config описывает настройки запуска приложения.
type Config struct {
	PostgresDSN  string
	KafkaBrokers []string
	MetricsAddr  string
	ServiceName  string

	// OutboxPollInterval — период опроса transactional outbox.
	OutboxPollInterval time.Duration
	OutboxBatchSize    int

	Mpesa mpesa.Config
}

// Load читает конфигурацию из окружения. Перед чтением подхватывает .env,
// если он есть рядом с бинарником.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		PostgresDSN:  getenv("DUKA_POSTGRES_DSN", ""),
		KafkaBrokers: splitCSV(getenv("KAFKA_BROKERS", "")),
		MetricsAddr:  getenv("METRICS_ADDR", ":9090"),
		ServiceName:  getenv("SERVICE_NAME", "duka"),

		OutboxPollInterval: getduration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:    getint("OUTBOX_BATCH_SIZE", 100),

		Mpesa: loadMpesa(),
	}
}

// loadMpesa читает настройки платёжного шлюза. При MPESA_SANDBOX=true
// незаданные shortcode/passkey берутся из sandbox-профиля Daraja.
func loadMpesa() mpesa.Config {
	cfg := mpesa.Config{
		BaseURL:        getenv("MPESA_BASE_URL", ""),
		ConsumerKey:    getenv("MPESA_CONSUMER_KEY", ""),
		ConsumerSecret: getenv("MPESA_CONSUMER_SECRET", ""),
		ShortCode:      getenv("MPESA_SHORTCODE", ""),
		Passkey:        getenv("MPESA_PASSKEY", ""),
		CallbackURL:    getenv("MPESA_CALLBACK_URL", ""),
		LinkBaseURL:    getenv("MPESA_LINK_BASE_URL", ""),
		Timeout:        getduration("MPESA_TIMEOUT", 30*time.Second),
	}

	if getenv("MPESA_SANDBOX", "false") == "true" {
		sandbox := mpesa.SandboxConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
		if cfg.BaseURL == "" {
			cfg.BaseURL = sandbox.BaseURL
		}
		if cfg.ShortCode == "" {
			cfg.ShortCode = sandbox.ShortCode
		}
		if cfg.Passkey == "" {
			cfg.Passkey = sandbox.Passkey
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
