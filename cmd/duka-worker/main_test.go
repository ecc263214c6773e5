package main

import (
	"testing"

	"github.com/vladislavdragonenkov/duka/config"
)

func TestConfigDefaultsForWorker(t *testing.T) {
	t.Setenv("DUKA_POSTGRES_DSN", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("METRICS_ADDR", "")

	cfg := config.Load()

	if cfg.MetricsAddr != ":9090" {
		t.Fatalf("unexpected metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.PostgresDSN != "" {
		t.Fatalf("expected empty dsn, got %s", cfg.PostgresDSN)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.OutboxBatchSize <= 0 {
		t.Fatalf("batch size must default to positive value: %d", cfg.OutboxBatchSize)
	}
}
