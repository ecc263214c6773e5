package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/duka/app"
	"github.com/vladislavdragonenkov/duka/config"
)

// setupLogger настраивает формат и уровень логирования воркера.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

func main() {
	setupLogger()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"metrics_addr":  cfg.MetricsAddr,
		"kafka_brokers": cfg.KafkaBrokers,
		"postgres":      cfg.PostgresDSN != "",
	}).Info("запускаем фоновый воркер duka")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("воркер завершился с ошибкой")
	}

	log.Info("воркер duka остановлен")
}
