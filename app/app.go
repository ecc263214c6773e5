package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/duka/analytics"
	"github.com/vladislavdragonenkov/duka/backoffice"
	"github.com/vladislavdragonenkov/duka/catalog"
	"github.com/vladislavdragonenkov/duka/config"
	"github.com/vladislavdragonenkov/duka/domain"
	healthcheck "github.com/vladislavdragonenkov/duka/health"
	"github.com/vladislavdragonenkov/duka/ledger"
	"github.com/vladislavdragonenkov/duka/messaging/kafka"
	"github.com/vladislavdragonenkov/duka/metrics"
	"github.com/vladislavdragonenkov/duka/mpesa"
	"github.com/vladislavdragonenkov/duka/orderflow"
	"github.com/vladislavdragonenkov/duka/outbox"
	"github.com/vladislavdragonenkov/duka/storage/memory"
	"github.com/vladislavdragonenkov/duka/storage/postgres"
	"github.com/vladislavdragonenkov/duka/version"
)

// Repositories собирает все порты хранилища в один узел.
type Repositories struct {
	Products  domain.ProductRepository
	Orders    domain.OrderRepository
	Payments  domain.PaymentRepository
	Outbox    domain.OutboxRepository
	Timeline  domain.TimelineRepository
	Expenses  domain.ExpenseRepository
	Suppliers domain.SupplierRepository
	Team      domain.TeamRepository
}

// NewMemoryRepositories возвращает in-memory набор для разработки и тестов.
func NewMemoryRepositories() Repositories {
	return Repositories{
		Products:  memory.NewProductRepository(),
		Orders:    memory.NewOrderRepository(),
		Payments:  memory.NewPaymentRepository(),
		Outbox:    memory.NewOutboxRepository(),
		Timeline:  memory.NewTimelineRepository(),
		Expenses:  memory.NewExpenseRepository(),
		Suppliers: memory.NewSupplierRepository(),
		Team:      memory.NewTeamRepository(),
	}
}

// NewPostgresRepositories возвращает набор репозиториев поверх одного Store.
func NewPostgresRepositories(store *postgres.Store) Repositories {
	return Repositories{
		Products:  postgres.NewProductRepository(store),
		Orders:    postgres.NewOrderRepository(store),
		Payments:  postgres.NewPaymentRepository(store),
		Outbox:    postgres.NewOutboxRepository(store),
		Timeline:  postgres.NewTimelineRepository(store),
		Expenses:  postgres.NewExpenseRepository(store),
		Suppliers: postgres.NewSupplierRepository(store),
		Team:      postgres.NewTeamRepository(store),
	}
}

// Services — полный набор доменных сервисов, который импортирует фронтенд.
type Services struct {
	Catalog    *catalog.Service
	Orders     *orderflow.Service
	Ledger     *ledger.Service
	Backoffice *backoffice.Service
	Analytics  *analytics.Service
}

// BuildServices связывает репозитории, шлюз и producer в доменные сервисы.
func BuildServices(repos Repositories, gateway domain.Gateway, producer *kafka.Producer, logger *log.Entry) Services {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	orderSvc := orderflow.NewService(orderflow.Deps{
		Orders:   repos.Orders,
		Products: repos.Products,
		Payments: repos.Payments,
		Outbox:   repos.Outbox,
		Timeline: repos.Timeline,
		Gateway:  gateway,
		Producer: producer,
	}, logger.WithField("component", "orderflow"))

	return Services{
		Catalog:    catalog.NewService(repos.Products, logger.WithField("component", "catalog")),
		Orders:     orderSvc,
		Ledger:     ledger.NewService(repos.Payments, gateway, metrics.NewOrderMetrics(), logger.WithField("component", "ledger")),
		Backoffice: backoffice.NewService(repos.Expenses, repos.Suppliers, repos.Team, logger.WithField("component", "backoffice")),
		Analytics:  analytics.NewService(repos.Orders, repos.Expenses, repos.Products, logger.WithField("component", "analytics")),
	}
}

// NewGateway создаёт клиент платёжного шлюза из конфигурации приложения.
func NewGateway(cfg config.Config, logger *log.Entry) domain.Gateway {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	return mpesa.NewClient(cfg.Mpesa, logger.WithField("component", "mpesa"))
}

// Run поднимает фоновую часть приложения: outbox worker и HTTP-сервер
// с метриками и health-чеками. Блокируется до отмены контекста.
func Run(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "app")

	var (
		repos Repositories
		store *postgres.Store
	)
	if cfg.PostgresDSN != "" {
		var err error
		store, err = postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		repos = NewPostgresRepositories(store)
		logger.Info("postgres storage initialized")
	} else {
		repos = NewMemoryRepositories()
		logger.Warn("DUKA_POSTGRES_DSN is empty, using in-memory storage")
	}

	var (
		kafkaProducer *kafka.Producer
		publisher     domain.OutboxPublisher
		dlqPublisher  domain.OutboxPublisher
	)
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			publisher = kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
			dlqPublisher = kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")
		}
	}

	worker := outbox.NewWorker(repos.Outbox, publisher,
		outbox.WithLogger(logger.WithField("component", "outbox_worker")),
		outbox.WithDLQPublisher(dlqPublisher),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if store != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewCheckerFunc("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(checkCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем воркер")
	<-workerDone

	shutdownHTTP(metricsSrv, logger)

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}

	return ctx.Err()
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
