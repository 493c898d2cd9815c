package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/otel"
	"golang.org/x/text/language"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/messaging"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/migration"
	infrapdf "github.com/jhoicas/stock-ledger/internal/infrastructure/pdf"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/telemetry"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.Ledger.Store).
		Msg("iniciando aplicación")

	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Endpoint:      cfg.Telemetry.OTLPEndpoint,
		Insecure:      cfg.Telemetry.Insecure,
		SamplingRatio: cfg.Telemetry.SamplingRatio,
		ServiceName:   cfg.App.Name,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar trazas")
	}

	metrics := telemetry.NewMetrics()

	locale, err := language.Parse(cfg.App.Locale)
	if err != nil {
		log.Warn().Str("locale", cfg.App.Locale).Msg("locale inválido, se usa es")
		locale = language.Spanish
	}

	deps := stock.LedgerDeps{
		Metrics:  metrics,
		Renderer: infrapdf.NewStockCardGenerator(locale),
		Logger:   log.Named("ledger"),
		Tracer:   otel.Tracer(cfg.App.Name),
	}

	var closers []func() error

	switch cfg.Ledger.Store {
	case config.StoreMemory:
		log.Warn().Msg("ledger en memoria: los datos no sobreviven al reinicio")
		store := memory.NewStore()
		deps.Tx = memory.NewTxRunner(store)
		deps.Movements = memory.NewMovementRepository(store)
		deps.Profiles = memory.NewProfileRepository(store)
		deps.Configs = memory.NewConfigRepository(store)
		deps.Commitments = stock.NewCommitmentTracker(memory.NewOrderLineRepository(store), cfg.Ledger.InvoicedStatuses)
	default:
		if cfg.DB.AutoMigrate {
			runMigrations(cfg.DB.ConnectionString(), log)
		}
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		closers = append(closers, func() error { pool.Close(); return nil })

		deps.Tx = postgres.NewTxRunner(pool)
		deps.Movements = postgres.NewMovementRepository(pool)
		deps.Profiles = postgres.NewStockProfileRepository(pool)
		deps.Configs = postgres.NewStockConfigRepository(pool)
		deps.Commitments = stock.NewCommitmentTracker(postgres.NewOrderLineRepository(pool), cfg.Ledger.InvoicedStatuses)
	}

	if cfg.Redis.Enabled() {
		balanceCache, err := cache.NewRedisBalanceCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			// La caché es opcional: sin Redis se replaya siempre.
			log.Warn().Err(err).Msg("redis no disponible, caché de saldos deshabilitada")
		} else {
			deps.Cache = balanceCache
			closers = append(closers, balanceCache.Close)
		}
	}

	if cfg.Kafka.Enabled() {
		publisher := messaging.NewKafkaPublisher(messaging.KafkaConfig{
			Brokers:        cfg.Kafka.Brokers,
			MovementsTopic: cfg.Kafka.MovementsTopic,
			LowStockTopic:  cfg.Kafka.LowStockTopic,
		})
		deps.Events = publisher
		closers = append(closers, publisher.Close)
	}

	ledger := stock.NewLedgerService(deps, stock.LedgerConfig{
		MaxRetries:           cfg.Ledger.MaxRetries,
		RetryBackoff:         cfg.Ledger.RetryBackoff,
		DefaultStrictMode:    cfg.Ledger.DefaultStrictMode,
		ReconcileParallelism: cfg.Ledger.ReconcileParallelism,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: cfg.Swagger.FilePath,
		Path:     "docs",
		Title:    "Stock Ledger API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "store": cfg.Ledger.Store})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Ledger:    ledger,
		Metrics:   metrics.Handler(),
		JWTSecret: cfg.JWT.Secret,
		JWTIssuer: cfg.JWT.Issuer,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			log.Error().Err(err).Msg("cerrar dependencia")
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado de trazas")
	}

	log.Info().Msg("aplicación detenida")
}

func runMigrations(databaseURL string, log *logger.Logger) {
	m, err := migration.New(databaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar migraciones")
	}
	defer m.Close()
	if err := m.Up(); err != nil {
		log.Fatal().Err(err).Msg("aplicar migraciones")
	}
}
