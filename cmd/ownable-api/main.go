package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/sowailem/ownable/config"
	"github.com/sowailem/ownable/internal/handlers"
	"github.com/sowailem/ownable/pkg/database"
	"github.com/sowailem/ownable/pkg/enrichment"
	"github.com/sowailem/ownable/pkg/entities"
	"github.com/sowailem/ownable/pkg/events"
	"github.com/sowailem/ownable/pkg/health"
	"github.com/sowailem/ownable/pkg/middleware"
	"github.com/sowailem/ownable/pkg/redis"
	"github.com/sowailem/ownable/pkg/registry"
	"github.com/sowailem/ownable/pkg/repositories"
	"github.com/sowailem/ownable/pkg/services"
	"github.com/sowailem/ownable/pkg/tracing"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	if cfg.OTLPEnabled {
		shutdown, err := tracing.Init(ctx, cfg.AppName, cfg.OTLPEndpoint)
		if err != nil {
			logger.WithError(err).Error("failed to initialize tracing")
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.WithError(err).Error("failed to shut down tracing")
			}
		}()
	}

	sqlxDB, err := connectDB(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	defer sqlxDB.Close()

	db := database.NewDatabaseInstance(sqlxDB, logger)
	db.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	if err := runMigrations(cfg, logger, sqlxDB); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	redisClient := connectRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var producer *events.Producer
	if cfg.KafkaBrokers != "" {
		producer = events.NewProducer(events.ParseConfig(cfg.KafkaBrokers, cfg.KafkaOwnershipTopic), logger)
		defer producer.Close()
	}

	ownershipRepo := repositories.NewOwnershipRepository(db, logger)
	ownableModelRepo := repositories.NewOwnableModelRepository(db, logger)

	reg := registry.New(ownableModelRepo, redisRaw(redisClient), logger, registry.Config{
		OwnableModels: cfg.OwnableModels,
		CacheTTL:      cfg.RegistryCacheTTL,
	})

	// Host applications register sources for their own entity types here.
	resolver := entities.NewResolver()

	ownershipService := services.NewOwnershipService(logger, ownershipRepo, resolver, eventPublisher(producer))
	ownableModelService := services.NewOwnableModelService(logger, ownableModelRepo, reg)

	walker := enrichment.NewWalker(logger, ownershipService, enrichment.Config{
		Enabled:       cfg.AttachmentEnabled,
		AttachmentKey: cfg.AttachmentKey,
	})

	checker := health.NewChecker(db, redisRaw(redisClient), version)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	e.GET("/health", checker.HealthHandler)
	e.GET("/health/live", checker.LivenessHandler)
	e.GET("/health/ready", checker.ReadinessHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/" + cfg.RoutePrefix)
	api.Use(enrichment.Middleware(walker, reg, logger))

	// A capability checker can be plugged in here; nil allows everything.
	guard := middleware.Capability(logger, nil, "ownable:write")
	handlers.NewOwnershipHandler(ownershipService, logger).Register(api, guard)
	handlers.NewOwnableModelHandler(ownableModelService, logger).Register(api, guard)

	logger.WithFields(map[string]any{
		"owner_models":   cfg.OwnerModels,
		"ownable_models": cfg.OwnableModels,
		"route_prefix":   cfg.RoutePrefix,
	}).Info("ownable configuration loaded")

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		checker.SetReady(true)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	checker.SetReady(false)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down server gracefully")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func connectDB(cfg config.Config, logger ectologger.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)

	var db *sqlx.DB
	var err error
	for attempt := 1; attempt <= cfg.DatabaseReconnectRetryCount; attempt++ {
		db, err = sqlx.Connect(cfg.DatabaseDriver, dsn)
		if err == nil {
			return db, nil
		}
		logger.WithError(err).Warnf("database connection attempt %d failed", attempt)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return nil, err
}

func runMigrations(cfg config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

func connectRedis(cfg config.Config, logger ectologger.Logger) *redis.Client {
	if cfg.RedisHost == "" {
		logger.Info("redis not configured, registry snapshot cache disabled")
		return nil
	}

	client, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, registry snapshot cache disabled")
		return nil
	}
	return client
}

func eventPublisher(producer *events.Producer) services.EventPublisher {
	if producer == nil {
		return nil
	}
	return producer
}

func redisRaw(client *redis.Client) *goredis.Client {
	if client == nil {
		return nil
	}
	return client.Redis()
}
