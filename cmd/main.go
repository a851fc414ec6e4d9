package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shenikar/incident_documents/internal/config"
	v1 "github.com/shenikar/incident_documents/internal/handler/http/v1"
	"github.com/shenikar/incident_documents/internal/repository"
	"github.com/shenikar/incident_documents/internal/service"
	"github.com/shenikar/incident_documents/internal/storage"
	"github.com/shenikar/incident_documents/internal/webhook"
	"github.com/shenikar/incident_documents/pkg/logger"
	"github.com/shenikar/incident_documents/pkg/postgres"
	redisclient "github.com/shenikar/incident_documents/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/incident_documents/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Incident Documents API
// @version 1.0
// @description Incident register with document attachments kept in an object store.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
		migrationURL = strings.Replace(migrationURL, "postgresql://", "pgx5://", 1)
	}

	m, err := migrate.New(
		"file://migrations",
		migrationURL,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запуск миграций
	if err := runMigrations(cfg, log); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Подключение к PostgreSQL
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbpool.Close()
	log.Info("Successfully connected to PostgreSQL")

	// Redis необязателен: без него нет кеша и вебхуков
	var (
		redisClient      *goredis.Client
		webhookPublisher webhook.WebhookPublisher
		cachePinger      service.Pinger
	)
	if cfg.RedisAddr != "" {
		redisClient, err = redisclient.NewRedisClient(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")

		webhookPublisher = webhook.NewRedisWebhookPublisher(redisClient)
		cachePinger = service.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

		// Инициализация и запуск воркера вебхуков
		webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
		webhookWorker.Start(ctx)
	} else {
		log.Warn("REDIS_ADDR is empty, cache and webhooks are disabled")
	}

	// Объектное хранилище
	store, err := storage.NewObjectStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}
	probe := store.Probe(ctx)
	log.WithFields(logrus.Fields{
		"backend": probe.Backend,
		"bucket":  probe.Bucket,
		"status":  probe.Status,
	}).Info("Object store initialized")

	classifier, err := storage.NewClassifier(cfg.MaxFileSize)
	if err != nil {
		log.Fatalf("Failed to initialize file classifier: %v", err)
	}

	// Инициализация репозиториев
	incidentRepo := repository.NewIncidentRepository(dbpool, redisClient, cfg.CacheTTL)
	documentRepo := repository.NewDocumentRepository(dbpool)

	// Инициализация сервисов
	documentService := service.NewDocumentService(
		incidentRepo, documentRepo, store, classifier, storage.NewKeyGenerator(), webhookPublisher, log, cfg,
	)
	incidentService := service.NewIncidentService(incidentRepo, documentRepo, documentService, webhookPublisher, log)
	diagnostics := service.NewDiagnosticsService(incidentRepo, store, cachePinger, log)

	if len(cfg.APIKeys) == 0 {
		log.Warn("API_KEYS is empty, write routes will reject every request")
	}

	// Инициализация хэндлеров
	handler := v1.NewHandler(incidentService, documentService, diagnostics, classifier, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	// порог хранения multipart-файлов в памяти
	router.MaxMultipartMemory = classifier.MaxSize()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	cancel()

	log.Info("Server gracefully stopped")
}
