package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"template-store/internal/config"
	"template-store/internal/database/migrations"
	"template-store/internal/kafka"
	"template-store/internal/logger"
	"template-store/internal/purchase"
	purchasedb "template-store/internal/purchase/db"
	purchasekafka "template-store/internal/purchase/kafka"
	"template-store/internal/purchase/purchase_api"
	"template-store/internal/purchase/qr"
	rediswrap "template-store/internal/purchase/redis"
	"template-store/internal/sse"
	templatedb "template-store/internal/templates/db"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Store Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	migrationRunner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		AutoMigrate:   true,
		SeedData:      getEnv("SEED_DATA", "") == "true",
	})
	if err := migrationRunner.RunMigrations(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to run migrations: %v", err))
	}
	defer migrationRunner.Close()

	// Redis backs the webhook dedup fast path. The ledger's conditional
	// update stays correct without it, so a down Redis is not fatal.
	var dedup purchase.EventDedup
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable, webhook dedup disabled: %v", err))
		redisClient.Close()
		redisClient = nil
	} else {
		log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))
		defer redisClient.Close()
		dedup = rediswrap.NewDedup(redisClient)
	}

	var publisher purchase.KafkaPublisher
	var producer *purchasekafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.CreateTopicIfNotExists(cfg.Kafka.Brokers, cfg.Kafka.Topic); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = purchasekafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, purchase events will not be streamed")
	}
	if producer != nil {
		defer producer.Close()
	}

	// A missing Stripe key leaves payments nil: checkout and webhook
	// endpoints answer 503 instead of the process refusing to start.
	payments, err := purchase.NewPaymentClient(cfg.Stripe, cfg.Server.PublicBaseURL, log)
	if err != nil {
		log.Warn("STRIPE", fmt.Sprintf("Payment provider disabled: %v", err))
		payments = nil
	}

	emitter := sse.NewPurchaseEventEmitter()

	purchaseService := purchase.NewPurchaseService(
		&purchasedb.DB{Bun: bunDB},
		&templatedb.DB{Bun: bunDB},
		paymentProvider(payments),
		dedup,
		publisher,
		emitter,
		log,
	)

	handler := purchase_api.NewHandler(purchaseService, qr.NewGenerator(cfg.Server.PublicBaseURL), log)
	sseHandler := purchase_api.NewSSEHandler(log, emitter)

	log.Info("HTTP", "Setting up router")
	r := chi.NewRouter()

	r.Post("/checkout", handler.Checkout)
	r.Post("/payment-webhook", handler.PaymentWebhook)
	r.Get("/purchases/{sessionId}", handler.GetPurchase)
	r.Get("/purchases/{sessionId}/events", sseHandler.HandleSessionEvents)
	r.Get("/downloads/{token}", handler.Download)
	r.Get("/downloads/{token}/qr", handler.DownloadQR)
	r.Get("/bundles", handler.ListBundles)
	r.Get("/templates", handler.ListTemplates)
	r.Get("/templates/{templateId}", handler.GetTemplate)
	log.Info("ROUTER", "Store routes registered")

	// No WriteTimeout: the SSE stream holds its response open until the
	// client disconnects.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Store Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Store Service shutdown complete")
	}
}

// paymentProvider keeps the nil check on the concrete type so a nil
// *PaymentClient does not become a non-nil interface.
func paymentProvider(c *purchase.PaymentClient) purchase.PaymentProvider {
	if c == nil {
		return nil
	}
	return c
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
