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

	"template-store/internal/auth"
	"template-store/internal/config"
	"template-store/internal/logger"
	"template-store/internal/templates"
	templatedb "template-store/internal/templates/db"
	"template-store/internal/templates/generator"
	"template-store/internal/templates/template_api"

	"github.com/gin-gonic/gin"
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
		if err == nil {
			err = sqldb.Ping()
		}
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

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Template Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	// Research client is optional: without an API key the generation and
	// trend endpoints answer 503 while CRUD keeps working.
	var research templates.ResearchClient
	client, err := generator.NewClient(cfg.Generation, &http.Client{Timeout: cfg.Generation.Timeout}, log)
	if err != nil {
		log.Warn("TEMPLATE", fmt.Sprintf("AI generation disabled: %v", err))
	} else {
		research = client
	}

	templateService := templates.NewTemplateService(&templatedb.DB{Bun: bunDB}, research, log)
	handler := template_api.NewHandler(templateService, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// Reads are open; mutations and paid AI calls sit behind OIDC.
	r.GET("/templates", handler.ListTemplates)
	r.GET("/templates/:templateId", handler.GetTemplate)

	protected := r.Group("/")
	authMiddleware, err := auth.Middleware(os.Getenv("OIDC_ISSUER"))
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to initialize OIDC middleware: %v", err))
	}
	protected.Use(authMiddleware)
	{
		protected.POST("/templates", handler.CreateTemplate)
		protected.PATCH("/templates/:templateId", handler.UpdateTemplate)
		protected.DELETE("/templates/:templateId", handler.DeleteTemplate)
		protected.POST("/templates/generate", handler.GenerateTemplate)
		protected.POST("/trends/research", handler.ResearchTrends)
		protected.GET("/optimization/analyze/:templateId", handler.AnalyzeTemplate)
		protected.GET("/optimization/portfolio", handler.PortfolioReport)
		protected.POST("/optimization/evolve/:templateId", handler.EvolveTemplate)
	}
	log.Info("ROUTER", "Template routes registered")

	addr := getEnv("TEMPLATE_SERVICE_PORT", ":8081")
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Template Service running on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Template Service shutdown complete")
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
