package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/campuscafe/ordering/internal/adapter/handler"
	"github.com/campuscafe/ordering/internal/adapter/payment"
	"github.com/campuscafe/ordering/internal/adapter/storage"
	"github.com/campuscafe/ordering/internal/core/service"
	"github.com/campuscafe/ordering/internal/pkg/telemetry"
)

func main() {
	telemetry.InitLogger()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file, using environment variables")
	}

	httpAddr := getEnv("HTTP_ADDR", ":8080")
	mysqlDSN := getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/cafe?parseTime=true")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	gatewayURL := getEnv("PAYMENT_GATEWAY_URL", "https://api.stripe.com")
	gatewayKey := getEnv("PAYMENT_GATEWAY_KEY", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		slog.Error("failed to open mysql", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		slog.Error("failed to ping mysql", "error", err)
		os.Exit(1)
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to redis")

	// Adapters
	orderRepo := storage.NewMySQLAdapter(db)
	catalog := storage.NewMySQLMenuCatalog(db)
	relay := storage.NewRedisAdapter(rdb)
	gateway := payment.NewHTTPGateway(gatewayURL, gatewayKey, 10*time.Second)

	if err := catalog.SeedMenu(ctx, storage.DefaultMenu()); err != nil {
		slog.Error("failed to seed menu", "error", err)
		os.Exit(1)
	}

	// Core
	cfg := service.Config{
		AvailableLabor: getEnvFloat("AVAILABLE_LABOR", 0.8),
		Currency:       getEnv("CURRENCY", "pkr"),
		PeakStartHour:  getEnvInt("PEAK_START_HOUR", 0),
		PeakEndHour:    getEnvInt("PEAK_END_HOUR", 0),
		Estimator: service.EstimatorConfig{
			ApplyCap: getEnv("APPLY_ESTIMATE_CAP", "") == "true",
		},
	}
	loads := service.NewLoadEstimator(orderRepo)
	calc := service.NewPrepTimeCalculator(catalog, cfg.Estimator)
	orders := service.NewOrderService(orderRepo, loads, calc, gateway, relay, cfg)

	// HTTP server
	httpHandler := handler.NewHTTPHandler(orders, relay)
	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: handler.NewRouter(httpHandler),
	}

	go func() {
		slog.Info("HTTP server listening", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	slog.Info("HTTP server stopped")

	rdb.Close()
	db.Close()
	slog.Info("connections closed")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
