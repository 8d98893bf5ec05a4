package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/stattrack/bot/internal/bot"
	"github.com/stattrack/bot/internal/deletion"
	"github.com/stattrack/bot/internal/service"
	"github.com/stattrack/bot/internal/storage"
	"github.com/stattrack/bot/internal/storage/diskv"
	"github.com/stattrack/bot/internal/storage/sqlite"
	"github.com/stattrack/bot/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// newStore picks the document store backend from the environment.
func newStore() (storage.Store, error) {
	switch backend := getEnv("STORE_BACKEND", "sqlite"); backend {
	case "sqlite":
		return sqlite.New(getEnv("DB_PATH", "./data/stats.db"))
	case "diskv":
		return diskv.New(getEnv("DATA_PATH", "./data/records"))
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want sqlite or diskv)", backend)
	}
}

func main() {
	logging.Setup()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		slog.Error("TELEGRAM_BOT_TOKEN environment variable is required")
		os.Exit(1)
	}
	confirmSecret := os.Getenv("CONFIRM_SECRET")
	if confirmSecret == "" {
		slog.Error("CONFIRM_SECRET environment variable is required")
		os.Exit(1)
	}

	store, err := newStore()
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "backend", getEnv("STORE_BACKEND", "sqlite"))

	svc := service.New(
		storage.NewAdapter(store),
		deletion.NewTokenCodec(confirmSecret, deletion.DefaultTokenTTL),
	)
	webhook := bot.NewWebhook(svc, bot.NewClient(token), os.Getenv("WEBHOOK_SECRET"))

	mux := http.NewServeMux()
	mux.Handle("POST /webhook", webhook)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	loggedHandler := loggingMiddleware(mux)

	// Wrap with h2c so the server speaks HTTP/2 without TLS behind a proxy.
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	addr := ":" + getEnv("PORT", "8080")
	slog.Info("Webhook server starting", "address", addr)
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
