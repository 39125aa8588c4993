package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/checkbill/checkbill/internal/config"
	"github.com/checkbill/checkbill/internal/middleware"
	"github.com/checkbill/checkbill/internal/service"
	"github.com/checkbill/checkbill/internal/shortener"
	"github.com/checkbill/checkbill/internal/storage/sqlite"
	"github.com/checkbill/checkbill/pkg/logging"
)

func main() {
	logging.Setup()

	cfg := config.Load()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	short := shortener.New(cfg.ShortenerURL, cfg.ShortenerToken)
	if cfg.ShortenerURL == "" {
		slog.Info("Link shortener not configured, share links use the long form")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging, middleware.Metrics)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	svc := service.NewLedgerService(store, short, cfg.BaseURL)
	svc.Routes(router)

	// Note: with a wildcard origin, credentials must stay disabled.
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}).Handler(router)

	// h2c enables HTTP/2 without TLS for local and reverse-proxied setups.
	handler := h2c.NewHandler(corsHandler, &http2.Server{})

	slog.Info("Server starting", "address", cfg.Bind, "base_url", cfg.BaseURL)
	if err := http.ListenAndServe(cfg.Bind, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
