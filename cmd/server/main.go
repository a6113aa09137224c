package main

import (
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tallybot/tally/internal/auth"
	"github.com/tallybot/tally/internal/config"
	"github.com/tallybot/tally/internal/server"
	"github.com/tallybot/tally/internal/service"
	"github.com/tallybot/tally/internal/storage/sqlite"
	"github.com/tallybot/tally/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	srv := server.New(
		service.NewExpenseService(store),
		service.NewSettlementService(store),
		auth.NewClientAuthenticator(cfg.ClientID, cfg.ClientSecretHash),
		auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		cfg.TokenTTL,
	)

	// h2c so HTTP/2 works without TLS behind a plain reverse proxy.
	handler := h2c.NewHandler(srv.Router(), &http2.Server{})

	slog.Info("Ledger server starting", "address", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
