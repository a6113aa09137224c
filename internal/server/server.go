// Package server exposes the ledger engine over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tallybot/tally/internal/auth"
	"github.com/tallybot/tally/internal/middleware"
	"github.com/tallybot/tally/internal/service"
)

// Server wires the HTTP API to the expense and settlement services.
type Server struct {
	expenses    *service.ExpenseService
	settlements *service.SettlementService
	clients     *auth.ClientAuthenticator
	tokens      *auth.JWTManager
	tokenTTL    time.Duration
}

// New creates a Server over the given services and auth components.
func New(
	expenses *service.ExpenseService,
	settlements *service.SettlementService,
	clients *auth.ClientAuthenticator,
	tokens *auth.JWTManager,
	tokenTTL time.Duration,
) *Server {
	return &Server{
		expenses:    expenses,
		settlements: settlements,
		clients:     clients,
		tokens:      tokens,
		tokenTTL:    tokenTTL,
	}
}

// Router builds the route tree. Everything under /v1 except the token
// endpoint requires a bearer token.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.Metrics)
	r.Use(middleware.RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/token", s.handleToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.tokens))

			r.Post("/expenses", s.handleIngestExpenses)

			r.Get("/chats/{chatID}/group", s.handleGroupByChatID)

			r.Route("/groups/{groupID}", func(r chi.Router) {
				r.Get("/balances", s.handleGroupBalances)
				r.Get("/settlements", s.handleListSettlements)
				r.Post("/settlements", s.handleComputeSettlements)
			})

			r.Post("/settlements/complete", s.handleCompleteSettlements)
			r.Post("/settlements/cancel", s.handleCancelSettlements)
		})
	})

	return r
}
