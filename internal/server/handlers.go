package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tallybot/tally/internal/auth"
	"github.com/tallybot/tally/internal/ingest"
	"github.com/tallybot/tally/internal/ledger"
	"github.com/tallybot/tally/internal/models"
	"github.com/tallybot/tally/internal/money"
	"github.com/tallybot/tally/internal/storage"
)

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}

	clientID, err := s.clients.Authenticate(req.ClientID, req.ClientSecret)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	token, err := s.tokens.Generate(clientID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
	})
}

type ingestResponse struct {
	GroupID  string `json:"group_id"`
	ChatID   string `json:"chat_id"`
	Recorded int    `json:"recorded"`
}

func (s *Server) handleIngestExpenses(w http.ResponseWriter, r *http.Request) {
	var extract ingest.ExtractedExpenses
	if err := json.NewDecoder(r.Body).Decode(&extract); err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}

	result, err := s.expenses.ApplyExtract(r.Context(), &extract)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		GroupID:  result.Group.ID,
		ChatID:   result.Group.ChatID,
		Recorded: result.Recorded,
	})
}

type groupResponse struct {
	ID              string `json:"id"`
	ChatID          string `json:"chat_id"`
	Name            string `json:"name"`
	Currency        string `json:"currency"`
	LastProcessedAt int64  `json:"last_processed_at"`
	LastSettledAt   int64  `json:"last_settled_at"`
}

func (s *Server) handleGroupByChatID(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	group, err := s.expenses.GroupByChatID(r.Context(), chatID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, groupResponse{
		ID:              group.ID,
		ChatID:          group.ChatID,
		Name:            group.Name,
		Currency:        group.Currency,
		LastProcessedAt: group.LastProcessedAt,
		LastSettledAt:   group.LastSettledAt,
	})
}

type balancesResponse struct {
	GroupID  string                 `json:"group_id"`
	Balances map[string]money.Money `json:"balances"`
}

func (s *Server) handleGroupBalances(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	balances, err := s.expenses.GroupBalances(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balancesResponse{GroupID: groupID, Balances: balances})
}

type settlementResponse struct {
	ID         string      `json:"id"`
	GroupID    string      `json:"group_id"`
	PayerID    string      `json:"payer_id"`
	ReceiverID string      `json:"receiver_id"`
	Amount     money.Money `json:"amount"`
	Status     string      `json:"status"`
	CreatedAt  int64       `json:"created_at"`
	UpdatedAt  int64       `json:"updated_at"`
}

type computeResponse struct {
	GroupID     string               `json:"group_id"`
	Reused      bool                 `json:"reused"`
	Settlements []settlementResponse `json:"settlements"`
}

func (s *Server) handleComputeSettlements(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	result, err := s.settlements.ComputeSettlements(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, computeResponse{
		GroupID:     groupID,
		Reused:      result.Reused,
		Settlements: toSettlementResponses(result.Settlements),
	})
}

type listSettlementsResponse struct {
	GroupID     string               `json:"group_id"`
	Settlements []settlementResponse `json:"settlements"`
}

func (s *Server) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	settlements, err := s.settlements.ListSettlements(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, listSettlementsResponse{
		GroupID:     groupID,
		Settlements: toSettlementResponses(settlements),
	})
}

type transitionRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleCompleteSettlements(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "ids is required")
		return
	}

	count, err := s.settlements.CompleteSettlements(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"completed": count})
}

func (s *Server) handleCancelSettlements(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to parse request body")
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "ids is required")
		return
	}

	count, err := s.settlements.CancelSettlements(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"cancelled": count})
}

func toSettlementResponses(settlements []*models.Settlement) []settlementResponse {
	out := make([]settlementResponse, len(settlements))
	for i, st := range settlements {
		out[i] = settlementResponse{
			ID:         st.ID,
			GroupID:    st.GroupID,
			PayerID:    st.PayerID,
			ReceiverID: st.ReceiverID,
			Amount:     st.Amount,
			Status:     string(st.Status),
			CreatedAt:  st.CreatedAt,
			UpdatedAt:  st.UpdatedAt,
		}
	}
	return out
}

// writeError maps domain errors to HTTP status codes. Invariant violations
// are logged server-side and surface as opaque 500s.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var invariantErr *ledger.InvariantError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ingest.ErrInvalid), errors.Is(err, money.ErrInvalidAmount), errors.Is(err, ledger.ErrNoMembers):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrCurrencyLocked):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invariantErr):
		slog.Error("Ledger invariant violated", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	default:
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
