package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/crestbank/core/internal/ledger"
	"github.com/crestbank/core/internal/transport/httpapi/middleware"
	"github.com/crestbank/core/internal/views"
	"github.com/crestbank/core/pkg/money"
)

// AccountHandler handles customer-facing account requests. Every operation
// verifies the account belongs to the caller.
type AccountHandler struct {
	engine *ledger.Service
	views  *views.Service
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(engine *ledger.Service, viewSvc *views.Service) *AccountHandler {
	return &AccountHandler{
		engine: engine,
		views:  viewSvc,
	}
}

// AccountInfo represents an account in responses
type AccountInfo struct {
	ID        int64     `json:"id"`
	Number    string    `json:"account_number"`
	Type      string    `json:"account_type"`
	Currency  string    `json:"currency"`
	Balance   string    `json:"balance"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func accountInfo(a *ledger.Account) *AccountInfo {
	return &AccountInfo{
		ID:        a.ID,
		Number:    a.Number,
		Type:      string(a.Type),
		Currency:  a.Currency,
		Balance:   money.Format(a.Balance),
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

// ownedAccount fetches the account and verifies the caller owns it
func (h *AccountHandler) ownedAccount(r *http.Request, accountID int64) (*ledger.Account, error) {
	userID, _ := middleware.GetPrincipalID(r.Context())
	account, err := h.engine.QueryBalance(r.Context(), accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		// Indistinguishable from a nonexistent account on purpose
		return nil, ledger.ErrAccountNotFound
	}
	return account, nil
}

// CreateAccountRequest represents the account creation request body
type CreateAccountRequest struct {
	Type     string `json:"account_type"`
	Currency string `json:"currency,omitempty"`
}

// CreateAccount handles POST /accounts (self-service)
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID, ok := middleware.GetPrincipalID(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	account, err := h.engine.CreateAccount(r.Context(), ledger.CreateAccountParams{
		UserID:      userID,
		Type:        ledger.AccountType(req.Type),
		Currency:    req.Currency,
		PerformedBy: &userID,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, accountInfo(account), http.StatusCreated)
}

// ListAccounts handles GET /accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetPrincipalID(r.Context())

	accounts, err := h.engine.GetAccountsByUser(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	infos := make([]*AccountInfo, 0, len(accounts))
	for _, a := range accounts {
		infos = append(infos, accountInfo(a))
	}
	respondJSON(w, infos, http.StatusOK)
}

// GetAccount handles GET /accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid account id", http.StatusBadRequest)
		return
	}

	account, err := h.ownedAccount(r, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, accountInfo(account), http.StatusOK)
}

// StatementLineInfo represents one statement row in responses
type StatementLineInfo struct {
	TransactionID int64     `json:"transaction_id"`
	Date          time.Time `json:"date"`
	Type          string    `json:"type"`
	Narrative     string    `json:"narrative"`
	Amount        string    `json:"amount"`
	BalanceAfter  string    `json:"balance_after"`
	Status        string    `json:"status"`
}

func statementLines(lines []*ledger.StatementLine) []*StatementLineInfo {
	out := make([]*StatementLineInfo, 0, len(lines))
	for _, l := range lines {
		out = append(out, &StatementLineInfo{
			TransactionID: l.TransactionID,
			Date:          l.Date,
			Type:          string(l.Type),
			Narrative:     l.Narrative,
			Amount:        money.Format(l.Amount),
			BalanceAfter:  money.Format(l.BalanceAfter),
			Status:        string(l.Status),
		})
	}
	return out
}

// GetStatement handles GET /accounts/{id}/statement
func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid account id", http.StatusBadRequest)
		return
	}

	account, err := h.ownedAccount(r, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	limit := queryInt(r, "limit", 0)
	lines, err := h.engine.QueryStatement(r.Context(), account.ID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, map[string]any{
		"account": accountInfo(account),
		"lines":   statementLines(lines),
	}, http.StatusOK)
}

// GetMiniStatement handles GET /accounts/{id}/mini-statement
func (h *AccountHandler) GetMiniStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid account id", http.StatusBadRequest)
		return
	}

	if _, err := h.ownedAccount(r, id); err != nil {
		respondDomainError(w, err)
		return
	}

	lines, err := h.views.MiniStatement(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, statementLines(lines), http.StatusOK)
}
