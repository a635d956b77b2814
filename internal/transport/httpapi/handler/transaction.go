package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crestbank/core/internal/ledger"
	"github.com/crestbank/core/internal/transport/httpapi/middleware"
	"github.com/crestbank/core/internal/views"
	"github.com/crestbank/core/pkg/money"
)

// TransactionHandler handles customer-facing money movement requests
type TransactionHandler struct {
	engine *ledger.Service
	views  *views.Service
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(engine *ledger.Service, viewSvc *views.Service) *TransactionHandler {
	return &TransactionHandler{
		engine: engine,
		views:  viewSvc,
	}
}

// TransferRequest represents the transfer request body. Amount is a decimal
// string; ReferenceID deduplicates client retries.
type TransferRequest struct {
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
	Description   string `json:"description,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
}

// MovementRequest represents the deposit/withdrawal request body
type MovementRequest struct {
	AccountID   int64  `json:"account_id"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// ResultResponse reports a posted transaction. Replays of an already applied
// reference carry the same balance_after the original response did.
type ResultResponse struct {
	TransactionID  int64  `json:"transaction_id"`
	ReferenceID    string `json:"reference_id"`
	Status         string `json:"status"`
	AlreadyApplied bool   `json:"already_applied"`
	BalanceAfter   string `json:"balance_after"`
}

func resultResponse(res *ledger.Result) *ResultResponse {
	return &ResultResponse{
		TransactionID:  res.TransactionID,
		ReferenceID:    res.ReferenceID.String(),
		Status:         string(res.Status),
		AlreadyApplied: res.AlreadyApplied,
		BalanceAfter:   money.Format(res.BalanceAfter),
	}
}

func parseReference(s string) (uuid.UUID, bool) {
	if s == "" {
		return uuid.Nil, true
	}
	ref, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return ref, true
}

// ownsAccount verifies the account belongs to the caller
func (h *TransactionHandler) ownsAccount(r *http.Request, accountID int64) error {
	userID, _ := middleware.GetPrincipalID(r.Context())
	account, err := h.engine.QueryBalance(r.Context(), accountID)
	if err != nil {
		return err
	}
	if account.UserID != userID {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// Transfer handles POST /transactions/transfer
func (h *TransactionHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	ref, ok := parseReference(req.ReferenceID)
	if !ok {
		respondError(w, "reference_id must be a UUID", http.StatusBadRequest)
		return
	}

	// The caller must own the sending account; the receiving account only
	// needs to exist.
	if err := h.ownsAccount(r, req.FromAccountID); err != nil {
		respondDomainError(w, err)
		return
	}

	userID, _ := middleware.GetPrincipalID(r.Context())
	res, err := h.engine.Transfer(r.Context(), ledger.TransferParams{
		SenderAccountID:   req.FromAccountID,
		ReceiverAccountID: req.ToAccountID,
		Amount:            amount,
		Description:       req.Description,
		ReferenceID:       ref,
		InitiatedBy:       &userID,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, resultResponse(res), http.StatusCreated)
}

// Deposit handles POST /transactions/deposit
func (h *TransactionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.engine.Deposit)
}

// Withdraw handles POST /transactions/withdraw
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.engine.Withdraw)
}

func (h *TransactionHandler) movement(w http.ResponseWriter, r *http.Request, post func(ctx context.Context, p ledger.MovementParams) (*ledger.Result, error)) {
	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := money.ParseAmount(req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	ref, ok := parseReference(req.ReferenceID)
	if !ok {
		respondError(w, "reference_id must be a UUID", http.StatusBadRequest)
		return
	}

	if err := h.ownsAccount(r, req.AccountID); err != nil {
		respondDomainError(w, err)
		return
	}

	userID, _ := middleware.GetPrincipalID(r.Context())
	res, err := post(r.Context(), ledger.MovementParams{
		AccountID:   req.AccountID,
		Amount:      amount,
		Description: req.Description,
		ReferenceID: ref,
		InitiatedBy: &userID,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, resultResponse(res), http.StatusCreated)
}

// TransactionInfo represents a transaction with its entries
type TransactionInfo struct {
	ID          int64        `json:"id"`
	ReferenceID string       `json:"reference_id"`
	Type        string       `json:"type"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Entries     []*EntryInfo `json:"entries"`
}

// EntryInfo represents one transaction leg
type EntryInfo struct {
	AccountID    int64  `json:"account_id"`
	Amount       string `json:"amount"`
	Type         string `json:"entry_type"`
	BalanceAfter string `json:"balance_after"`
}

func transactionInfo(tx *ledger.Transaction) *TransactionInfo {
	info := &TransactionInfo{
		ID:          tx.ID,
		ReferenceID: tx.ReferenceID.String(),
		Type:        string(tx.TypeCode),
		Description: tx.Description,
		Status:      string(tx.Status),
		CreatedAt:   tx.CreatedAt,
		CompletedAt: tx.CompletedAt,
		Entries:     make([]*EntryInfo, 0, len(tx.Entries)),
	}
	for _, e := range tx.Entries {
		info.Entries = append(info.Entries, &EntryInfo{
			AccountID:    e.AccountID,
			Amount:       money.Format(e.Amount),
			Type:         string(e.Type()),
			BalanceAfter: money.Format(e.BalanceAfter),
		})
	}
	return info
}

// callerTouches reports whether any entry of the transaction hits one of
// the caller's accounts, or the caller initiated it.
func (h *TransactionHandler) callerTouches(r *http.Request, tx *ledger.Transaction) bool {
	userID, _ := middleware.GetPrincipalID(r.Context())
	if tx.InitiatedBy != nil && *tx.InitiatedBy == userID {
		return true
	}
	for _, e := range tx.Entries {
		account, err := h.engine.QueryBalance(r.Context(), e.AccountID)
		if err == nil && account.UserID == userID {
			return true
		}
	}
	return false
}

// GetTransaction handles GET /transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.GetTransaction(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !h.callerTouches(r, tx) {
		respondDomainError(w, ledger.ErrTransactionNotFound)
		return
	}

	respondJSON(w, transactionInfo(tx), http.StatusOK)
}

// GetTransactionByReference handles GET /transactions/by-reference/{ref}.
// Clients whose request timed out mid-flight resolve the outcome here.
func (h *TransactionHandler) GetTransactionByReference(w http.ResponseWriter, r *http.Request) {
	ref, err := uuid.Parse(chi.URLParam(r, "ref"))
	if err != nil {
		respondError(w, "invalid reference id", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.GetTransactionByReference(r.Context(), ref)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !h.callerTouches(r, tx) {
		respondDomainError(w, ledger.ErrTransactionNotFound)
		return
	}

	respondJSON(w, transactionInfo(tx), http.StatusOK)
}

// History handles GET /transactions/history. Without account_id the query
// spans all of the caller's accounts.
func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetPrincipalID(r.Context())
	f := views.HistoryFilters{
		UserID:   userID,
		TypeCode: ledger.TypeCode(r.URL.Query().Get("type")),
		Search:   r.URL.Query().Get("search"),
		Limit:    queryInt(r, "limit", 0),
		Offset:   queryInt(r, "offset", 0),
	}
	if accountID := int64(queryInt(r, "account_id", 0)); accountID > 0 {
		if err := h.ownsAccount(r, accountID); err != nil {
			respondDomainError(w, err)
			return
		}
		f.AccountID = accountID
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, "from must be RFC3339", http.StatusBadRequest)
			return
		}
		f.From = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, "to must be RFC3339", http.StatusBadRequest)
			return
		}
		f.To = &t
	}
	if v := r.URL.Query().Get("min_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			respondError(w, "min_amount must be a decimal", http.StatusBadRequest)
			return
		}
		f.MinAmount = &d
	}
	if v := r.URL.Query().Get("max_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			respondError(w, "max_amount must be a decimal", http.StatusBadRequest)
			return
		}
		f.MaxAmount = &d
	}

	lines, err := h.views.History(r.Context(), f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, lines, http.StatusOK)
}

// Spending handles GET /transactions/spending-summary
func (h *TransactionHandler) Spending(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetPrincipalID(r.Context())

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, "from must be RFC3339", http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, "to must be RFC3339", http.StatusBadRequest)
			return
		}
		to = t
	}

	summary, err := h.views.Spending(r.Context(), userID, from, to)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, summary, http.StatusOK)
}
