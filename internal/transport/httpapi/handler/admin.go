package handler

import (
	"encoding/json"
	"net/http"

	"github.com/crestbank/core/internal/admin"
	"github.com/crestbank/core/internal/audit"
	"github.com/crestbank/core/internal/ledger"
	"github.com/crestbank/core/internal/transport/httpapi/middleware"
	"github.com/crestbank/core/internal/user"
	"github.com/crestbank/core/internal/views"
)

// AdminHandler handles the employee-facing privileged surface
type AdminHandler struct {
	admin *admin.Service
	views *views.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminSvc *admin.Service, viewSvc *views.Service) *AdminHandler {
	return &AdminHandler{
		admin: adminSvc,
		views: viewSvc,
	}
}

func employeeID(r *http.Request) int64 {
	id, _ := middleware.GetPrincipalID(r.Context())
	return id
}

// Dashboard handles GET /admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.views.Dashboard(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, metrics, http.StatusOK)
}

// BalanceSheet handles GET /admin/balance-sheet
func (h *AdminHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.views.BalanceSheet(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, sheet, http.StatusOK)
}

// IntegrityCheck handles GET /admin/integrity. A healthy ledger reports no
// unbalanced transactions and no balance drift.
func (h *AdminHandler) IntegrityCheck(w http.ResponseWriter, r *http.Request) {
	report, err := h.views.IntegrityCheck(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, report, http.StatusOK)
}

// FlaggedTransactions handles GET /admin/flagged-transactions
func (h *AdminHandler) FlaggedTransactions(w http.ResponseWriter, r *http.Request) {
	flagged, err := h.views.Flagged(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, flagged, http.StatusOK)
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	f := user.Filters{
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 0),
	}
	if v := r.URL.Query().Get("kyc_status"); v != "" {
		status := user.KYCStatus(v)
		if !status.Valid() {
			respondError(w, "invalid kyc_status", http.StatusBadRequest)
			return
		}
		f.KYCStatus = &status
	}

	users, err := h.admin.ListUsers(r.Context(), f)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	infos := make([]*UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, userInfo(u))
	}
	respondJSON(w, infos, http.StatusOK)
}

// GetUser handles GET /admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	u, err := h.admin.GetUser(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, userInfo(u), http.StatusOK)
}

// UserAccounts handles GET /admin/users/{id}/accounts
func (h *AdminHandler) UserAccounts(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	accounts, err := h.admin.UserAccounts(r.Context(), id)
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

// UserRiskScores handles GET /admin/users/{id}/risk-scores
func (h *AdminHandler) UserRiskScores(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	scores, err := h.views.RiskScores(r.Context(), id, queryInt(r, "limit", 0))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, scores, http.StatusOK)
}

// SetKYCRequest represents the KYC decision request body
type SetKYCRequest struct {
	Status string `json:"status"`
}

// SetKYCStatus handles PUT /admin/users/{id}/kyc
func (h *AdminHandler) SetKYCStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req SetKYCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.admin.SetKYCStatus(r.Context(), id, user.KYCStatus(req.Status), employeeID(r)); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "kyc updated"}, http.StatusOK)
}

// SetActiveRequest represents the activation request body
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// SetUserActive handles PUT /admin/users/{id}/active
func (h *AdminHandler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.admin.SetUserActive(r.Context(), id, req.Active, employeeID(r)); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "activation updated"}, http.StatusOK)
}

// AdminCreateAccountRequest represents the admin account creation body
type AdminCreateAccountRequest struct {
	UserID   int64  `json:"user_id"`
	Type     string `json:"account_type"`
	Currency string `json:"currency,omitempty"`
}

// CreateAccount handles POST /admin/accounts
func (h *AdminHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req AdminCreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	account, err := h.admin.CreateAccountFor(r.Context(), req.UserID, ledger.AccountType(req.Type), req.Currency, employeeID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, accountInfo(account), http.StatusCreated)
}

// ToggleFreeze handles POST /admin/accounts/{id}/freeze
func (h *AdminHandler) ToggleFreeze(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid account id", http.StatusBadRequest)
		return
	}

	status, err := h.admin.ToggleFreeze(r.Context(), id, employeeID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": string(status)}, http.StatusOK)
}

// CloseAccount handles POST /admin/accounts/{id}/close
func (h *AdminHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid account id", http.StatusBadRequest)
		return
	}

	if err := h.admin.CloseAccount(r.Context(), id, employeeID(r)); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "closed"}, http.StatusOK)
}

// ReverseTransaction handles POST /admin/transactions/{id}/reverse
func (h *AdminHandler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "id")
	if !ok {
		respondError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	res, err := h.admin.ReverseTransaction(r.Context(), id, employeeID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, resultResponse(res), http.StatusCreated)
}

// History handles GET /admin/transactions (unrestricted filters)
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	f := views.HistoryFilters{
		UserID:    int64(queryInt(r, "user_id", 0)),
		AccountID: int64(queryInt(r, "account_id", 0)),
		TypeCode:  ledger.TypeCode(r.URL.Query().Get("type")),
		Search:    r.URL.Query().Get("search"),
		Limit:     queryInt(r, "limit", 0),
		Offset:    queryInt(r, "offset", 0),
	}

	lines, err := h.views.History(r.Context(), f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, lines, http.StatusOK)
}

// AuditLogs handles GET /admin/audit-logs
func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	f := audit.Filters{
		Limit: queryInt(r, "limit", 0),
	}
	if v := r.URL.Query().Get("entity_type"); v != "" {
		et := audit.EntityType(v)
		f.EntityType = &et
	}
	if v := int64(queryInt(r, "entity_id", 0)); v > 0 {
		f.EntityID = &v
	}

	logs, err := h.admin.AuditLogs(r.Context(), f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, logs, http.StatusOK)
}
