package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/crestbank/core/internal/employee"
	"github.com/crestbank/core/internal/transport/httpapi/middleware"
	"github.com/crestbank/core/internal/user"
)

// AuthHandler handles authentication-related HTTP requests for both
// customers and employees
type AuthHandler struct {
	users      *user.Service
	employees  *employee.Service
	jwtService *middleware.JWTService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *user.Service, employees *employee.Service, jwtService *middleware.JWTService) *AuthHandler {
	return &AuthHandler{
		users:      users,
		employees:  employees,
		jwtService: jwtService,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username    string  `json:"username"`
	Password    string  `json:"password"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone,omitempty"`
	FullName    string  `json:"full_name"`
	DateOfBirth string  `json:"date_of_birth"` // YYYY-MM-DD
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// UserInfo represents user information (without sensitive data)
type UserInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	KYCStatus string `json:"kyc_status"`
	Role      string `json:"role"`
}

func userInfo(u *user.User) *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		KYCStatus: string(u.KYCStatus),
		Role:      string(u.Role),
	}
}

// Register handles customer registration (POST /auth/register)
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" || req.Email == "" {
		respondError(w, "username, password and email are required", http.StatusBadRequest)
		return
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		respondError(w, "date_of_birth must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	registered, err := h.users.Register(r.Context(), user.RegisterParams{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		Phone:       req.Phone,
		FullName:    req.FullName,
		DateOfBirth: dob,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	token, err := h.jwtService.GenerateToken(registered.ID, middleware.KindUser, string(registered.Role))
	if err != nil {
		respondError(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, AuthResponse{Token: token, User: userInfo(registered)}, http.StatusCreated)
}

// Login handles customer login (POST /auth/login)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		respondError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	authenticated, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	token, err := h.jwtService.GenerateToken(authenticated.ID, middleware.KindUser, string(authenticated.Role))
	if err != nil {
		respondError(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, AuthResponse{Token: token, User: userInfo(authenticated)}, http.StatusOK)
}

// EmployeeAuthResponse represents the employee authentication response
type EmployeeAuthResponse struct {
	Token    string `json:"token"`
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	FullName string `json:"full_name"`
	Dept     string `json:"department"`
}

// EmployeeLogin handles employee login (POST /auth/employee/login)
func (h *AuthHandler) EmployeeLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		respondError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	e, err := h.employees.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	token, err := h.jwtService.GenerateToken(e.ID, middleware.KindEmployee, string(e.Department))
	if err != nil {
		respondError(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, EmployeeAuthResponse{
		Token:    token,
		ID:       e.ID,
		Code:     e.Code,
		FullName: e.FullName,
		Dept:     string(e.Department),
	}, http.StatusOK)
}
