package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crestbank/core/pkg/logger"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// PrincipalIDKey is the context key for the authenticated principal's id
	PrincipalIDKey ContextKey = "principal_id"
	// PrincipalKindKey is the context key for the principal kind
	PrincipalKindKey ContextKey = "principal_kind"
	// PrincipalRoleKey is the context key for the principal's role
	PrincipalRoleKey ContextKey = "principal_role"
)

// Principal kinds carried in the token.
const (
	KindUser     = "user"
	KindEmployee = "employee"
)

// Claims represents the JWT claims
type Claims struct {
	PrincipalID int64  `json:"principal_id"`
	Kind        string `json:"kind"` // user or employee
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token generation and validation
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// GenerateToken generates a new JWT token for a principal
func (s *JWTService) GenerateToken(principalID int64, kind, role string) (string, error) {
	// Set token expiration to 24 hours
	expirationTime := time.Now().Add(24 * time.Hour)

	claims := &Claims{
		PrincipalID: principalID,
		Kind:        kind,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "crestbank",
		},
	}

	// Create token with HS256 signing method
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method (prevent algorithm confusion attacks)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// Auth creates a middleware that validates bearer tokens for the given
// principal kind.
func Auth(jwtService *JWTService, kind string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			if claims.Kind != kind {
				http.Error(w, "wrong principal kind for this endpoint", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalIDKey, claims.PrincipalID)
			ctx = context.WithValue(ctx, PrincipalKindKey, claims.Kind)
			ctx = context.WithValue(ctx, PrincipalRoleKey, claims.Role)
			// Also expose the principal to the request logger
			ctx = context.WithValue(ctx, logger.PrincipalKey,
				claims.Kind+":"+strconv.FormatInt(claims.PrincipalID, 10))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserAuth validates customer tokens.
func UserAuth(jwtService *JWTService) func(http.Handler) http.Handler {
	return Auth(jwtService, KindUser)
}

// EmployeeAuth validates employee tokens.
func EmployeeAuth(jwtService *JWTService) func(http.Handler) http.Handler {
	return Auth(jwtService, KindEmployee)
}

// GetPrincipalID extracts the authenticated principal's id from the context
func GetPrincipalID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(PrincipalIDKey).(int64)
	return id, ok
}

// GetPrincipalRole extracts the principal's role from the context
func GetPrincipalRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(PrincipalRoleKey).(string)
	return role, ok
}
