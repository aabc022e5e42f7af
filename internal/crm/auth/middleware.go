package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const userContextKey contextKey = "user"

type access int

const (
	public access = iota
	authenticated
	adminOnly
)

// HTTPMiddleware requires a valid Bearer token on every route that changes
// data or holds per-user state, and the ADMIN role on the dashboard and on
// company and status management.
func HTTPMiddleware(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		required := requiredAccess(r)
		if required == public {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := extractTokenFromHeader(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := validateToken(tokenString, jwtSecret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if required == adminOnly && !hasRole(claims, RoleAdmin) {
			http.Error(w, "admin role required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func extractTokenFromHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization format")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" {
		return "", fmt.Errorf("invalid authorization format")
	}
	return tokenString, nil
}

func requiredAccess(r *http.Request) access {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v1/dashboard"):
		return adminOnly
	case strings.HasPrefix(path, "/v1/companies"), strings.HasPrefix(path, "/v1/statuses"):
		if r.Method == http.MethodGet {
			return public
		}
		return adminOnly
	case strings.HasPrefix(path, "/v1/list"):
		return authenticated
	case strings.HasPrefix(path, "/v1/contacts"):
		if r.Method == http.MethodGet {
			return public
		}
		return authenticated
	}
	return public
}

// WithClaims stores validated token claims in ctx.
func WithClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// SubjectFromContext returns the token subject of an authenticated request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// HasRole reports whether the authenticated caller carries role.
func HasRole(ctx context.Context, role string) bool {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	return ok && hasRole(claims, role)
}
