// This is a **mock authentication service**, designed to provide JWT tokens
// for the CRM service, simulating user login.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gartstein/crm/internal/crm/auth"
	"go.uber.org/zap"
)

const (
	defaultPort   = "8081"
	defaultSecret = "jwt_secret"
)

// users maps the demo accounts onto their roles.
var users = map[string][]string{
	"user":  {auth.RoleUser},
	"admin": {auth.RoleUser, auth.RoleAdmin},
}

// TokenResponse represents the response structure
type TokenResponse struct {
	Token string   `json:"token"`
	Roles []string `json:"roles"`
}

func tokenHandler(secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := r.URL.Query().Get("username")
		if username == "" {
			username = "user"
		}
		roles, ok := users[username]
		if !ok {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}

		token, err := auth.GenerateToken(username, secret, roles...)
		if err != nil {
			logger.Error("Failed to generate token", zap.Error(err))
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(TokenResponse{Token: token, Roles: roles}); err != nil {
			logger.Error("Failed to encode token", zap.Error(err))
		}
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	secret := envOr("JWT_SECRET", defaultSecret)
	port := envOr("AUTH_PORT", defaultPort)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(secret, logger))

	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("Authentication service running", zap.String("port", port))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("Authentication service stopped", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
