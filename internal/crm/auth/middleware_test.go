package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPMiddleware(t *testing.T) {
	userToken := signedToken(validSecret, time.Now().Add(time.Hour), RoleUser)
	adminToken := signedToken(validSecret, time.Now().Add(time.Hour), RoleUser, RoleAdmin)

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantUser   bool
	}{
		{name: "search is public", method: http.MethodGet, path: "/v1/contacts", wantStatus: http.StatusOK},
		{name: "lookups are public", method: http.MethodGet, path: "/v1/companies", wantStatus: http.StatusOK},
		{name: "health is public", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "save needs token", method: http.MethodPost, path: "/v1/contacts", wantStatus: http.StatusUnauthorized},
		{name: "save with user token", method: http.MethodPost, path: "/v1/contacts", header: "Bearer " + userToken, wantStatus: http.StatusOK, wantUser: true},
		{name: "delete with bad prefix", method: http.MethodDelete, path: "/v1/contacts/1", header: "Token " + userToken, wantStatus: http.StatusUnauthorized},
		{name: "delete with bad token", method: http.MethodDelete, path: "/v1/contacts/1", header: "Bearer garbage", wantStatus: http.StatusUnauthorized},
		{name: "list session needs token", method: http.MethodGet, path: "/v1/list", wantStatus: http.StatusUnauthorized},
		{name: "list session with token", method: http.MethodGet, path: "/v1/list", header: "Bearer " + userToken, wantStatus: http.StatusOK, wantUser: true},
		{name: "dashboard forbidden for user", method: http.MethodGet, path: "/v1/dashboard", header: "Bearer " + userToken, wantStatus: http.StatusForbidden},
		{name: "dashboard for admin", method: http.MethodGet, path: "/v1/dashboard", header: "Bearer " + adminToken, wantStatus: http.StatusOK, wantUser: true},
		{name: "company create forbidden for user", method: http.MethodPost, path: "/v1/companies", header: "Bearer " + userToken, wantStatus: http.StatusForbidden},
		{name: "status delete for admin", method: http.MethodDelete, path: "/v1/statuses/1", header: "Bearer " + adminToken, wantStatus: http.StatusOK, wantUser: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sawUser bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				sub, ok := SubjectFromContext(r.Context())
				sawUser = ok && sub == userID
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			HTTPMiddleware(next, validSecret).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, sawUser)
		})
	}
}

func TestHasRole(t *testing.T) {
	claims, err := validateToken(signedToken(validSecret, time.Now().Add(time.Hour), RoleAdmin), validSecret)
	assert.NoError(t, err)

	ctx := WithClaims(httptest.NewRequest(http.MethodGet, "/", nil).Context(), claims)
	assert.True(t, HasRole(ctx, RoleAdmin))
	assert.False(t, HasRole(ctx, RoleUser))

	_, ok := SubjectFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
