package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireBridgeToken(t *testing.T) {
	ts := newTestTokenService(t)
	valid, _ := ts.Generate("desktop-ui")

	var seen string
	h := RequireBridgeToken(ts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = clientFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"valid token", "Bearer " + valid, "", http.StatusNoContent},
		{"missing header", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"query token", "", "?access_token=" + valid, http.StatusNoContent},
		{"bad query token", "", "?access_token=nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/users"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t,
					`{"success":false,"error":"unauthorized","message":"valid bridge token required"}`,
					rec.Body.String())
				assert.Empty(t, seen)
			} else {
				assert.Equal(t, "desktop-ui", seen)
			}
		})
	}
}
