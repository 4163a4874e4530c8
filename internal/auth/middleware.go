package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var errMissingToken = errors.New("auth: missing bearer token")

// contextKey is unexported so no other package can collide with it.
type contextKey string

const clientKey contextKey = "bridgeClient"

// RequireBridgeToken rejects requests without a valid bridge token and
// stores the token's client name in the request context.
//
// The 401 body uses the same {success:false, error, message} shape as
// every other bridge failure.
func RequireBridgeToken(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, err := extractClient(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"success":false,"error":"unauthorized","message":"valid bridge token required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), clientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// clientFromContext returns the bridge client that made the request.
func clientFromContext(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(clientKey).(string)
	return c, ok && c != ""
}

// extractClient reads the Bearer header, falling back to the access_token
// query parameter for embedded viewers that cannot set headers.
func extractClient(r *http.Request, tokens *TokenService) (string, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		token = r.URL.Query().Get("access_token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingToken
	}
	return tokens.Validate(token)
}
