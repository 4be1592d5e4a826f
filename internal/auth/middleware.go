package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// CookieName is the HttpOnly cookie that carries the JWT.
const CookieName = "token"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A plain string key could be
// read or shadowed by any package that knows the string. Only this package
// can create a contextKey, so only this package can read or write the
// userID stored under it.
type contextKey string

const userIDKey contextKey = "userID"

var errNoToken = errors.New("auth: no token in request")

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the "token" cookie or from an
// "Authorization: Bearer <jwt>" header, validates it, and stores the userID
// in the request context. If the token is missing or invalid, it returns
// 401 Unauthorized and stops the request chain.
//
// TWO KINDS OF CLIENTS:
//   - Browsers get the HttpOnly cookie on login. JavaScript cannot read it,
//     which keeps the token away from XSS.
//   - Agents and scripts (the /mcp endpoint, curl) send the header.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying the authenticated user id.
// RequireAuth uses it; tests use it to fake an authenticated request.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous (no valid token was present).
// Returns (id, true) if the user is authenticated.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID finds the JWT in the request and validates it.
// The Authorization header wins over the cookie when both are present.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", errNoToken
		}
		return tokens.Validate(strings.TrimSpace(token))
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		// http.ErrNoCookie means the cookie isn't present
		return "", errNoToken
	}
	return tokens.Validate(cookie.Value)
}
