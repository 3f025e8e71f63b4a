package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can read or overwrite the
// user id stored by RequireAuth.
type contextKey string

const userIDKey contextKey = "userID"

// RequireAuth enforces a bearer token on every request it wraps.
//
//   - no "Authorization: Bearer <token>" header → 401 {"error":"Unauthorized"}
//   - token present but invalid or expired     → 403 {"error":"Invalid token"}
//
// On success the user id is stored in the request context; handlers read it
// with UserIDFromContext. Whether the user still exists is the handler's
// concern (see GET /api/auth/verify).
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			userID, err := tokens.Validate(raw)
			if err != nil {
				writeAuthError(w, http.StatusForbidden, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's id.
// Returns (0, false) outside a RequireAuth-protected route.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
