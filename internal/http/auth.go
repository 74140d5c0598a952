package http

import (
	"context"
	"net/http"
	"strings"
)

// UserIDHeader is set by the authentication proxy in front of the API.
const UserIDHeader = "X-User-ID"

type userKey struct{}

// requireUser rejects requests without an authenticated user id.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, "missing "+UserIDHeader+" header").Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

// userFromContext returns the id placed by requireUser.
func userFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
