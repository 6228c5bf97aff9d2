package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/viewtube/internal/server/auth"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// UserIDFromContext returns the authenticated user id injected by the auth
// middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// requireAuth verifies the access token from the Authorization header
// (Bearer scheme) or the accessToken cookie, and puts the user id into the
// request context. Requests without a valid token get a 401 envelope.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var accessToken string

		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			accessToken = strings.TrimPrefix(h, "Bearer ")
		} else if ck, err := r.Cookie(accessTokenCookie); err == nil {
			accessToken = ck.Value
		}

		if accessToken == "" {
			writeError(w, http.StatusUnauthorized, "missing access token")
			return
		}

		userID, err := auth.GetUserIDFromToken(accessToken, s.accessSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
