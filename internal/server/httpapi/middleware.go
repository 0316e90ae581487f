package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/melcdl/melcdl-backend/internal/common"
	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/melcdl/melcdl-backend/internal/server/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserID returns the authenticated user id placed into the request context
// by the auth middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// authMiddleware verifies the Bearer access token and stores the user id in
// the request context.
func authMiddleware(secretKey []byte, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(r.Context(), w, log, common.ErrorUnauthorized)
				return
			}

			userID, err := auth.GetUserIDFromToken(token, auth.TokenKindAccess, secretKey)
			if err != nil {
				writeError(r.Context(), w, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
