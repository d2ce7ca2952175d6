package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/outofoffice/internal/auth"
	"github.com/dukerupert/outofoffice/internal/handler"
	"github.com/dukerupert/outofoffice/internal/store"
)

// SessionCookieName is the cookie carrying a session token.
const SessionCookieName = "ooo_session"

// sessionToken reads the token from the session cookie or a bearer
// Authorization header.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAuth validates the session token and populates the caller Identity.
// Requests without a valid session get a JSON 401.
func RequireAuth(sessionStore *store.SessionStore, userStore *store.UserStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				handler.WriteUnauthorized(w)
				return
			}

			sess, err := sessionStore.GetByToken(r.Context(), token)
			if err != nil {
				logger.Error("session lookup failed", "error", err)
				handler.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal_server_error")
				return
			}
			if sess == nil {
				handler.WriteUnauthorized(w)
				return
			}

			user, err := userStore.GetByID(r.Context(), sess.UserID)
			if err != nil {
				logger.Error("user lookup failed", "user_id", sess.UserID, "error", err)
				handler.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal_server_error")
				return
			}
			if user == nil {
				handler.WriteUnauthorized(w)
				return
			}

			id := auth.Identity{
				UserID:    user.ID,
				Email:     user.Email,
				Username:  user.Username,
				Locale:    user.Locale,
				SessionID: sess.ID,
			}

			ctx := auth.WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
