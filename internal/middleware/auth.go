package middleware

import (
	"log/slog"
	"net/http"

	"github.com/templui/imagevault/internal/ctxkeys"
	"github.com/templui/imagevault/internal/service"
)

// AuthMiddleware reads the session cookie and adds the user to the context if
// it is valid. Sessions past half their lifetime are reissued.
func AuthMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(service.SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := authService.VerifySession(cookie.Value)
			if err != nil {
				// Invalid token, clear cookie and continue
				authService.ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			if authService.NeedsRefresh(session) {
				err = authService.SignIn(w, session.User)
				if err != nil {
					slog.Warn("failed to refresh session", "error", err, "email", session.User.Email)
				}
			}

			ctx := ctxkeys.WithUser(r.Context(), session.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a signed-in user with 401
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
