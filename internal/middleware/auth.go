package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"covid_slayer/internal/domain/user"
	errs "covid_slayer/internal/errors"
	"covid_slayer/internal/httpresponse"
)

const TokenCookieName = "token"

type ctxKey struct{}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

// TokenFromRequest prefers an Authorization bearer token over the cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Auth rejects requests without a valid session and stores the caller in the
// request context.
func Auth(authenticator Authenticator, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				httpresponse.WriteMessage(w, http.StatusUnauthorized, "Access denied. No token provided.")
				return
			}

			current, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, errs.ErrUnauthorized) && !errors.Is(err, errs.ErrTokenRevoked) {
					log.Errorf("auth middleware: %v", err)
					httpresponse.WriteMessage(w, http.StatusInternalServerError, "Server error in authentication")
					return
				}
				httpresponse.WriteMessage(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), current)))
		})
	}
}

func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*user.User)
	return u, ok && u != nil
}
