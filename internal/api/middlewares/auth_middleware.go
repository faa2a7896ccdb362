package middleware

import (
	"context"
	"net/http"

	"github.com/markdave123-py/Contexta/internal/api/render"
	"github.com/markdave123-py/Contexta/internal/auth"
	"github.com/markdave123-py/Contexta/internal/models"
)

type ctxKey struct{}

// Authenticate validates the bearer token and attaches the resolved user to
// the request context.
func Authenticate(guard *auth.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := guard.ValidateHeader(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				render.Error(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.User)
	return u, ok && u != nil
}
