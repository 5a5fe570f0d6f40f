package middleware

import (
	"context"
	"net/http"
	"strings"

	"pms/internal/domain/auth"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// UserLoader resolves the acting user from verified token claims.
type UserLoader interface {
	UserByID(ctx context.Context, userID string) (auth.User, error)
}

// Auth verifies a bearer token and attaches the acting user to the
// request context. Requests without a valid token pass through
// unauthenticated; protected endpoints reject them via GetUser.
func Auth(secret string, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.UserByID(r.Context(), claims.UserID)
			if err != nil || user.Status != auth.UserStatusActive {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUser(ctx context.Context) (auth.User, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.User)
	return user, ok
}

// WithUser is used by handler tests to inject an authenticated user.
func WithUser(ctx context.Context, user auth.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}
