package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller attached to the request context
// by the auth gate.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Middleware authenticates requests from the access cookie. It never
// touches the session cookies on failure; only the refresh and signout
// endpoints mutate them.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := logger.GetRequestID(r.Context())

			cookie, err := r.Cookie(AccessCookieName)
			if err != nil || cookie.Value == "" {
				apperrors.WriteError(w, requestID, apperrors.Unauthorized("not authenticated"))
				return
			}

			claims, err := service.VerifyAccess(cookie.Value)
			if err != nil {
				if err == ErrTokenExpired {
					apperrors.WriteError(w, requestID, apperrors.TokenExpired())
					return
				}
				apperrors.WriteError(w, requestID, apperrors.InvalidToken("invalid access token"))
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				apperrors.WriteError(w, requestID, apperrors.InvalidToken("invalid user ID in token"))
				return
			}

			identity := &Identity{UserID: userID, Email: claims.Email}
			ctx := ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithIdentity attaches an identity to the context. The auth
// gate does this for real requests; handler tests use it directly.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func IdentityFromContext(ctx context.Context) *Identity {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok {
		return nil
	}
	return identity
}
