package auth

import (
	"errors"
	"log/slog"
	"net/http"

	appMiddleware "github.com/thebigby10/sugarvoice-backend/app/middleware"
	"github.com/thebigby10/sugarvoice-backend/internal/api"
	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

// Authenticate resolves the bearer token on every request and stores the
// identity in the request context. Requests without a valid token never
// reach next.
func Authenticate(service AuthService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := appMiddleware.BearerToken(r)
			if err != nil {
				logger.DebugContext(ctx, "Missing or malformed Authorization header", slog.Any("error", err))
				api.Unauthorized(w, r, "Not authenticated")
				return
			}

			identity, err := service.ResolveCurrentUser(ctx, token)
			if err != nil {
				if errors.Is(err, types.ErrUnauthenticated) {
					api.Unauthorized(w, r, "Could not validate credentials")
					return
				}
				logger.ErrorContext(ctx, "Failed to resolve current user", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(appMiddleware.WithIdentity(ctx, identity)))
		})
	}
}
