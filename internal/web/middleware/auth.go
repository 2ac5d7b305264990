package middleware

import (
	"net/http"
	"strings"

	"github.com/conduit-lang/contenttype/internal/content"
	"github.com/conduit-lang/contenttype/internal/web/auth"
	"github.com/conduit-lang/contenttype/internal/web/response"
)

// Authenticate places the actor named by a bearer token into the request
// context, where the engine's getUser filter picks it up. Requests without
// an Authorization header pass through anonymously; malformed or invalid
// tokens are rejected.
func Authenticate(authService *auth.AuthService) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				response.RenderUnauthorized(w, "Invalid authorization format")
				return
			}

			actor, err := authService.ValidateToken(token)
			if err != nil {
				response.RenderUnauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(content.WithActor(r.Context(), actor)))
		})
	}
}

// RequireActor rejects anonymous requests
func RequireActor() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if content.ActorFrom(r.Context()) == nil {
				response.RenderUnauthorized(w, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
