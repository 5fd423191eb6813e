package httptransport

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"bulwark/pkg/domain"
	dErrors "bulwark/pkg/domain-errors"
	"bulwark/pkg/platform/httputil"
	"bulwark/pkg/requestcontext"
)

// RequestID attaches a correlation ID, the arrival time, and the caller's
// IP to every request, honoring an inbound X-Request-ID header so upstream
// proxies can trace through.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := requestcontext.WithRequestID(r.Context(), id)
		ctx = requestcontext.WithTime(ctx, time.Now())
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ctx = requestcontext.WithClientIP(ctx, host)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenValidator produces a principal from a bearer token.
type TokenValidator interface {
	PrincipalFromToken(tokenString string) (domain.Principal, error)
}

// Authenticate validates the Authorization header and stores the principal
// on the request context. Requests without a valid token are rejected.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			principal, err := validator.PrincipalFromToken(token)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			ctx := requestcontext.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a subtree to principals holding the given role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := requestcontext.Principal(r.Context())
			if principal.Role != role {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
