package middleware

import (
	"net/http"
	"strconv"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/transport"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
)

// ActorContext copies a well-formed X-Actor-ID into the request context and
// the request logger. The header is trusted as is.
func ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(transport.ActorHeader)
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			ctx := internal.ContextWithUserID(r.Context(), raw)
			ctx = logger.With(ctx, "actor_id", id)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor rejects requests that do not name their actor.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if internal.UserIDFromContext(r.Context()) == "" {
			appErr := internal.NewValidationFieldError("actor", "missing or invalid "+transport.ActorHeader+" header", internal.ErrCodeValidationFailed)
			writeAppError(w, appErr)
			return
		}
		next.ServeHTTP(w, r)
	})
}
