package middleware

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flotatrack/fleet-assistant/pkg/composables"
	"github.com/flotatrack/fleet-assistant/pkg/httpapi"
)

// WithIdentity reads the caller identity forwarded by the auth gateway.
// Requests without valid positive ids are rejected with 401.
func WithIdentity(userHeader, companyHeader string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, uerr := strconv.ParseInt(r.Header.Get(userHeader), 10, 64)
			companyID, cerr := strconv.ParseInt(r.Header.Get(companyHeader), 10, 64)
			if uerr != nil || cerr != nil || userID <= 0 || companyID <= 0 {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing or invalid identity headers", map[string]string{
					"user_header":    userHeader,
					"company_header": companyHeader,
				})
				return
			}
			ctx := composables.WithIdentity(r.Context(), composables.Identity{UserID: userID, CompanyID: companyID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
