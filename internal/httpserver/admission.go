package httpserver

import (
	"net/http"
	"strings"

	"github.com/geniustep/bridgecore/internal/admission"
)

// RequireAdmission runs bearer tokens presented to this subrouter through
// the admission pipeline (spec §4.6), attaching the resulting
// admission.RequestContext for downstream handlers and writing the mapped
// §7 error response on rejection. skipRateLimit exempts this subrouter's
// routes from tenant quota enforcement (in BridgeCore's wiring, the tenant
// logout and me routes).
func RequireAdmission(p *admission.Pipeline, skipRateLimit bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			rc, stepErr := p.Run(r.Context(), token, skipRateLimit)
			if stepErr != nil {
				RespondAdmissionError(w, stepErr)
				return
			}

			ctx := admission.WithContext(r.Context(), rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return ""
}
