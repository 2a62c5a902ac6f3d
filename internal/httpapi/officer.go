package httpapi

import (
	"context"
	"net/http"
	"strings"
)

// OfficerHeader carries the officer identity established by the upstream
// authorization proxy.
const OfficerHeader = "X-Officer-ID"

type officerContextKey struct{}

func OfficerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		officerID := strings.TrimSpace(r.Header.Get(OfficerHeader))
		if officerID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), officerContextKey{}, officerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func officerFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(officerContextKey{}).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func requireOfficer(w http.ResponseWriter, r *http.Request) (string, bool) {
	officerID, ok := officerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "officer_required", OfficerHeader+" header is required")
		return "", false
	}
	return officerID, true
}
