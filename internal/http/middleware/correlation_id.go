package middleware

import (
	"net/http"

	"github.com/tuanvumaihuynh/stock-ledger/pkg/correlationid"
)

// CorrelationID reuses the caller's correlation id or mints one, echoes it on
// the response and stores it in the request context.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(correlationid.Header)
			if id == "" {
				id = correlationid.New()
			}

			w.Header().Set(correlationid.Header, id)
			next.ServeHTTP(w, r.WithContext(correlationid.NewContext(r.Context(), id)))
		})
	}
}
