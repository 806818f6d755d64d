package request

import (
	"net/http"
)

// BodyLimit caps request bodies at maxBytes. Reads past the limit fail and
// the server answers 413 once the handler reports the error.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
