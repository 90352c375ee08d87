package middleware

import (
	"net/http"

	"github.com/maplepath-ai/maplepath/internal/api"
)

// MaxBodyBytes caps request body size. Declared oversize bodies are
// rejected up front; chunked bodies are capped by MaxBytesReader while
// the handler reads.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				if r.ContentLength > limit {
					api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
