package middleware

import (
	"net/http"

	"github.com/soapify-health/soapify/internal/api"
)

// MaxBodyBytes caps request body size. Transcripts are the largest payload
// this API accepts and they are bounded well below the limit, so anything
// bigger is rejected outright. A declared Content-Length over the limit gets
// an immediate 413; chunked bodies are cut off by MaxBytesReader mid-read.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit && r.ContentLength != -1 {
				api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
