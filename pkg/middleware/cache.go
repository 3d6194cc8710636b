package middleware

import (
	"net/http"
	"strconv"
)

// CacheControl marks successful GET and HEAD responses as publicly cacheable
// for maxAge seconds. The response varies on the listed request headers, so
// a shared cache keeps one entry per storefront market. A non-positive
// maxAge disables caching.
func CacheControl(maxAge int, vary ...string) func(http.Handler) http.Handler {
	value := "no-store"
	if maxAge > 0 {
		value = "public, max-age=" + strconv.Itoa(maxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Cache-Control", value)
			for _, name := range vary {
				h.Add("Vary", name)
			}
			next.ServeHTTP(&cacheWriter{ResponseWriter: w}, r)
		})
	}
}

// cacheWriter drops the caching headers from error responses.
type cacheWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *cacheWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if code >= http.StatusBadRequest {
			w.Header().Set("Cache-Control", "no-store")
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *cacheWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
