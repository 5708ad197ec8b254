package api

import (
	"net/http"
	"time"
)

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) checkAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-Api-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitAcquire sheds load on the contention-heavy lock endpoints. Contention
// failures are expected and must stay cheap; a 429 here is kinder than a
// storm of doomed acquire attempts hitting the store.
func (s *Server) limitAcquire(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.acquireLimit.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many lock requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
