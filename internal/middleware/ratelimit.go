package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/ventia/console-gateway/internal/session"
)

// RateLimit allows requestLimit requests per window to each signed-in user.
// It must run after Auth. Requests without a session are keyed by client IP
// as resolved by chi's RealIP middleware.
func RateLimit(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(window.Seconds())))
	return httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(rateKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "retry after "+retryAfter+" seconds")
		}),
	)
}

func rateKey(r *http.Request) (string, error) {
	if sess := session.FromContext(r.Context()); sess.Valid() {
		return "session:" + sess.Key(), nil
	}
	return httprate.KeyByIP(r)
}
