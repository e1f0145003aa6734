package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger returns a request logging middleware using zerolog. Websocket
// upgrades get their own completion line: the /ws request only finishes
// at disconnect, so its duration is the whole session, not a latency.
func Logger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				evt := logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr)

				if r.URL.Path == "/ws" && ww.Status() == http.StatusSwitchingProtocols {
					evt.Dur("session", time.Since(start)).Msg("websocket session ended")
					return
				}
				evt.Dur("latency", time.Since(start)).Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
