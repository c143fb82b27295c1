package httpmw

import (
	"fmt"
	"net/http"
	"time"

	"cdr.dev/slog/v3"
	"github.com/livedash/livedash/dashd/httpapi"
)

// Logger logs one line per request after the handler returns. Long-lived
// event streams are logged when they close.
func Logger(log slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := time.Now()

			sw, ok := rw.(*httpapi.StatusWriter)
			if !ok {
				panic(fmt.Sprintf("ResponseWriter not a *httpapi.StatusWriter; got %T", rw))
			}

			httplog := log.With(
				slog.F("host", r.Host),
				slog.F("path", r.URL.Path),
				slog.F("proto", r.Proto),
				slog.F("remote_addr", r.RemoteAddr),
				slog.F("start", start),
			)

			next.ServeHTTP(sw, r)

			// Don't log successful health check requests.
			if r.URL.Path == "/healthz" && sw.Status == http.StatusOK {
				return
			}

			end := time.Now()
			httplog = httplog.With(
				slog.F("took", end.Sub(start)),
				slog.F("status_code", sw.Status),
				slog.F("latency_ms", float64(end.Sub(start)/time.Millisecond)),
			)

			// For status codes 500 and higher we
			// want to log the response body.
			if sw.Status >= http.StatusInternalServerError {
				httplog = httplog.With(
					slog.F("response_body", string(sw.ResponseBody())),
				)
			}

			// We should not log at level ERROR for 5xx status codes because 5xx
			// includes proxy errors etc. It also causes slogtest to fail
			// instantly without an error message by default.
			logLevelFn := httplog.Debug
			if sw.Status >= http.StatusInternalServerError {
				logLevelFn = httplog.Warn
			}
			logLevelFn(r.Context(), r.Method)
		})
	}
}
