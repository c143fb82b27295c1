package httpmw

import (
	"net/http"
	"runtime/debug"

	"cdr.dev/slog/v3"
	"github.com/livedash/livedash/dashd/httpapi"
)

func Recover(log slog.Logger) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Warn(r.Context(),
					"panic serving http request (recovered)",
					slog.F("panic", p),
					slog.F("stack", string(debug.Stack())),
				)

				var hijacked, wroteHeader bool
				if sw, ok := w.(*httpapi.StatusWriter); ok {
					hijacked = sw.Hijacked
					wroteHeader = sw.Status != 0
				}

				// Only try to write errors on
				// non-hijacked responses.
				if !hijacked && !wroteHeader {
					httpapi.InternalServerError(w, nil)
				}
			}()

			h.ServeHTTP(w, r)
		})
	}
}
