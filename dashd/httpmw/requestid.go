package httpmw

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"cdr.dev/slog/v3"
	"github.com/livedash/livedash/dashsdk"
)

const RequestIDHeader = dashsdk.RequestIDHeader

type requestIDContextKey struct{}

// RequestID returns the ID of the request.
func RequestID(r *http.Request) uuid.UUID {
	rid, ok := r.Context().Value(requestIDContextKey{}).(uuid.UUID)
	if !ok {
		panic("developer error: request id middleware not provided")
	}
	return rid
}

// AttachRequestID tags each request with an ID, echoes it in the response
// and adds it to every log line written with the request context. An ID
// supplied by the caller is kept when it parses as a UUID so that proxies and
// clients can correlate their own logs.
func AttachRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rid, err := uuid.Parse(r.Header.Get(RequestIDHeader))
		if err != nil || rid == uuid.Nil {
			rid = uuid.New()
		}

		ctx := context.WithValue(r.Context(), requestIDContextKey{}, rid)
		ctx = slog.With(ctx, slog.F("request_id", rid.String()))

		rw.Header().Set(RequestIDHeader, rid.String())
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}
