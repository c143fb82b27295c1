package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/coder/quartz"
)

// HeartbeatInterval is how often an idle event stream writes a comment line
// so proxies do not time the connection out.
const HeartbeatInterval = 15 * time.Second

// ServerSentEventSender sets the event stream headers and returns a func
// that writes one `data: <json>` event per call. Writes are serialized by a
// single goroutine which exits, closing the returned channel, when the
// request ends or a write fails.
func ServerSentEventSender(clock quartz.Clock, rw http.ResponseWriter, r *http.Request) (
	sendEvent func(ctx context.Context, data any) error,
	closed <-chan struct{},
	err error,
) {
	f, ok := rw.(http.Flusher)
	if !ok {
		return nil, nil, xerrors.Errorf("%T is not a http.Flusher", rw)
	}

	h := rw.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)
	f.Flush()

	type sseEvent struct {
		payload []byte
		errC    chan error
	}
	eventC := make(chan sseEvent)
	closedC := make(chan struct{})

	go func() {
		defer close(closedC)

		ticker := clock.NewTicker(HeartbeatInterval, "sse", "heartbeat")
		defer ticker.Stop()

		for {
			var event sseEvent
			select {
			case <-r.Context().Done():
				return
			case event = <-eventC:
			case <-ticker.C:
				event = sseEvent{payload: []byte(": ping\n\n")}
			}

			_, err := rw.Write(event.payload)
			if err == nil {
				f.Flush()
			}
			if event.errC != nil {
				event.errC <- err
			}
			if err != nil {
				return
			}
		}
	}()

	sendEvent = func(ctx context.Context, data any) error {
		buf := &bytes.Buffer{}
		_, _ = buf.WriteString("data: ")
		// Encode terminates the line.
		if err := json.NewEncoder(buf).Encode(data); err != nil {
			return xerrors.Errorf("encode event: %w", err)
		}
		_, _ = buf.WriteString("\n")

		event := sseEvent{
			payload: buf.Bytes(),
			errC:    make(chan error, 1),
		}
		select {
		case <-r.Context().Done():
			return r.Context().Err()
		case <-ctx.Done():
			return ctx.Err()
		case <-closedC:
			return xerrors.New("server sent event sender closed")
		case eventC <- event:
		}

		select {
		case <-r.Context().Done():
			return r.Context().Err()
		case <-ctx.Done():
			return ctx.Err()
		case <-closedC:
			return xerrors.New("server sent event sender closed")
		case err := <-event.errC:
			if err != nil {
				return xerrors.Errorf("write event: %w", err)
			}
			return nil
		}
	}
	return sendEvent, closedC, nil
}

// IsEventStream reports whether the client asked for a server sent event
// stream.
func IsEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
