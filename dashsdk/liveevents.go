package dashsdk

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"

	"github.com/coder/retry"
)

// LiveEvents opens the push stream and decodes every event into a
// MetricsRecord. The returned channel is closed when ctx is canceled or the
// server ends the stream.
func (c *Client) LiveEvents(ctx context.Context) (<-chan MetricsRecord, error) {
	res, err := c.Request(ctx, http.MethodGet, "/live-events", nil, func(r *http.Request) {
		r.Header.Set("Accept", "text/event-stream")
	})
	if err != nil {
		return nil, xerrors.Errorf("open live events: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, ReadBodyAsError(res)
	}

	records := make(chan MetricsRecord, 64)
	go func() {
		defer close(records)
		defer res.Body.Close()

		reader := NewServerSentEventReader(res.Body)
		for {
			data, err := reader.Next()
			if err != nil {
				return
			}
			var record MetricsRecord
			if err := json.Unmarshal(data, &record); err != nil {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case records <- record:
			}
		}
	}()
	return records, nil
}

// WatchMetrics calls onRecord for every record pushed by the server until ctx
// is canceled. Dropped streams are reopened with exponential backoff, the
// same way a browser EventSource reconnects.
func (c *Client) WatchMetrics(ctx context.Context, onRecord func(MetricsRecord)) error {
	for r := retry.New(time.Second, 30*time.Second); r.Wait(ctx); {
		records, err := c.LiveEvents(ctx)
		if err != nil {
			continue
		}
		r.Reset()
		for record := range records {
			onRecord(record)
		}
	}
	return ctx.Err()
}

// ServerSentEventReader reads "text/event-stream" bodies and yields the
// payload of each data event. Comments and fields other than "data" are
// skipped.
type ServerSentEventReader struct {
	r *bufio.Reader
}

func NewServerSentEventReader(r io.Reader) *ServerSentEventReader {
	return &ServerSentEventReader{r: bufio.NewReader(r)}
}

// Next blocks until a complete event has been read. Multiple data lines in a
// single event are joined with newlines. An event cut off by the end of the
// stream is discarded.
func (s *ServerSentEventReader) Next() ([]byte, error) {
	var data [][]byte
	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			return nil, err
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(data) == 0 {
				continue
			}
			return bytes.Join(data, []byte("\n")), nil
		}

		// Lines starting with a colon are comments and have an empty field.
		field, value, _ := bytes.Cut(line, []byte(":"))
		if !bytes.Equal(field, []byte("data")) {
			continue
		}
		data = append(data, bytes.TrimPrefix(value, []byte(" ")))
	}
}
