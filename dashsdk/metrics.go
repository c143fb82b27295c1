package dashsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

// MetricsRecord is one sample of realtime analytics. Records are immutable
// once produced.
type MetricsRecord struct {
	// Timestamp is milliseconds since the Unix epoch, taken from the
	// producer's clock when the sample was fetched.
	Timestamp   int64            `json:"timestamp"`
	ActiveUsers int64            `json:"activeUsers"`
	Browsers    map[string]int64 `json:"browsers"`
	OS          map[string]int64 `json:"os"`
}

// Time returns the record timestamp as a time.Time.
func (r MetricsRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Metrics returns every sample currently retained by the server, oldest
// first.
func (c *Client) Metrics(ctx context.Context) ([]MetricsRecord, error) {
	res, err := c.Request(ctx, http.MethodGet, "/metrics", nil)
	if err != nil {
		return nil, xerrors.Errorf("get metrics: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, ReadBodyAsError(res)
	}

	var records []MetricsRecord
	if err := json.NewDecoder(res.Body).Decode(&records); err != nil {
		return nil, xerrors.Errorf("decode metrics: %w", err)
	}
	return records, nil
}
