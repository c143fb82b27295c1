// Package analytics turns realtime reports from an analytics provider into
// dashboard samples.
package analytics

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/xerrors"

	"github.com/coder/quartz"
	"github.com/livedash/livedash/dashsdk"
)

// ErrMalformedReport is returned when a report lacks an expected column or
// holds a cell that is not a non-negative integer.
var ErrMalformedReport = xerrors.New("malformed report")

// Fetcher produces one sample per call.
type Fetcher interface {
	Fetch(ctx context.Context) (dashsdk.MetricsRecord, error)
}

// Report is a provider response flattened into named columns and string
// cells.
type Report struct {
	ColumnHeaders []string
	Rows          [][]string
}

// ReportSource runs the realtime query against a provider.
type ReportSource interface {
	RunReport(ctx context.Context) (Report, error)
}

// Query names the report columns that make up a sample.
type Query struct {
	ActiveUsers     string
	Browser         string
	OperatingSystem string
}

// DefaultQuery matches the column names of GA4 realtime reports.
var DefaultQuery = Query{
	ActiveUsers:     "activeUsers",
	Browser:         "browser",
	OperatingSystem: "operatingSystem",
}

func (q Query) withDefaults() Query {
	if q.ActiveUsers == "" {
		q.ActiveUsers = DefaultQuery.ActiveUsers
	}
	if q.Browser == "" {
		q.Browser = DefaultQuery.Browser
	}
	if q.OperatingSystem == "" {
		q.OperatingSystem = DefaultQuery.OperatingSystem
	}
	return q
}

// Normalize sums report rows into a single sample stamped with timestamp
// (milliseconds since the epoch).
//
// Active users are summed from the active-users column. Dimension counts
// are summed from each row's last column, which only holds the metric when
// the provider lists metrics after dimensions. If the last column is one of
// the dimensions the active-users column is used instead. A report with no
// rows yields zero active users and empty breakdowns.
func Normalize(report Report, query Query, timestamp int64) (dashsdk.MetricsRecord, error) {
	query = query.withDefaults()
	headers := report.ColumnHeaders

	activeUsersIdx, err := columnIndex(headers, query.ActiveUsers)
	if err != nil {
		return dashsdk.MetricsRecord{}, err
	}
	browserIdx, err := columnIndex(headers, query.Browser)
	if err != nil {
		return dashsdk.MetricsRecord{}, err
	}
	osIdx, err := columnIndex(headers, query.OperatingSystem)
	if err != nil {
		return dashsdk.MetricsRecord{}, err
	}

	// Depends on provider column order.
	valueIdx := len(headers) - 1
	if valueIdx == browserIdx || valueIdx == osIdx {
		valueIdx = activeUsersIdx
	}

	record := dashsdk.MetricsRecord{
		Timestamp: timestamp,
		Browsers:  map[string]int64{},
		OS:        map[string]int64{},
	}
	for i, row := range report.Rows {
		if len(row) != len(headers) {
			return dashsdk.MetricsRecord{}, xerrors.Errorf("%w: row %d has %d cells, want %d", ErrMalformedReport, i, len(row), len(headers))
		}
		activeUsers, err := parseCount(row[activeUsersIdx])
		if err != nil {
			return dashsdk.MetricsRecord{}, xerrors.Errorf("row %d column %q: %w", i, query.ActiveUsers, err)
		}
		value, err := parseCount(row[valueIdx])
		if err != nil {
			return dashsdk.MetricsRecord{}, xerrors.Errorf("row %d column %q: %w", i, headers[valueIdx], err)
		}

		record.ActiveUsers += activeUsers
		record.Browsers[row[browserIdx]] += value
		record.OS[row[osIdx]] += value
	}
	return record, nil
}

func columnIndex(headers []string, name string) (int, error) {
	idx := slices.Index(headers, name)
	if idx < 0 {
		return -1, xerrors.Errorf("%w: column %q not found in %v", ErrMalformedReport, name, headers)
	}
	return idx, nil
}

func parseCount(cell string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("%w: %q is not an integer", ErrMalformedReport, cell)
	}
	if n < 0 {
		return 0, xerrors.Errorf("%w: negative count %d", ErrMalformedReport, n)
	}
	return n, nil
}

// ProviderFetcher fetches samples from a ReportSource.
type ProviderFetcher struct {
	source ReportSource
	query  Query
	clock  quartz.Clock
}

func NewProviderFetcher(source ReportSource, query Query, clock quartz.Clock) *ProviderFetcher {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &ProviderFetcher{
		source: source,
		query:  query.withDefaults(),
		clock:  clock,
	}
}

// Fetch runs one report and normalizes it. The sample is stamped with the
// time the request was issued.
func (f *ProviderFetcher) Fetch(ctx context.Context) (dashsdk.MetricsRecord, error) {
	now := f.clock.Now("analytics", "fetch")
	report, err := f.source.RunReport(ctx)
	if err != nil {
		return dashsdk.MetricsRecord{}, xerrors.Errorf("run report: %w", err)
	}
	record, err := Normalize(report, f.query, now.UnixMilli())
	if err != nil {
		return dashsdk.MetricsRecord{}, xerrors.Errorf("normalize report: %w", err)
	}
	return record, nil
}
