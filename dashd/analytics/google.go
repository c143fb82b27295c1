package analytics

import (
	"context"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/xerrors"
	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"
)

// GoogleOptions configures a GA4 realtime report source.
type GoogleOptions struct {
	// CredentialsJSON is a service account key, see LoadCredentials.
	CredentialsJSON []byte
	// PropertyID is either a bare numeric ID or "properties/<id>".
	PropertyID string
	Query      Query
}

// GoogleSource runs realtime reports against the Google Analytics Data API.
type GoogleSource struct {
	service  *analyticsdata.Service
	property string
	query    Query
}

// NewGoogleSource authenticates with the service account key and returns a
// source. The returned error is non-nil if a token could not be obtained.
// ctx must outlive the source since it is used to refresh tokens.
func NewGoogleSource(ctx context.Context, opts GoogleOptions) (*GoogleSource, error) {
	conf, err := google.JWTConfigFromJSON(opts.CredentialsJSON, analyticsdata.AnalyticsReadonlyScope)
	if err != nil {
		return nil, xerrors.Errorf("parse credentials: %w", err)
	}
	tokenSource := conf.TokenSource(ctx)
	if _, err := tokenSource.Token(); err != nil {
		return nil, xerrors.Errorf("authenticate %q: %w", conf.Email, err)
	}

	service, err := analyticsdata.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, xerrors.Errorf("create analytics data service: %w", err)
	}
	return NewGoogleSourceWithService(service, opts.PropertyID, opts.Query)
}

// NewGoogleSourceWithService wraps an already configured service.
func NewGoogleSourceWithService(service *analyticsdata.Service, propertyID string, query Query) (*GoogleSource, error) {
	propertyID = strings.TrimSpace(propertyID)
	if propertyID == "" {
		return nil, xerrors.New("property ID is required")
	}
	if !strings.HasPrefix(propertyID, "properties/") {
		propertyID = "properties/" + propertyID
	}
	return &GoogleSource{
		service:  service,
		property: propertyID,
		query:    query.withDefaults(),
	}, nil
}

// RunReport implements ReportSource.
func (s *GoogleSource) RunReport(ctx context.Context) (Report, error) {
	req := &analyticsdata.RunRealtimeReportRequest{
		Dimensions: []*analyticsdata.Dimension{
			{Name: s.query.Browser},
			{Name: s.query.OperatingSystem},
		},
		Metrics: []*analyticsdata.Metric{
			{Name: s.query.ActiveUsers},
		},
	}
	res, err := s.service.Properties.RunRealtimeReport(s.property, req).Context(ctx).Do()
	if err != nil {
		return Report{}, xerrors.Errorf("run realtime report for %s: %w", s.property, err)
	}
	return flattenRealtimeReport(res), nil
}

// flattenRealtimeReport lists dimension columns before metric columns.
func flattenRealtimeReport(res *analyticsdata.RunRealtimeReportResponse) Report {
	report := Report{
		ColumnHeaders: make([]string, 0, len(res.DimensionHeaders)+len(res.MetricHeaders)),
		Rows:          make([][]string, 0, len(res.Rows)),
	}
	for _, h := range res.DimensionHeaders {
		report.ColumnHeaders = append(report.ColumnHeaders, h.Name)
	}
	for _, h := range res.MetricHeaders {
		report.ColumnHeaders = append(report.ColumnHeaders, h.Name)
	}
	for _, row := range res.Rows {
		cells := make([]string, 0, len(row.DimensionValues)+len(row.MetricValues))
		for _, v := range row.DimensionValues {
			cells = append(cells, v.Value)
		}
		for _, v := range row.MetricValues {
			cells = append(cells, v.Value)
		}
		report.Rows = append(report.Rows, cells)
	}
	return report
}
