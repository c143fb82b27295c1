package dashd

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/xerrors"

	"github.com/livedash/livedash/chart"
	"github.com/livedash/livedash/dashd/httpapi"
	"github.com/livedash/livedash/dashsdk"
)

type chartView struct {
	title  string
	points func([]dashsdk.MetricsRecord) []chart.Point
}

var chartViews = map[string]chartView{
	"overview": {title: "Active users", points: chart.ActiveUserPoints},
	"browsers": {title: "Active users by browser", points: chart.BrowserPoints},
	"os":       {title: "Active users by operating system", points: chart.OSPoints},
}

const (
	// ViewportDurationHeader and ViewportUntilHeader describe the viewport a
	// chart was drawn for, after zooming and dragging. Clients pass them back
	// as duration and until on the next request.
	ViewportDurationHeader = "X-Viewport-Duration"
	ViewportUntilHeader    = "X-Viewport-Until"
)

// chartSVG renders the retained samples as a stacked chart.
//
// Query params:
//   - duration: visible width, e.g. "90s". Defaults to five minutes and may
//     not exceed a day.
//   - until: right edge in unix milliseconds, or "now" (the default).
//   - width, height: image size in pixels.
//   - zoom: scales duration around the center of the view. Above 1 zooms out.
//   - dx: pans by this many pixels of width. Positive values move back in
//     time.
func (api *API) chartSVG(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, ok := chartViews[chi.URLParam(r, "view")]
	if !ok {
		httpapi.Write(ctx, rw, http.StatusNotFound, dashsdk.Response{
			Message: fmt.Sprintf("Unknown chart %q.", chi.URLParam(r, "view")),
			Detail:  "Valid charts are overview, browsers and os.",
		})
		return
	}

	vals := r.URL.Query()
	parser := httpapi.NewQueryParamParser()
	duration := parser.Duration(vals, chart.DefaultDuration, "duration")
	until := httpapi.ParseCustom(parser, vals, time.Time{}, "until", parseUntil)
	width := parser.Int(vals, 960, "width")
	height := parser.Int(vals, 320, "height")
	zoom := parser.Float64(vals, 1, "zoom")
	dx := parser.Float64(vals, 0, "dx")
	if duration > chart.MaxDuration {
		parser.Errors = append(parser.Errors, dashsdk.ValidationError{
			Field:  "duration",
			Detail: fmt.Sprintf("Query param %q must not exceed %s", "duration", chart.MaxDuration),
		})
	}
	if zoom <= 0 {
		parser.Errors = append(parser.Errors, dashsdk.ValidationError{
			Field:  "zoom",
			Detail: fmt.Sprintf("Query param %q must be positive", "zoom"),
		})
	}
	if width <= 0 || width > 4096 || height <= 0 || height > 4096 {
		parser.Errors = append(parser.Errors, dashsdk.ValidationError{
			Field:  "width",
			Detail: "width and height must be between 1 and 4096",
		})
	}
	if len(parser.Errors) > 0 {
		httpapi.Write(ctx, rw, http.StatusBadRequest, dashsdk.Response{
			Message:     "Invalid query parameters.",
			Validations: parser.Errors,
		})
		return
	}

	records := api.Store.Snapshot()
	rw.Header().Set("Content-Type", "image/svg+xml")
	rw.Header().Set("Cache-Control", "no-store")

	var buf bytes.Buffer
	if len(records) == 0 {
		_ = chart.RenderPlaceholder(&buf, width, height, "Loading metrics...")
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write(buf.Bytes())
		return
	}

	points := view.points(records)
	now := api.Clock.Now("dashd", "chart")
	viewport := chart.Viewport{
		Duration: duration,
		Until:    until,
		First:    points[0].Time,
	}.Clamp(now, chart.MaxDuration)
	if zoom != 1 {
		viewport = viewport.Zoom(zoom, now).Clamp(now, chart.MaxDuration)
	}
	if dx != 0 {
		drag := viewport.BeginDrag(now)
		drag.Move(dx, float64(width), now)
		viewport = drag.End()
	}
	rw.Header().Set(ViewportDurationHeader, strconv.FormatInt(viewport.Duration.Milliseconds(), 10))
	rw.Header().Set(ViewportUntilHeader, formatUntil(viewport))

	err := chart.RenderSVG(&buf, points, viewport, now, chart.RenderOptions{
		Width:        width,
		Height:       height,
		PollInterval: api.PollInterval,
		Title:        view.title,
	})
	if err != nil {
		rw.Header().Del("Cache-Control")
		httpapi.InternalServerError(rw, err)
		return
	}
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write(buf.Bytes())
}

func formatUntil(v chart.Viewport) string {
	if v.Live() {
		return "now"
	}
	return strconv.FormatInt(v.Until.UnixMilli(), 10)
}

func parseUntil(v string) (time.Time, error) {
	if v == "now" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, xerrors.New(`must be "now" or unix milliseconds`)
	}
	return time.UnixMilli(ms), nil
}
