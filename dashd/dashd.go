// Package dashd serves the dashboard HTTP API, the live event stream and the
// client bundle.
package dashd

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/livedash/livedash/dashd/httpapi"
	"github.com/livedash/livedash/dashd/httpmw"
	"github.com/livedash/livedash/dashd/poller"
	"github.com/livedash/livedash/dashd/timeseries"
)

// Options are the dependencies of the API. Store and Hub are required.
type Options struct {
	Logger slog.Logger
	Store  *timeseries.Store
	Hub    *timeseries.Hub
	// PollerState reports the polling loop state on /healthz.
	PollerState func() poller.State
	// PollInterval sizes the bars of rendered charts.
	PollInterval time.Duration
	Clock        quartz.Clock
	// SiteHandler serves every path the API does not. Nil responds with a
	// JSON 404.
	SiteHandler        http.Handler
	CORSAllowedOrigins []string
	PrometheusRegistry prometheus.Registerer
}

// API contains all route handlers. Only HTTP handlers should
// be added to this struct for code clarity.
type API struct {
	*Options
	RootHandler chi.Router

	ctx    context.Context
	cancel context.CancelFunc

	streamsWaitMutex sync.Mutex
	streamsWaitGroup sync.WaitGroup
}

// New constructs the API. Close must be called to end open event streams.
func New(options *Options) *API {
	if options.Clock == nil {
		options.Clock = quartz.NewReal()
	}
	if options.PollInterval <= 0 {
		options.PollInterval = poller.DefaultInterval
	}
	if options.PrometheusRegistry == nil {
		options.PrometheusRegistry = prometheus.NewRegistry()
	}
	if options.PollerState == nil {
		options.PollerState = func() poller.State { return poller.StateIdle }
	}

	ctx, cancel := context.WithCancel(context.Background())
	api := &API{
		Options: options,
		ctx:     ctx,
		cancel:  cancel,
	}

	r := chi.NewRouter()
	r.Use(
		httpapi.StatusWriterMiddleware,
		httpmw.AttachRequestID,
		httpmw.Recover(options.Logger),
		httpmw.Logger(options.Logger.Named("http")),
		httpmw.Prometheus(options.PrometheusRegistry),
		middleware.GetHead,
	)
	if len(options.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: options.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
			ExposedHeaders: []string{httpmw.RequestIDHeader, ViewportDurationHeader, ViewportUntilHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/metrics", api.metrics)
	r.Get("/live-events", api.liveEvents)
	r.Get("/healthz", api.healthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/buildinfo", api.buildInfo)
		r.Get("/chart/{view}.svg", api.chartSVG)
		r.NotFound(func(rw http.ResponseWriter, r *http.Request) {
			httpapi.RouteNotFound(rw)
		})
	})

	if options.SiteHandler != nil {
		r.NotFound(options.SiteHandler.ServeHTTP)
	} else {
		r.NotFound(func(rw http.ResponseWriter, r *http.Request) {
			httpapi.RouteNotFound(rw)
		})
	}

	api.RootHandler = r
	return api
}

// Close ends every open event stream and waits for the handlers to return.
func (api *API) Close() error {
	api.cancel()

	api.streamsWaitMutex.Lock()
	api.streamsWaitGroup.Wait()
	api.streamsWaitMutex.Unlock()
	return nil
}
