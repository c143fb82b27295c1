package cli

import (
	"context"
	"io"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/coder/serpent"
	"github.com/livedash/livedash/buildinfo"
	"github.com/livedash/livedash/dashd"
	"github.com/livedash/livedash/dashd/analytics"
	"github.com/livedash/livedash/dashd/poller"
	"github.com/livedash/livedash/dashd/timeseries"
	"github.com/livedash/livedash/site"
)

type serverConfig struct {
	host                  string
	port                  int64
	pollInterval          time.Duration
	fetchTimeout          time.Duration
	maxSamples            int64
	random                bool
	randomBacklog         int64
	googleCredentialsFile string
	googlePropertyID      string
	staticDir             string
	corsAllowedOrigins    []string
	prometheusEnable      bool
	prometheusAddress     string
}

func (r *RootCmd) server() *serpent.Command {
	var cfg serverConfig

	return &serpent.Command{
		Use:   "server",
		Short: "Poll the analytics provider and serve the dashboard",
		Options: serpent.OptionSet{
			{
				Name:        "Host",
				Description: "Address to bind the HTTP server to. Empty binds all interfaces.",
				Flag:        "host",
				Env:         envPrefix + "HOST",
				Default:     "",
				Value:       serpent.StringOf(&cfg.host),
			},
			{
				Name:        "Port",
				Description: "Port to serve the dashboard and API on.",
				Flag:        "port",
				Env:         envPrefix + "PORT",
				Default:     "8080",
				Value:       serpent.Int64Of(&cfg.port),
			},
			{
				Name:        "Poll Interval",
				Description: "Pause between the end of one fetch and the start of the next.",
				Flag:        "poll-interval",
				Env:         envPrefix + "POLL_INTERVAL",
				Default:     poller.DefaultInterval.String(),
				Value:       serpent.DurationOf(&cfg.pollInterval),
			},
			{
				Name:        "Fetch Timeout",
				Description: "Upper bound on a single provider fetch. Negative disables the bound.",
				Flag:        "fetch-timeout",
				Env:         envPrefix + "FETCH_TIMEOUT",
				Default:     poller.DefaultFetchTimeout.String(),
				Value:       serpent.DurationOf(&cfg.fetchTimeout),
			},
			{
				Name:        "Max Samples",
				Description: "Number of samples retained in memory. Older samples are discarded.",
				Flag:        "max-samples",
				Env:         envPrefix + "MAX_SAMPLES",
				Default:     strconv.Itoa(timeseries.DefaultMaxSamples),
				Value:       serpent.Int64Of(&cfg.maxSamples),
			},
			{
				Name:        "Random",
				Description: "Serve randomly generated samples instead of querying Google Analytics.",
				Flag:        "random",
				Env:         envPrefix + "RANDOM",
				Default:     "false",
				Value:       serpent.BoolOf(&cfg.random),
			},
			{
				Name:        "Random Backlog",
				Description: "Number of random samples to seed the store with at startup.",
				Flag:        "random-backlog",
				Env:         envPrefix + "RANDOM_BACKLOG",
				Default:     "30",
				Value:       serpent.Int64Of(&cfg.randomBacklog),
			},
			{
				Name:        "Google Credentials File",
				Description: "Path to a Google service account key with read access to the property.",
				Flag:        "google-credentials-file",
				Env:         envPrefix + "GOOGLE_CREDENTIALS_FILE",
				Value:       serpent.StringOf(&cfg.googleCredentialsFile),
			},
			{
				Name:        "Google Property ID",
				Description: "Google Analytics property to run realtime reports against.",
				Flag:        "google-property-id",
				Env:         envPrefix + "GOOGLE_PROPERTY_ID",
				Value:       serpent.StringOf(&cfg.googlePropertyID),
			},
			{
				Name:        "Static Directory",
				Description: "Serve the dashboard bundle from this directory instead of the embedded one. Edits are picked up without a restart.",
				Flag:        "static-dir",
				Env:         envPrefix + "STATIC_DIR",
				Value:       serpent.StringOf(&cfg.staticDir),
			},
			{
				Name:        "CORS Allowed Origins",
				Description: "Origins allowed to call the API from a browser. CORS is disabled when empty.",
				Flag:        "cors-allowed-origin",
				Env:         envPrefix + "CORS_ALLOWED_ORIGIN",
				Value:       serpent.StringArrayOf(&cfg.corsAllowedOrigins),
			},
			{
				Name:        "Prometheus Enable",
				Description: "Serve Prometheus metrics on the address defined by --prometheus-address.",
				Flag:        "prometheus-enable",
				Env:         envPrefix + "PROMETHEUS_ENABLE",
				Default:     "false",
				Value:       serpent.BoolOf(&cfg.prometheusEnable),
			},
			{
				Name:        "Prometheus Address",
				Description: "The bind address to serve Prometheus metrics.",
				Flag:        "prometheus-address",
				Env:         envPrefix + "PROMETHEUS_ADDRESS",
				Default:     "127.0.0.1:2112",
				Value:       serpent.StringOf(&cfg.prometheusAddress),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			ctx, stop := inv.SignalNotifyContext(inv.Context(), interruptSignals...)
			defer stop()

			logger := r.logger(inv)
			return runServer(ctx, inv, logger, cfg)
		},
	}
}

func runServer(ctx context.Context, inv *serpent.Invocation, logger slog.Logger, cfg serverConfig) error {
	if cfg.maxSamples <= 0 {
		return xerrors.Errorf("--max-samples must be positive, got %d", cfg.maxSamples)
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = poller.DefaultInterval
	}
	if cfg.randomBacklog < 0 {
		return xerrors.Errorf("--random-backlog must not be negative, got %d", cfg.randomBacklog)
	}
	logger.Info(ctx, "starting livedash", slog.F("version", buildinfo.Version()))

	clock := quartz.NewReal()
	store := timeseries.NewStore(int(cfg.maxSamples))
	hub := timeseries.NewHub()

	var fetcher analytics.Fetcher
	if cfg.random {
		gen := analytics.NewRandomGenerator(clock, nil)
		for _, record := range gen.Backlog(int(cfg.randomBacklog), cfg.pollInterval) {
			store.Append(record)
		}
		fetcher = gen
		logger.Info(ctx, "serving random samples", slog.F("backlog", store.Len()))
	} else {
		if cfg.googleCredentialsFile == "" || cfg.googlePropertyID == "" {
			return xerrors.New("--google-credentials-file and --google-property-id are required unless --random is set")
		}
		credentials, err := analytics.LoadCredentials(afero.NewOsFs(), cfg.googleCredentialsFile)
		if err != nil {
			return xerrors.Errorf("load google credentials: %w", err)
		}
		source, err := analytics.NewGoogleSource(ctx, analytics.GoogleOptions{
			CredentialsJSON: credentials,
			PropertyID:      cfg.googlePropertyID,
		})
		if err != nil {
			return xerrors.Errorf("authenticate with google analytics: %w", err)
		}
		fetcher = analytics.NewProviderFetcher(source, analytics.DefaultQuery, clock)
		logger.Info(ctx, "authenticated with google analytics", slog.F("property_id", cfg.googlePropertyID))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p, err := poller.New(poller.Options{
		Logger:       logger,
		Fetcher:      fetcher,
		Store:        store,
		Hub:          hub,
		Interval:     cfg.pollInterval,
		FetchTimeout: cfg.fetchTimeout,
		Clock:        clock,
		Registerer:   registry,
	})
	if err != nil {
		return xerrors.Errorf("create poller: %w", err)
	}

	var siteFS fs.FS = site.FS()
	if cfg.staticDir != "" {
		siteFS = os.DirFS(cfg.staticDir)
	}
	siteHandler, err := site.New(siteFS, logger)
	if err != nil {
		return xerrors.Errorf("create site handler: %w", err)
	}

	api := dashd.New(&dashd.Options{
		Logger:             logger,
		Store:              store,
		Hub:                hub,
		PollerState:        p.State,
		PollInterval:       cfg.pollInterval,
		Clock:              clock,
		SiteHandler:        siteHandler,
		CORSAllowedOrigins: cfg.corsAllowedOrigins,
		PrometheusRegistry: registry,
	})
	defer api.Close()

	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.host, strconv.FormatInt(cfg.port, 10)))
	if err != nil {
		return xerrors.Errorf("listen: %w", err)
	}
	defer listener.Close()

	server := &http.Server{
		Handler:           api.RootHandler,
		ReadHeaderTimeout: 10 * time.Second,
		// These errors are typically noise like "TLS: EOF".
		ErrorLog: log.New(io.Discard, "", 0),
	}

	var promServer *http.Server
	var promListener net.Listener
	if cfg.prometheusEnable {
		promListener, err = net.Listen("tcp", cfg.prometheusAddress)
		if err != nil {
			return xerrors.Errorf("listen prometheus: %w", err)
		}
		defer promListener.Close()
		promServer = &http.Server{
			Handler:           promhttp.InstrumentMetricHandler(registry, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          log.New(io.Discard, "", 0),
		}
		logger.Info(ctx, "serving prometheus metrics", slog.F("address", promListener.Addr().String()))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := server.Serve(listener)
		if err != nil && !xerrors.Is(err, http.ErrServerClosed) {
			return xerrors.Errorf("serve http: %w", err)
		}
		return nil
	})
	if promServer != nil {
		eg.Go(func() error {
			err := promServer.Serve(promListener)
			if err != nil && !xerrors.Is(err, http.ErrServerClosed) {
				return xerrors.Errorf("serve prometheus: %w", err)
			}
			return nil
		})
	}
	if cfg.staticDir != "" {
		eg.Go(func() error {
			return siteHandler.Watch(egCtx, cfg.staticDir)
		})
	}
	p.Start(egCtx)
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info(ctx, "shutting down")

		// Event streams never end on their own, so they are closed before
		// the server waits for handlers to return.
		_ = api.Close()
		_ = p.Close()
		if promServer != nil {
			_ = shutdownWithTimeout(promServer, 5*time.Second)
		}
		return shutdownWithTimeout(server, 5*time.Second)
	})

	_, _ = inv.Stdout.Write([]byte("View the dashboard at http://" + listener.Addr().String() + "\n"))
	if err := eg.Wait(); err != nil {
		return err
	}
	logger.Info(ctx, "stopped")
	return nil
}

func shutdownWithTimeout(s interface{ Shutdown(context.Context) error }, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}
