// Package poller runs the loop that fetches samples, retains them and fans
// them out to live subscribers.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/livedash/livedash/dashd/analytics"
	"github.com/livedash/livedash/dashd/timeseries"
)

const (
	DefaultInterval     = 3 * time.Second
	DefaultFetchTimeout = 30 * time.Second
)

type State string

const (
	// StateIdle is reported until the first fetch begins.
	StateIdle    State = "idle"
	StatePolling State = "polling"
)

type Options struct {
	Logger  slog.Logger
	Fetcher analytics.Fetcher
	Store   *timeseries.Store
	Hub     *timeseries.Hub
	// Interval is the pause between the end of one fetch and the start of
	// the next.
	Interval time.Duration
	// FetchTimeout bounds a single fetch. Negative disables the bound.
	FetchTimeout time.Duration
	Clock        quartz.Clock
	Registerer   prometheus.Registerer
}

// Poller fetches one sample at a time. Fetches never overlap: the next one
// is scheduled only after the previous one has returned.
type Poller struct {
	logger       slog.Logger
	fetcher      analytics.Fetcher
	store        *timeseries.Store
	hub          *timeseries.Hub
	interval     time.Duration
	fetchTimeout time.Duration
	clock        quartz.Clock
	metrics      *metrics

	state atomic.Pointer[State]

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(opts Options) (*Poller, error) {
	if opts.Fetcher == nil {
		return nil, xerrors.New("fetcher is required")
	}
	if opts.Store == nil || opts.Hub == nil {
		return nil, xerrors.New("store and hub are required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}

	p := &Poller{
		logger:       opts.Logger.Named("poller"),
		fetcher:      opts.Fetcher,
		store:        opts.Store,
		hub:          opts.Hub,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		clock:        opts.Clock,
		metrics:      newMetrics(opts.Registerer, opts.Hub),
		done:         make(chan struct{}),
	}
	p.setState(StateIdle)
	p.metrics.samples.Set(float64(opts.Store.Len()))
	return p, nil
}

// Start spawns the polling loop. Only the first call has an effect. The loop
// stops when ctx is canceled or Close is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)
}

// Close stops the loop and waits for an in-flight fetch to return.
func (p *Poller) Close() error {
	p.mu.Lock()
	started, cancel := p.started, p.cancel
	p.mu.Unlock()
	if !started {
		return nil
	}
	cancel()
	<-p.done
	return nil
}

// Done is closed once the loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) State() State {
	return *p.state.Load()
}

func (p *Poller) setState(s State) {
	p.state.Store(&s)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	p.logger.Info(ctx, "polling started",
		slog.F("interval", p.interval),
		slog.F("fetch_timeout", p.fetchTimeout),
	)

	for {
		p.setState(StatePolling)
		p.poll(ctx)

		timer := p.clock.NewTimer(p.interval, "poller", "wait")
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info(ctx, "polling stopped")
			return
		case <-timer.C:
		}
	}
}

// poll performs one fetch. A failed fetch is logged and skipped; the next
// iteration is the retry.
func (p *Poller) poll(ctx context.Context) {
	fetchCtx := ctx
	if p.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		defer cancel()
	}

	start := p.clock.Now("poller", "fetch")
	record, err := p.fetcher.Fetch(fetchCtx)
	p.metrics.fetchDuration.Observe(p.clock.Since(start, "poller", "fetch").Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.fetches.WithLabelValues(ResultError).Inc()
		p.logger.Warn(ctx, "fetch metrics", slog.Error(err))
		return
	}
	p.metrics.fetches.WithLabelValues(ResultSuccess).Inc()

	p.store.Append(record)
	delivered := p.hub.Publish(record)

	p.metrics.samples.Set(float64(p.store.Len()))
	p.metrics.lastSuccess.Set(float64(record.Timestamp) / 1000)
	p.logger.Debug(ctx, "stored sample",
		slog.F("timestamp", record.Timestamp),
		slog.F("active_users", record.ActiveUsers),
		slog.F("subscribers", delivered),
	)
}
