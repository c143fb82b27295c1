package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/coder/serpent"
	"github.com/livedash/livedash/chart"
	"github.com/livedash/livedash/dashsdk"
	"github.com/livedash/livedash/dashstate"
)

func (r *RootCmd) watch() *serpent.Command {
	var (
		serverURL serpent.URL
		duration  time.Duration
		refresh   time.Duration
	)

	return &serpent.Command{
		Use:   "watch",
		Short: "Stream samples from a running livedash server to the terminal",
		Long: "Prints the retained samples as a table, then one line per new sample. " +
			"A summary of the trailing window is reprinted whenever samples enter or leave it.",
		Options: serpent.OptionSet{
			{
				Name:        "URL",
				Description: "URL of the livedash server.",
				Flag:        "url",
				Env:         envPrefix + "URL",
				Default:     "http://127.0.0.1:8080",
				Value:       &serverURL,
			},
			{
				Name:        "Duration",
				Description: "Width of the trailing window that is summarized.",
				Flag:        "duration",
				Env:         envPrefix + "WATCH_DURATION",
				Default:     chart.DefaultDuration.String(),
				Value:       serpent.DurationOf(&duration),
			},
			{
				Name:        "Refresh",
				Description: "How often the trailing window advances.",
				Flag:        "refresh",
				Env:         envPrefix + "WATCH_REFRESH",
				Default:     time.Second.String(),
				Value:       serpent.DurationOf(&refresh),
			},
		},
		Handler: func(inv *serpent.Invocation) error {
			ctx, stop := inv.SignalNotifyContext(inv.Context(), interruptSignals...)
			defer stop()

			if duration <= 0 || duration > chart.MaxDuration {
				return xerrors.Errorf("--duration must be positive and at most %s, got %s", chart.MaxDuration, duration)
			}
			if refresh <= 0 {
				return xerrors.Errorf("--refresh must be positive, got %s", refresh)
			}

			logger := r.logger(inv)
			u := url.URL(serverURL)
			client := dashsdk.New(&u)

			printer := &watchPrinter{w: inv.Stdout}
			animator := chart.NewAnimator(quartz.NewReal(), refresh, printer.onWindow)
			printer.onLoaded = func(first time.Time) {
				animator.SetViewport(chart.Viewport{Duration: duration, First: first})
			}

			store := dashstate.NewStore(dashstate.InitialState())
			unsubscribe := store.Subscribe(printer.onState)
			defer unsubscribe()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			animating := make(chan error, 1)
			go func() {
				animating <- animator.Run(ctx)
			}()

			logger.Debug(ctx, "loading metrics", slog.F("url", u.String()), slog.F("duration", duration))
			err := dashstate.Load(ctx, client, store)
			cancel()
			if animErr := <-animating; animErr != nil {
				logger.Warn(ctx, "live window stopped", slog.Error(animErr))
			}
			if err != nil && !xerrors.Is(err, context.Canceled) {
				return xerrors.Errorf("watch %s: %w", u.String(), err)
			}
			return nil
		},
	}
}

// watchPrinter prints the initial snapshot as a table and every record
// appended after it as one line. onWindow reprints a summary of the samples
// inside the trailing window when that summary changes. onLoaded is called
// once, outside the lock, after the snapshot prints.
type watchPrinter struct {
	w        io.Writer
	onLoaded func(first time.Time)

	mu      sync.Mutex
	loaded  bool
	printed int
	// records are the samples that can still fall inside a window.
	records []dashsdk.MetricsRecord
	summary windowSummary
}

type windowSummary struct {
	samples      int
	peak         int64
	latestMs     int64
	latestActive int64
}

func (p *watchPrinter) onState(s dashstate.State) {
	if s.IsLoadingMetrics {
		return
	}

	p.mu.Lock()
	if !p.loaded {
		p.loaded = true
		p.printed = len(s.Timeseries)
		p.records = append(p.records, s.Timeseries...)
		_, _ = fmt.Fprintln(p.w, snapshotTable(s.Timeseries))
		var first time.Time
		if len(s.Timeseries) > 0 {
			first = s.Timeseries[0].Time()
		}
		p.mu.Unlock()
		if p.onLoaded != nil {
			p.onLoaded(first)
		}
		return
	}
	defer p.mu.Unlock()
	if len(s.Timeseries) <= p.printed {
		return
	}

	for _, record := range s.Timeseries[p.printed:] {
		_, _ = fmt.Fprintf(p.w, "%s active=%s browsers=%s os=%s\n",
			record.Time().Format(time.TimeOnly),
			humanize.Comma(record.ActiveUsers),
			formatCounts(record.Browsers),
			formatCounts(record.OS),
		)
		p.records = append(p.records, record)
	}
	p.printed = len(s.Timeseries)
}

// onWindow summarizes the records inside w. Records older than the window
// are dropped since a live window only moves forward.
func (p *watchPrinter) onWindow(w chart.Window) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var next windowSummary
	keep := p.records[:0]
	for _, record := range p.records {
		at := record.Time()
		if at.Before(w.Start) {
			continue
		}
		keep = append(keep, record)
		if !w.Contains(at) {
			continue
		}
		next.samples++
		next.peak = max(next.peak, record.ActiveUsers)
		next.latestMs = record.Timestamp
		next.latestActive = record.ActiveUsers
	}
	clear(p.records[len(keep):])
	p.records = keep

	if next == p.summary {
		return
	}
	p.summary = next
	if next.samples == 0 {
		_, _ = fmt.Fprintf(p.w, "%s last %s: no samples\n", w.End.Format(time.TimeOnly), w.Duration())
		return
	}
	_, _ = fmt.Fprintf(p.w, "%s last %s: samples=%d peak=%s latest=%s (%s)\n",
		w.End.Format(time.TimeOnly),
		w.Duration(),
		next.samples,
		humanize.Comma(next.peak),
		humanize.Comma(next.latestActive),
		humanize.RelTime(time.UnixMilli(next.latestMs), w.End, "ago", "from now"),
	)
}

func snapshotTable(records []dashsdk.MetricsRecord) string {
	tableWriter := table.NewWriter()
	tableWriter.SetStyle(table.StyleLight)
	tableWriter.Style().Options.SeparateColumns = false
	tableWriter.AppendHeader(table.Row{"Time", "Active Users", "Browsers", "OS"})
	for _, record := range records {
		tableWriter.AppendRow(table.Row{
			record.Time().Format(time.TimeOnly),
			humanize.Comma(record.ActiveUsers),
			formatCounts(record.Browsers),
			formatCounts(record.OS),
		})
	}
	if len(records) == 0 {
		tableWriter.SetCaption("No samples yet.")
	}
	return tableWriter.Render()
}

func formatCounts(counts map[string]int64) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, counts[k]))
	}
	return strings.Join(parts, ",")
}
