package chart

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"math"
	"strings"
	"time"

	svg "github.com/ajstarks/svgo"
)

// Palette colors keys in order, wrapping around.
var Palette = []string{
	"#8ab4f8", "#f28b82", "#fdd663", "#81c995", "#c58af9", "#78d9ec", "#fcad70",
}

type RenderOptions struct {
	Width  int
	Height int
	// Keys orders the stack bottom to top. Defaults to the sorted keys of
	// the points.
	Keys []string
	// PollInterval sets the bar width to 0.75 of the time between samples.
	PollInterval  time.Duration
	TickIntervals []time.Duration
	MaxTicks      int
	Title         string
}

func (o RenderOptions) withDefaults(points []Point) RenderOptions {
	if o.Width <= 0 {
		o.Width = 960
	}
	if o.Height <= 0 {
		o.Height = 320
	}
	if len(o.Keys) == 0 {
		o.Keys = Keys(points)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if len(o.TickIntervals) == 0 {
		o.TickIntervals = DefaultTickIntervals
	}
	if o.MaxTicks <= 0 {
		o.MaxTicks = DefaultMaxTicks
	}
	return o
}

// axisHeight is the strip below the plot reserved for tick labels.
const axisHeight = 20

// RenderSVG writes the stacked chart of the points visible in viewport at
// now. Each key is one path of vertical strokes from its segment's low to
// high bound. It returns ErrNoData if points is empty.
func RenderSVG(w io.Writer, points []Point, viewport Viewport, now time.Time, opts RenderOptions) error {
	if len(points) == 0 {
		return ErrNoData
	}
	opts = opts.withDefaults(points)
	window := viewport.Window(now)

	visible := make([]Point, 0, len(points))
	for _, p := range points {
		if window.Contains(p.Time) {
			visible = append(visible, p)
		}
	}
	stacks := Stack(visible, opts.Keys)
	top := max(MaxStacked(stacks), 1)

	plotHeight := float64(opts.Height - axisHeight)
	xOf := func(t time.Time) float64 {
		if window.Duration() <= 0 {
			return 0
		}
		return float64(t.Sub(window.Start)) / float64(window.Duration()) * float64(opts.Width)
	}
	// SVG y grows downwards.
	yOf := func(v int64) float64 {
		return plotHeight - float64(v)/float64(top)*plotHeight
	}
	strokeWidth := 0.75 * float64(opts.PollInterval) / float64(max(window.Duration(), time.Millisecond)) * float64(opts.Width)

	bw := bufio.NewWriter(w)
	canvas := svg.New(bw)
	canvas.Start(opts.Width, opts.Height, viewBox(opts.Width, opts.Height))
	if opts.Title != "" {
		canvas.Title(opts.Title)
	}

	for i, key := range opts.Keys {
		var d strings.Builder
		for _, s := range stacks {
			seg := s.Segments[i]
			if seg.High == seg.Low {
				continue
			}
			_, _ = fmt.Fprintf(&d, "M%.2f,%.2f V%.2f ", xOf(s.Time), yOf(seg.Low), yOf(seg.High))
		}
		canvas.Path(strings.TrimSpace(d.String()),
			attr("data-key", html.EscapeString(key)),
			attr("stroke", Palette[i%len(Palette)]),
			attr("stroke-width", fmt.Sprintf("%.2f", strokeWidth)),
			attr("fill", "none"),
		)
	}

	baseline := int(math.Round(plotHeight))
	canvas.Group(
		attr("class", "axis"),
		attr("stroke", "#666"),
		attr("fill", "#aaa"),
		attr("font-size", "11"),
		attr("font-family", "sans-serif"),
	)
	canvas.Line(0, baseline, opts.Width, baseline)
	for _, tick := range Ticks(window, opts.TickIntervals, opts.MaxTicks) {
		x := xOf(tick.Time)
		if x < 0 {
			continue
		}
		xi := int(math.Round(x))
		canvas.Line(xi, baseline, xi, baseline+4)
		canvas.Text(xi, opts.Height-4, tick.Label, attr("text-anchor", "middle"), attr("stroke", "none"))
	}
	canvas.Gend()
	canvas.Text(4, 12, fmt.Sprintf("%d", top),
		attr("fill", "#aaa"),
		attr("font-size", "11"),
		attr("font-family", "sans-serif"),
	)
	canvas.End()
	return bw.Flush()
}

// RenderPlaceholder writes the loading state shown before any data arrives.
func RenderPlaceholder(w io.Writer, width, height int, message string) error {
	bw := bufio.NewWriter(w)
	canvas := svg.New(bw)
	canvas.Start(width, height, viewBox(width, height))
	canvas.Text(width/2, height/2, message,
		attr("text-anchor", "middle"),
		attr("fill", "#aaa"),
		attr("font-family", "sans-serif"),
	)
	canvas.End()
	return bw.Flush()
}

// attr formats a raw attribute. svgo copies arguments containing "=" into
// the element verbatim, so values must already be escaped.
func attr(name, value string) string {
	return fmt.Sprintf(`%s="%s"`, name, value)
}

func viewBox(width, height int) string {
	return attr("viewBox", fmt.Sprintf("0 0 %d %d", width, height))
}
