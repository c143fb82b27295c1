package analytics

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/coder/quartz"
	"github.com/livedash/livedash/dashsdk"
)

// RandomMax is the exclusive upper bound of every generated count.
const RandomMax = 42

var (
	randomBrowsers = []string{"Firefox", "Chrome", "Safari"}
	randomOS       = []string{"Linux", "Macintosh", "Windows"}
)

// RandomGenerator stands in for a provider when no credentials are
// configured. Every count is uniform in [0, RandomMax).
type RandomGenerator struct {
	clock quartz.Clock
	faker *gofakeit.Faker
}

// NewRandomGenerator returns a generator drawing from src. A nil src is
// replaced with a randomly seeded one.
func NewRandomGenerator(clock quartz.Clock, src rand.Source) *RandomGenerator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomGenerator{
		clock: clock,
		faker: gofakeit.NewFaker(src, true),
	}
}

// Generate returns a random sample stamped with timestamp.
func (g *RandomGenerator) Generate(timestamp int64) dashsdk.MetricsRecord {
	record := dashsdk.MetricsRecord{
		Timestamp:   timestamp,
		ActiveUsers: g.count(),
		Browsers:    make(map[string]int64, len(randomBrowsers)),
		OS:          make(map[string]int64, len(randomOS)),
	}
	for _, name := range randomBrowsers {
		record.Browsers[name] = g.count()
	}
	for _, name := range randomOS {
		record.OS[name] = g.count()
	}
	return record
}

func (g *RandomGenerator) count() int64 {
	return int64(g.faker.IntRange(0, RandomMax-1))
}

// Fetch implements Fetcher.
func (g *RandomGenerator) Fetch(ctx context.Context) (dashsdk.MetricsRecord, error) {
	if err := ctx.Err(); err != nil {
		return dashsdk.MetricsRecord{}, err
	}
	return g.Generate(g.clock.Now("analytics", "random").UnixMilli()), nil
}

// Backlog returns n synthetic historical samples spaced interval apart and
// ending one interval before now.
func (g *RandomGenerator) Backlog(n int, interval time.Duration) []dashsdk.MetricsRecord {
	now := g.clock.Now("analytics", "backlog")
	records := make([]dashsdk.MetricsRecord, 0, max(n, 0))
	for i := range n {
		at := now.Add(-time.Duration(n-i) * interval)
		records = append(records, g.Generate(at.UnixMilli()))
	}
	return records
}
