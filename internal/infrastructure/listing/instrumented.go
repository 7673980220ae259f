package listing

import (
	"context"
	"time"

	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
)

// InstrumentedLookup records latency and failures of a lookup under a
// source label.
type InstrumentedLookup struct {
	next    similarity.ListingLookup
	source  string
	metrics *prometheus.AppMetrics
}

func NewInstrumentedLookup(next similarity.ListingLookup, source string, metrics *prometheus.AppMetrics) *InstrumentedLookup {
	if metrics == nil {
		metrics = prometheus.NewNoopAppMetrics()
	}
	return &InstrumentedLookup{next: next, source: source, metrics: metrics}
}

func (i *InstrumentedLookup) Links(ctx context.Context, names []string) (map[string]string, error) {
	start := time.Now()
	links, err := i.next.Links(ctx, names)
	i.metrics.RecordListingLookup(i.source, time.Since(start), err)
	return links, err
}

//Personal.AI order the ending
