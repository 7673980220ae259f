package listing

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/pkg/errors"
)

// BreakerConfig tunes BreakerLookup.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// StateListener is told about every breaker transition.
type StateListener func(name string, from, to gobreaker.State)

// BreakerLookup fails fast with ErrCodeListingSourceUnavailable while the
// wrapped source keeps failing.
type BreakerLookup struct {
	next similarity.ListingLookup
	cb   *gobreaker.CircuitBreaker[map[string]string]
}

func NewBreakerLookup(next similarity.ListingLookup, cfg BreakerConfig, log logging.Logger, listeners ...StateListener) *BreakerLookup {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.Name == "" {
		cfg.Name = "listing"
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 10
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}
	log = log.Named("breaker")

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logging.String("name", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
			for _, l := range listeners {
				l(name, from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerLookup{next: next, cb: gobreaker.NewCircuitBreaker[map[string]string](settings)}
}

func (b *BreakerLookup) Links(ctx context.Context, names []string) (map[string]string, error) {
	links, err := b.cb.Execute(func() (map[string]string, error) {
		return b.next.Links(ctx, names)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(err, errors.ErrCodeListingSourceUnavailable, "listing source circuit open")
	}
	return links, err
}

// State is the current breaker state.
func (b *BreakerLookup) State() gobreaker.State { return b.cb.State() }

// StateValue maps a breaker state onto the circuit_breaker_state gauge.
func StateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// GaugeListener returns a StateListener that mirrors transitions into g.
func GaugeListener(g prometheus.GaugeVec) StateListener {
	return func(name string, _, to gobreaker.State) {
		g.WithLabelValues(name).Set(StateValue(to))
	}
}

//Personal.AI order the ending
