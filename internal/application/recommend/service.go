// Package recommend orchestrates the serving snapshot, listing lookups,
// metrics and events behind the recommender's use cases. Transports (HTTP,
// gRPC, CLI) call into Service and never touch the domain directly.
package recommend

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/aptrec/internal/config"
	"github.com/turtacn/aptrec/internal/domain/landmark"
	"github.com/turtacn/aptrec/internal/domain/similarity"
	"github.com/turtacn/aptrec/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aptrec/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aptrec/internal/infrastructure/snapshot"
	"github.com/turtacn/aptrec/pkg/errors"
)

// ============================================================================
// Options & collaborators
// ============================================================================

const (
	DefaultTopN = 5
	// DefaultMaxTopN leaves top_n uncapped so a large value returns every
	// other property.
	DefaultMaxTopN = 0

	publishTimeout = 5 * time.Second
)

// Options are the query defaults and limits.
type Options struct {
	Weights         similarity.Weights
	DefaultTopN     int
	MaxTopN         int // zero means no cap
	DefaultRadiusKM float64
	MaxRadiusKM     float64
	PublishEvents   bool
}

// OptionsFromConfig maps the recommender config section onto Options.
func OptionsFromConfig(c config.RecommenderConfig) Options {
	return Options{
		Weights:         similarity.Weights{Facilities: c.FacilitiesWeight, Price: c.PriceWeight, Location: c.LocationWeight},
		DefaultTopN:     c.DefaultTopN,
		MaxTopN:         c.MaxTopN,
		DefaultRadiusKM: c.DefaultRadiusKM,
		MaxRadiusKM:     c.MaxRadiusKM,
		PublishEvents:   c.PublishEvents,
	}
}

func (o *Options) applyDefaults() {
	if o.Weights == (similarity.Weights{}) {
		o.Weights = similarity.DefaultWeights()
	}
	if o.DefaultTopN <= 0 {
		o.DefaultTopN = DefaultTopN
	}
	if o.MaxTopN < 0 {
		o.MaxTopN = DefaultMaxTopN
	}
	if o.MaxTopN > 0 && o.DefaultTopN > o.MaxTopN {
		o.DefaultTopN = o.MaxTopN
	}
	if o.DefaultRadiusKM <= 0 {
		o.DefaultRadiusKM = landmark.DefaultRadiusKM
	}
	if o.MaxRadiusKM <= 0 {
		o.MaxRadiusKM = landmark.MaxRadiusKM
	}
}

// ServedPublisher receives a RecommendationServed event per successful query.
type ServedPublisher interface {
	RecommendationServed(ctx context.Context, ev kafka.RecommendationServed) error
}

// Deps are the Service collaborators. Holder and Lookup are required.
type Deps struct {
	Holder    *snapshot.Holder
	Source    snapshot.Source
	Lookup    similarity.ListingLookup
	Publisher ServedPublisher
	Metrics   *prometheus.AppMetrics
	Logger    logging.Logger
}

// ============================================================================
// DTOs
// ============================================================================

// RecommendInput is one recommendation query. Nil Weights and zero TopN take
// the configured defaults.
type RecommendInput struct {
	Property  string
	Weights   *similarity.Weights
	TopN      int
	Transport string
}

type RecommendOutput struct {
	Property string                      `json:"property"`
	Weights  similarity.Weights          `json:"weights"`
	TopN     int                         `json:"top_n"`
	Results  []similarity.Recommendation `json:"results"`
	Snapshot string                      `json:"snapshot"`
}

// NearbyInput is a landmark radius query. Zero RadiusKM takes the default.
type NearbyInput struct {
	Landmark string
	RadiusKM float64
}

type NearbyOutput struct {
	Landmark   string                    `json:"landmark"`
	RadiusKM   float64                   `json:"radius_km"`
	Properties []landmark.NearbyProperty `json:"properties"`
}

// Stats describes the serving state.
type Stats struct {
	Ready       bool      `json:"ready"`
	Source      string    `json:"source,omitempty"`
	Properties  int       `json:"properties"`
	Landmarks   int       `json:"landmarks"`
	InstalledAt time.Time `json:"installed_at,omitempty"`
	Served      int64     `json:"served"`
	Failed      int64     `json:"failed"`
}

// ============================================================================
// Service
// ============================================================================

type Service struct {
	opts      Options
	holder    *snapshot.Holder
	source    snapshot.Source
	lookup    similarity.ListingLookup
	publisher ServedPublisher
	metrics   *prometheus.AppMetrics
	logger    logging.Logger

	served  atomic.Int64
	failed  atomic.Int64
	pending sync.WaitGroup
}

func NewService(opts Options, deps Deps) (*Service, error) {
	if deps.Holder == nil {
		return nil, errors.InvalidParam("snapshot holder is required")
	}
	if deps.Lookup == nil {
		return nil, errors.InvalidParam("listing lookup is required")
	}
	opts.applyDefaults()
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = prometheus.NewNoopAppMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &Service{
		opts:      opts,
		holder:    deps.Holder,
		source:    deps.Source,
		lookup:    deps.Lookup,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("recommend"),
	}, nil
}

// Options returns the effective defaults and limits.
func (s *Service) Options() Options { return s.opts }

// Recommend ranks the properties most similar to in.Property and attaches
// their listing links.
func (s *Service) Recommend(ctx context.Context, in RecommendInput) (*RecommendOutput, error) {
	start := time.Now()
	transport := in.Transport
	if transport == "" {
		transport = "internal"
	}

	out, err := s.recommend(ctx, in)
	if err != nil {
		s.failed.Add(1)
		s.metrics.RecordRecommendation(transport, string(errors.GetCode(err)), 0, time.Since(start))
		s.logger.WithContext(ctx).Debug("recommendation failed",
			logging.String("property", in.Property), logging.Err(err))
		return nil, err
	}

	s.served.Add(1)
	s.metrics.RecordRecommendation(transport, "ok", len(out.Results), time.Since(start))
	s.publishServed(ctx, out)
	return out, nil
}

func (s *Service) recommend(ctx context.Context, in RecommendInput) (*RecommendOutput, error) {
	serving, err := s.holder.Current()
	if err != nil {
		return nil, err
	}

	w := s.opts.Weights
	if in.Weights != nil {
		w = *in.Weights
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	topN := in.TopN
	switch {
	case topN == 0:
		topN = s.opts.DefaultTopN
	case s.opts.MaxTopN > 0 && topN > s.opts.MaxTopN:
		topN = s.opts.MaxTopN
	}

	ranked, err := similarity.Recommend(serving.Store, in.Property, w, topN)
	if err != nil {
		return nil, err
	}
	results, err := similarity.Assemble(ctx, ranked, s.lookup)
	if err != nil {
		return nil, err
	}
	return &RecommendOutput{
		Property: in.Property,
		Weights:  w,
		TopN:     topN,
		Results:  results,
		Snapshot: serving.Source,
	}, nil
}

// publishServed emits the served event in the background. Failures are
// logged and never reach the caller.
func (s *Service) publishServed(ctx context.Context, out *RecommendOutput) {
	if !s.opts.PublishEvents || s.publisher == nil {
		return
	}
	ev := kafka.RecommendationServed{
		ID:       kafka.NewEventID(),
		Query:    out.Property,
		Weights:  out.Weights,
		TopN:     out.TopN,
		Results:  make([]kafka.ServedResult, len(out.Results)),
		ServedAt: time.Now().UTC(),
	}
	for i, r := range out.Results {
		ev.Results[i] = kafka.ServedResult{Name: r.Name, Score: r.Score}
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.publisher.RecommendationServed(pubCtx, ev); err != nil {
			s.logger.Warn("failed to publish served event",
				logging.String("event_id", ev.ID), logging.Err(err))
		}
	}()
}

// Nearby lists properties within the radius of a landmark.
func (s *Service) Nearby(ctx context.Context, in NearbyInput) (*NearbyOutput, error) {
	serving, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	radius := in.RadiusKM
	if radius == 0 {
		radius = s.opts.DefaultRadiusKM
	}

	props, err := nearby(serving, in.Landmark, radius, s.opts.MaxRadiusKM)
	outcome := "ok"
	if err != nil {
		outcome = string(errors.GetCode(err))
	}
	s.metrics.NearbyTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		return nil, err
	}
	return &NearbyOutput{Landmark: in.Landmark, RadiusKM: radius, Properties: props}, nil
}

func nearby(serving *snapshot.Serving, name string, radius, maxKM float64) ([]landmark.NearbyProperty, error) {
	if serving.Landmarks == nil {
		cause := &landmark.UnknownLandmarkError{Name: name}
		return nil, errors.Wrap(cause, errors.ErrCodeUnknownLandmark, "snapshot has no landmark table").WithDetail(name)
	}
	return serving.Landmarks.Nearby(name, radius, maxKM)
}

// Properties returns the serving property names sorted for selection.
func (s *Service) Properties(_ context.Context) ([]string, error) {
	serving, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	names := serving.Store.Names()
	sort.Strings(names)
	return names, nil
}

// Landmarks returns the sorted landmark names, empty when the snapshot has
// no distance table.
func (s *Service) Landmarks(_ context.Context) ([]string, error) {
	serving, err := s.holder.Current()
	if err != nil {
		return nil, err
	}
	if serving.Landmarks == nil {
		return []string{}, nil
	}
	return serving.Landmarks.Landmarks(), nil
}

// ============================================================================
// Snapshot lifecycle
// ============================================================================

// Reload re-reads the configured source and installs it.
func (s *Service) Reload(ctx context.Context) (*Stats, error) {
	return s.ReloadFrom(ctx, "manual", s.source)
}

// ReloadFrom installs a snapshot read from src, labelling the attempt with
// trigger. A failed reload keeps the serving snapshot.
func (s *Service) ReloadFrom(ctx context.Context, trigger string, src snapshot.Source) (*Stats, error) {
	if src == nil {
		return nil, errors.New(errors.ErrCodeNotImplemented, "no snapshot source configured")
	}
	serving, err := s.holder.Reload(ctx, src)
	if err != nil {
		s.metrics.RecordSnapshot(trigger, 0, err)
		return nil, err
	}
	s.recordInstalled(trigger, serving)
	st := s.Stats()
	return &st, nil
}

// Install validates and swaps in snap directly.
func (s *Service) Install(snap *snapshot.Snapshot) (*Stats, error) {
	serving, err := s.holder.Install(snap)
	if err != nil {
		s.metrics.RecordSnapshot("install", 0, err)
		return nil, err
	}
	s.recordInstalled("install", serving)
	st := s.Stats()
	return &st, nil
}

func (s *Service) recordInstalled(trigger string, serving *snapshot.Serving) {
	s.metrics.RecordSnapshot(trigger, serving.Store.Size(), nil)
}

// HandleSnapshotPublished is the Kafka handler for snapshot.published. An
// object-store source is re-pointed at the announced prefix; any other
// source is simply reloaded.
func (s *Service) HandleSnapshotPublished(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	var ev kafka.SnapshotPublished
	if err := env.DecodePayload(&ev); err != nil {
		return err
	}

	src := s.source
	if obj, ok := src.(*snapshot.ObjectSource); ok && ev.Prefix != "" {
		src = obj.WithPrefix(ev.Prefix)
	}
	s.logger.Info("snapshot published event received",
		logging.String("event_id", ev.ID), logging.String("prefix", ev.Prefix))
	_, err = s.ReloadFrom(ctx, "event", src)
	return err
}

// Ready reports whether a snapshot is serving.
func (s *Service) Ready() bool { return s.holder.Ready() }

func (s *Service) Stats() Stats {
	st := Stats{Served: s.served.Load(), Failed: s.failed.Load()}
	serving, err := s.holder.Current()
	if err != nil {
		return st
	}
	st.Ready = true
	st.Source = serving.Source
	st.Properties = serving.Store.Size()
	st.InstalledAt = serving.InstalledAt
	if serving.Landmarks != nil {
		st.Landmarks = len(serving.Landmarks.Landmarks())
	}
	return st
}

// Close waits for in-flight event publishes.
func (s *Service) Close() { s.pending.Wait() }

//Personal.AI order the ending
