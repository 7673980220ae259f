package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics is the full metric set exported by aptrec processes.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	RecommendationsTotal   CounterVec
	RecommendationDuration HistogramVec
	RecommendationResults  HistogramVec
	NearbyTotal            CounterVec

	SnapshotReloadsTotal CounterVec
	SnapshotProperties   GaugeVec
	SnapshotLoadedAt     GaugeVec

	ListingLookupDuration HistogramVec
	ListingLookupErrors   CounterVec
	CacheAccessTotal      CounterVec
	BreakerState          GaugeVec

	EventsPublishedTotal CounterVec
	EventsConsumedTotal  CounterVec

	PropertyServedTotal CounterVec
}

var (
	DefaultHTTPDurationBuckets  = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
	DefaultQueryDurationBuckets = []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1}
	DefaultResultCountBuckets   = []float64{0, 1, 3, 5, 10, 20, 50}
)

// NewAppMetrics registers every family on collector.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal:   c.RegisterCounter("http_requests_total", "HTTP requests by method, route and status.", "method", "route", "status_code"),
		HTTPRequestDuration: c.RegisterHistogram("http_request_duration_seconds", "HTTP request latency.", DefaultHTTPDurationBuckets, "method", "route"),

		GRPCRequestsTotal:   c.RegisterCounter("grpc_requests_total", "gRPC unary calls by service, method and status code.", "service", "method", "code"),
		GRPCRequestDuration: c.RegisterHistogram("grpc_request_duration_seconds", "gRPC unary call latency.", DefaultHTTPDurationBuckets, "service", "method"),

		RecommendationsTotal:   c.RegisterCounter("recommendations_total", "Recommendation requests by transport and outcome code.", "transport", "outcome"),
		RecommendationDuration: c.RegisterHistogram("recommendation_duration_seconds", "Time to rank and decorate one recommendation.", DefaultQueryDurationBuckets, "transport"),
		RecommendationResults:  c.RegisterHistogram("recommendation_results", "Number of results returned per recommendation.", DefaultResultCountBuckets),
		NearbyTotal:            c.RegisterCounter("nearby_queries_total", "Nearby landmark queries by outcome code.", "outcome"),

		SnapshotReloadsTotal: c.RegisterCounter("snapshot_reloads_total", "Snapshot install attempts by trigger and result.", "trigger", "result"),
		SnapshotProperties:   c.RegisterGauge("snapshot_properties", "Number of properties in the serving snapshot."),
		SnapshotLoadedAt:     c.RegisterGauge("snapshot_loaded_timestamp_seconds", "Unix time the serving snapshot was installed."),

		ListingLookupDuration: c.RegisterHistogram("listing_lookup_duration_seconds", "Listing link lookup latency by source.", DefaultQueryDurationBuckets, "source"),
		ListingLookupErrors:   c.RegisterCounter("listing_lookup_errors_total", "Listing lookup failures by source.", "source"),
		CacheAccessTotal:      c.RegisterCounter("cache_access_total", "Cache lookups by cache and result.", "cache", "result"),
		BreakerState:          c.RegisterGauge("circuit_breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open).", "name"),

		EventsPublishedTotal: c.RegisterCounter("events_published_total", "Kafka events published by topic and result.", "topic", "result"),
		EventsConsumedTotal:  c.RegisterCounter("events_consumed_total", "Kafka events consumed by topic and result.", "topic", "result"),

		PropertyServedTotal: c.RegisterCounter("property_served_total", "Times a property appeared in served recommendations.", "property", "rank"),
	}
}

// NewNoopAppMetrics returns metrics that record nothing.
func NewNoopAppMetrics() *AppMetrics { return NewAppMetrics(NewNoopCollector()) }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordHTTPRequest records one served HTTP request.
func (m *AppMetrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordGRPCRequest records one unary call.
func (m *AppMetrics) RecordGRPCRequest(service, method, code string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}

// RecordRecommendation records one recommendation call. outcome is "ok" or
// the error code.
func (m *AppMetrics) RecordRecommendation(transport, outcome string, results int, d time.Duration) {
	m.RecommendationsTotal.WithLabelValues(transport, outcome).Inc()
	m.RecommendationDuration.WithLabelValues(transport).Observe(d.Seconds())
	if outcome == "ok" {
		m.RecommendationResults.WithLabelValues().Observe(float64(results))
	}
}

// RecordSnapshot records an install attempt and, on success, the new size.
func (m *AppMetrics) RecordSnapshot(trigger string, properties int, err error) {
	m.SnapshotReloadsTotal.WithLabelValues(trigger, result(err)).Inc()
	if err == nil {
		m.SnapshotProperties.WithLabelValues().Set(float64(properties))
		m.SnapshotLoadedAt.WithLabelValues().Set(float64(time.Now().Unix()))
	}
}

// RecordListingLookup records one listing lookup against source.
func (m *AppMetrics) RecordListingLookup(source string, d time.Duration, err error) {
	m.ListingLookupDuration.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.ListingLookupErrors.WithLabelValues(source).Inc()
	}
}

// RecordCacheAccess counts hits and misses.
func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	r := "miss"
	if hit {
		r = "hit"
	}
	m.CacheAccessTotal.WithLabelValues(cache, r).Inc()
}

// RecordEventPublished counts publish attempts.
func (m *AppMetrics) RecordEventPublished(topic string, err error) {
	m.EventsPublishedTotal.WithLabelValues(topic, result(err)).Inc()
}

// RecordEventConsumed counts handled messages.
func (m *AppMetrics) RecordEventConsumed(topic string, err error) {
	m.EventsConsumedTotal.WithLabelValues(topic, result(err)).Inc()
}

// RecordPropertyServed counts one appearance of property in a served
// result list. rank is "top" for the first row and "other" otherwise.
func (m *AppMetrics) RecordPropertyServed(property string, first bool) {
	rank := "other"
	if first {
		rank = "top"
	}
	m.PropertyServedTotal.WithLabelValues(property, rank).Inc()
}

//Personal.AI order the ending
