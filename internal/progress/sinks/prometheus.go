package sinks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HsienYu/BreakingNewsEffects/internal/progress"
)

// PrometheusSink exports pass progress metrics via Prometheus. It owns all
// collectors for passes started/completed/running plus per-site fetch and
// per-class item/asset counters.
type PrometheusSink struct {
	passesStarted   prometheus.Counter
	passesCompleted *prometheus.CounterVec
	passesRunning   prometheus.Gauge
	passDuration    *prometheus.HistogramVec

	fetches *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	items   *prometheus.CounterVec
	assets  *prometheus.CounterVec

	tracker *passTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		passesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_passes_started_total",
			Help: "Total archival passes that have started.",
		}),
		passesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_passes_completed_total",
			Help: "Total passes completed partitioned by result.",
		}, []string{"result"}),
		passesRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archiver_passes_running",
			Help: "Current number of running passes.",
		}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archiver_pass_duration_seconds",
			Help:    "Wall time per completed pass.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_pass_fetches_total",
			Help: "Fetch completions partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_pass_bytes_total",
			Help: "Bytes downloaded per site.",
		}, []string{"site"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_pass_items_total",
			Help: "Items archived or failed per pass stage.",
		}, []string{"result"}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_pass_assets_total",
			Help: "Assets cached or skipped partitioned by mime class.",
		}, []string{"class", "result"}),
		tracker: newPassTracker(),
	}
	var err error
	if s.passesStarted, err = registerOrReuse(reg, s.passesStarted); err != nil {
		return nil, err
	}
	if s.passesCompleted, err = registerOrReuse(reg, s.passesCompleted); err != nil {
		return nil, err
	}
	if s.passesRunning, err = registerOrReuse(reg, s.passesRunning); err != nil {
		return nil, err
	}
	if s.passDuration, err = registerOrReuse(reg, s.passDuration); err != nil {
		return nil, err
	}
	if s.fetches, err = registerOrReuse(reg, s.fetches); err != nil {
		return nil, err
	}
	if s.bytes, err = registerOrReuse(reg, s.bytes); err != nil {
		return nil, err
	}
	if s.items, err = registerOrReuse(reg, s.items); err != nil {
		return nil, err
	}
	if s.assets, err = registerOrReuse(reg, s.assets); err != nil {
		return nil, err
	}
	return s, nil
}

// registerOrReuse registers c with reg; when an identical collector is
// already registered it adopts the existing one so rebuilt sinks keep
// incrementing the same series.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register progress collector: %w", err)
	}
	return c, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StagePassStart, progress.StagePassDone, progress.StagePassError:
		s.handlePassEvent(evt)
	case progress.StageFetchDone:
		s.handleFetchEvent(evt)
	case progress.StageItemDone:
		s.items.WithLabelValues("archived").Inc()
	case progress.StageItemFailed:
		s.items.WithLabelValues("failed").Inc()
	case progress.StageAssetCached:
		s.assets.WithLabelValues(evt.Class, "cached").Inc()
	case progress.StageAssetSkipped:
		s.assets.WithLabelValues(evt.Class, "skipped").Inc()
	}
}

func (s *PrometheusSink) handlePassEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StagePassStart:
		s.passesStarted.Inc()
		if s.tracker.start(evt.PassID) {
			s.passesRunning.Inc()
		}
	case progress.StagePassDone:
		s.passesCompleted.WithLabelValues("success").Inc()
		s.observeDuration(evt, "success")
	case progress.StagePassError:
		s.passesCompleted.WithLabelValues("error").Inc()
		s.observeDuration(evt, "error")
	}
	if evt.Stage != progress.StagePassStart && s.tracker.complete(evt.PassID) {
		s.passesRunning.Dec()
	}
}

func (s *PrometheusSink) observeDuration(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.passDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetches.WithLabelValues(site, statusClass).Inc()
	if evt.Bytes > 0 {
		s.bytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type passTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newPassTracker() *passTracker {
	return &passTracker{running: make(map[[16]byte]struct{})}
}

func (t *passTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *passTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
