// Package metrics exposes Prometheus counters for profile synchronization.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeMissing = "missing"
)

// Remote write kinds.
const (
	WriteDueDate        = "due_date"
	WriteFavoriteAdd    = "favorite_add"
	WriteFavoriteRemove = "favorite_remove"
	WriteChecklist      = "checklist"
	WriteEnsure         = "ensure"
)

// Recorder is what the store and the debouncer report to.
type Recorder interface {
	RecordProfileFetch(outcome string)
	RecordRemoteWrite(kind, outcome string)
	RecordDebouncedFlush()
	RecordSupersededPayload()
	RecordAuthAction(action, outcome string)
}

// Collector is the Prometheus Recorder.
type Collector struct {
	profileFetches *prometheus.CounterVec
	remoteWrites   *prometheus.CounterVec
	flushes        prometheus.Counter
	superseded     prometheus.Counter
	authActions    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		profileFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pregnancy_guide_profile_fetches_total",
			Help: "Profile document fetches by outcome.",
		}, []string{"outcome"}),
		remoteWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pregnancy_guide_remote_writes_total",
			Help: "Profile document writes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pregnancy_guide_checklist_flushes_total",
			Help: "Debounced checklist writes sent.",
		}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pregnancy_guide_checklist_superseded_total",
			Help: "Checklist payloads replaced before they were sent.",
		}),
		authActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pregnancy_guide_auth_actions_total",
			Help: "Identity actions by action and outcome.",
		}, []string{"action", "outcome"}),
	}

	reg.MustRegister(
		c.profileFetches,
		c.remoteWrites,
		c.flushes,
		c.superseded,
		c.authActions,
	)

	return c
}

func (c *Collector) RecordProfileFetch(outcome string) {
	c.profileFetches.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRemoteWrite(kind, outcome string) {
	c.remoteWrites.WithLabelValues(kind, outcome).Inc()
}

func (c *Collector) RecordDebouncedFlush() {
	c.flushes.Inc()
}

func (c *Collector) RecordSupersededPayload() {
	c.superseded.Inc()
}

func (c *Collector) RecordAuthAction(action, outcome string) {
	c.authActions.WithLabelValues(action, outcome).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordProfileFetch(string) {}
func (Nop) RecordRemoteWrite(string, string) {}
func (Nop) RecordDebouncedFlush() {}
func (Nop) RecordSupersededPayload() {}
func (Nop) RecordAuthAction(string, string) {}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Outcome maps an error to OutcomeSuccess or OutcomeFailure.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
