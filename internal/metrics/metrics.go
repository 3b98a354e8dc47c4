// Package metrics provides the orchestrator's metrics recorder. The recorder
// is constructed once at process start and injected into each component;
// there is no process-wide mutable state beyond the Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all orchestrator metrics.
	Namespace = "interview"

	// SubsystemOrchestrator is the subsystem for orchestration metrics.
	SubsystemOrchestrator = "orchestrator"
)

// Recorder is the metrics interface injected into components. A no-op
// implementation backs tests.
type Recorder interface {
	// SessionTransition records a successful transition into a status.
	SessionTransition(to string)
	// SegmentIngested records the outcome of a single segment ingestion.
	SegmentIngested(result string)
	// NotificationAttempt records one delivery attempt outcome per channel.
	NotificationAttempt(channel, outcome string)
	// ProviderCall records the duration of one outbound provider call.
	ProviderCall(provider string, d time.Duration)
}

// Prometheus implements Recorder on a Prometheus registry.
type Prometheus struct {
	sessionTransitions   *prometheus.CounterVec
	segmentsIngested     *prometheus.CounterVec
	notificationAttempts *prometheus.CounterVec
	providerCallSeconds  *prometheus.HistogramVec
}

// NewPrometheus creates and registers the orchestrator metrics.
// A nil registerer falls back to the default registry.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Prometheus{
		sessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: SubsystemOrchestrator,
				Name:      "session_transitions_total",
				Help:      "Total session state transitions by target status",
			},
			[]string{"to_status"},
		),
		segmentsIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: SubsystemOrchestrator,
				Name:      "transcript_segments_total",
				Help:      "Total transcript segments processed by result",
			},
			[]string{"result"},
		),
		notificationAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: SubsystemOrchestrator,
				Name:      "notification_attempts_total",
				Help:      "Total notification delivery attempts by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		providerCallSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: SubsystemOrchestrator,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of outbound provider calls",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"provider"},
		),
	}
}

func (p *Prometheus) SessionTransition(to string) {
	p.sessionTransitions.WithLabelValues(to).Inc()
}

func (p *Prometheus) SegmentIngested(result string) {
	p.segmentsIngested.WithLabelValues(result).Inc()
}

func (p *Prometheus) NotificationAttempt(channel, outcome string) {
	p.notificationAttempts.WithLabelValues(channel, outcome).Inc()
}

func (p *Prometheus) ProviderCall(provider string, d time.Duration) {
	p.providerCallSeconds.WithLabelValues(provider).Observe(d.Seconds())
}

// Nop is a Recorder that discards everything. Use in tests.
type Nop struct{}

// NewNop creates a no-op recorder.
func NewNop() *Nop { return &Nop{} }

func (*Nop) SessionTransition(string)           {}
func (*Nop) SegmentIngested(string)             {}
func (*Nop) NotificationAttempt(string, string) {}
func (*Nop) ProviderCall(string, time.Duration) {}
