// Package telemetry provides Prometheus metrics for the talk lifecycle.
package telemetry

import (
	"errors"

	"github.com/dkeye/TalkBot/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	talksCreated   *prometheus.CounterVec
	talksDeleted   *prometheus.CounterVec
	talksActive    prometheus.Gauge
	pendingDeletes prometheus.Gauge
	passwords      *prometheus.CounterVec
	evictions      prometheus.Counter
	challengesSent prometheus.Counter
	platformErrors *prometheus.CounterVec
}

// New registers the talk metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		talksCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkbot_talks_created_total",
			Help: "Talk channels created, by protection.",
		}, []string{"protected"}),
		talksDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkbot_talks_deleted_total",
			Help: "Talk channels removed, by reason (empty, vanished).",
		}, []string{"reason"}),
		talksActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "talkbot_talks_active",
			Help: "Talk channels currently tracked.",
		}),
		pendingDeletes: f.NewGauge(prometheus.GaugeOpts{
			Name: "talkbot_pending_deletions",
			Help: "Talk channels waiting out the grace period.",
		}),
		passwords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkbot_password_submissions_total",
			Help: "Password submissions, by result.",
		}, []string{"result"}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "talkbot_evictions_total",
			Help: "Members moved out of a gated talk.",
		}),
		challengesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "talkbot_challenges_sent_total",
			Help: "Password challenges delivered by private message.",
		}),
		platformErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "talkbot_platform_errors_total",
			Help: "Failed platform operations, by operation and kind.",
		}, []string{"op", "kind"}),
	}
}

func (m *Metrics) TalkCreated(protected bool) {
	if m == nil {
		return
	}
	label := "false"
	if protected {
		label = "true"
	}
	m.talksCreated.WithLabelValues(label).Inc()
}

func (m *Metrics) TalkDeleted(reason string) {
	if m == nil {
		return
	}
	m.talksDeleted.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.talksActive.Set(float64(n))
}

func (m *Metrics) SetPendingDeletions(n int) {
	if m == nil {
		return
	}
	m.pendingDeletes.Set(float64(n))
}

func (m *Metrics) PasswordSubmitted(result string) {
	if m == nil {
		return
	}
	m.passwords.WithLabelValues(result).Inc()
}

func (m *Metrics) Evicted() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *Metrics) ChallengeSent() {
	if m == nil {
		return
	}
	m.challengesSent.Inc()
}

// PlatformError records a failed gateway call under its error kind.
func (m *Metrics) PlatformError(op string, err error) {
	if m == nil || err == nil {
		return
	}
	m.platformErrors.WithLabelValues(op, ErrorKind(err)).Inc()
}

// ErrorKind classifies a gateway error for labels and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, core.ErrPlatformForbidden):
		return "forbidden"
	case errors.Is(err, core.ErrPlatformNotFound):
		return "not_found"
	default:
		return "other"
	}
}
