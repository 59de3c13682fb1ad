// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cmobile"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	LoginAttempts       *prometheus.CounterVec
	AccountLockouts     prometheus.Counter
	NotificationChanges *prometheus.CounterVec
	GRNsCreated         prometheus.Counter
	ApprovalDecisions   *prometheus.CounterVec
	SweptEntries        *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by result (success, invalid, locked).",
		}, []string{"result"}),
		AccountLockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after repeated failed logins.",
		}),
		NotificationChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_changes_total",
			Help:      "Notification store mutations by action.",
		}, []string{"action"}),
		GRNsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grns_created_total",
			Help:      "Good receive notes committed.",
		}),
		ApprovalDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Purchase order approval decisions by outcome.",
		}, []string{"decision"}),
		SweptEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_entries_total",
			Help:      "Expired sessions and lapsed lockouts cleared by the sweeper.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.LoginAttempts,
		m.AccountLockouts,
		m.NotificationChanges,
		m.GRNsCreated,
		m.ApprovalDecisions,
		m.SweptEntries,
	)
	return m
}

func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.AccountLockouts.Inc()
}

func (m *Metrics) NotificationChanged(action string) {
	if m == nil {
		return
	}
	m.NotificationChanges.WithLabelValues(action).Inc()
}

func (m *Metrics) GRNCreated() {
	if m == nil {
		return
	}
	m.GRNsCreated.Inc()
}

func (m *Metrics) ApprovalDecision(decision string) {
	if m == nil {
		return
	}
	m.ApprovalDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) Swept(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SweptEntries.WithLabelValues(kind).Add(float64(n))
}
