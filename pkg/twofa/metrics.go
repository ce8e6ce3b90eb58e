package twofa

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twofa_verifications_total",
		Help: "Second-factor verification attempts by method, matching strategy and result",
	}, []string{"method", "strategy", "result"})

	codesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twofa_codes_sent_total",
		Help: "One-time codes dispatched by method and result",
	}, []string{"method", "result"})

	enrollmentChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twofa_enrollment_changes_total",
		Help: "Enable, disable and backup code regeneration events by method",
	}, []string{"method", "action"})
)

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
