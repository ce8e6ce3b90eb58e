package login

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "login_attempts_total",
	Help: "Login attempts by result",
}, []string{"result"})

const (
	resultSuccess          = "success"
	resultInvalidPassword  = "invalid_credentials"
	resultSecondFactor     = "second_factor_required"
	resultInvalidTwoFactor = "invalid_second_factor"
	resultThrottled        = "throttled"
)
