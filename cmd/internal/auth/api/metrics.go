package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the auth workflow. Labels use coarse outcomes only; identifiers
// and emails never become label values.
var (
	signupTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_signup_total",
		Help: "Total signup attempts by result",
	}, []string{"result"})

	loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Total login attempts by result",
	}, []string{"result"})

	passwordResetTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_password_reset_total",
		Help: "Total password-reset operations by step and result",
	}, []string{"step", "result"})
)
