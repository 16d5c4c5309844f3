// Package metrics defines the Prometheus collectors of the authentication core.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Gate outcomes.
const (
	OutcomePublic          = "public"
	OutcomeAnonymous       = "anonymous"
	OutcomeRevoked         = "revoked"
	OutcomeInvalid         = "invalid"
	OutcomeExpired         = "expired"
	OutcomeUnknownIdentity = "unknown_identity"
	OutcomeError           = "error"
	OutcomeAuthenticated   = "authenticated"
)

// Login results.
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginError              = "error"
)

var (
	GateRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_gate_requests_total",
		Help: "Requests seen by the authentication gate, by outcome.",
	}, []string{"outcome"})

	Logins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts, by result.",
	}, []string{"result"})

	Revocations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_revocations_total",
		Help: "Tokens placed in the revocation store.",
	})
)

// Register registers the collectors on reg, or the default registerer when nil.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{GateRequests, Logins, Revocations} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// GateOutcome counts one gate decision.
func GateOutcome(outcome string) {
	GateRequests.WithLabelValues(outcome).Inc()
}

// Login counts one login attempt.
func Login(result string) {
	Logins.WithLabelValues(result).Inc()
}

// Revoked counts n revoked tokens.
func Revoked(n int) {
	Revocations.Add(float64(n))
}
