package common

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings tunes the circuit breaker placed in front of an
// external HTTP service.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	FailureRatio        float64
	MinRequests         uint32
}

// DefaultBreakerSettings trips quickly, as suits a remote HTTP API.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         3,
		Interval:            2 * time.Minute,
		Timeout:             10 * time.Second,
		ConsecutiveFailures: 5,
		FailureRatio:        0.5,
		MinRequests:         10,
	}
}

// NewBreaker returns a circuit breaker named after the service it
// protects. State changes are logged.
func NewBreaker(service string, settings BreakerSettings, logger log.FieldLogger) *gobreaker.CircuitBreaker {
	logger = logger.WithField("service", service)

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures ||
				(counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			switch to {
			case gobreaker.StateOpen:
				logger.Warnf("Circuit breaker opened after repeated failures")
			case gobreaker.StateHalfOpen:
				logger.Infof("Circuit breaker half-open; probing %s", name)
			case gobreaker.StateClosed:
				logger.Infof("Circuit breaker closed; %s recovered", name)
			}
		},
	})
}
