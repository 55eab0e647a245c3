package config

import "time"

type HTTPConfig interface {
	GetHTTPTimeout() time.Duration
	GetClockTolerance() time.Duration
	GetMaxRetryAttempts() int
}

type HTTP struct{}

var _ HTTPConfig = HTTP{}

func (HTTP) GetHTTPTimeout() time.Duration {
	return 30 * time.Second
}

func (HTTP) GetClockTolerance() time.Duration {
	return 5 * time.Second
}

// GetMaxRetryAttempts is the default number of transport retries performed by
// the request executor. The SDK never retries on its own unless the caller
// raises this through api.RetryPolicy.
func (HTTP) GetMaxRetryAttempts() int {
	return 0
}
