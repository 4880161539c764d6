package config

import "time"

type RateLimitConfig interface {
	GetRateLimitWindow() time.Duration
	GetRateLimitMaxAttempts() int
}

type RateLimit struct{}

var _ RateLimitConfig = RateLimit{}

func (RateLimit) GetRateLimitWindow() time.Duration {
	return GetEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
}

func (RateLimit) GetRateLimitMaxAttempts() int {
	return GetEnvInt("RATE_LIMIT_MAX_ATTEMPTS", 5)
}
