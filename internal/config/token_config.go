package config

import "time"

type TokenConfig interface {
	GetIssuer() string
	GetJWTSecret() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", "sitebid-auth")
}

func (Tokens) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour) // 30 days
}
