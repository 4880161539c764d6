package config

type Config interface {
	TokenConfig
	SecurityConfig
	RateLimitConfig
	StorageConfig
}

type mainConfig struct {
	Tokens
	Security
	RateLimit
	Storage
}

func New() Config {
	return mainConfig{}
}
