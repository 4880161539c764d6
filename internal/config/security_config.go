package config

type SecurityConfig interface {
	GetBcryptCost() int
	GetRevokeAllOnReuse() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetBcryptCost() int {
	return GetEnvInt("BCRYPT_COST", 12)
}

// GetRevokeAllOnReuse controls the blast radius of refresh-token reuse
// detection: false revokes only the compromised session, true revokes
// every session belonging to that user.
func (Security) GetRevokeAllOnReuse() bool {
	return GetEnvBool("REVOKE_ALL_ON_REUSE", false)
}
