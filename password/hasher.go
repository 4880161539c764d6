package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinCost is the lowest bcrypt work factor the hasher will accept.
// Anything weaker is silently raised to this floor.
const MinCost = 10

// Hasher produces and verifies salted bcrypt password hashes.
type Hasher struct {
	cost      int
	dummyHash string
}

// NewHasher creates a Hasher with the given bcrypt cost, clamped to MinCost.
func NewHasher(cost int) *Hasher {
	if cost < MinCost {
		cost = MinCost
	}
	h := &Hasher{cost: cost}

	// Precomputed hash used by DummyVerify so the unknown-user path
	// costs the same as a real comparison.
	dummy, err := bcrypt.GenerateFromPassword([]byte("sitebid-dummy-password"), cost)
	if err == nil {
		h.dummyHash = string(dummy)
	}
	return h
}

// Hash returns the bcrypt hash of password. Each call embeds a fresh
// random salt, so hashing the same password twice yields different outputs.
func (h *Hasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Verify reports whether password matches hash. A malformed or empty
// stored hash fails closed: the result is false, never an error.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyVerify burns the same CPU as a failed Verify without any real
// hash involved. Called on lookups for nonexistent users so response
// timing does not reveal whether an account exists.
func (h *Hasher) DummyVerify(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(h.dummyHash), []byte(password))
}

// Cost returns the work factor the hasher applies to new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}
