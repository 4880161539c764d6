package users

import "time"

// Repo is the user persistence contract. It is owned by the excluded
// persistence layer; the auth core only consumes it.
type Repo interface {
	// Create stores a new user. The user's email must already be
	// normalized; a case-insensitive duplicate yields ErrDuplicateEmail.
	Create(user *User) error
	// GetByEmail looks a user up by normalized email.
	GetByEmail(email string) (*User, error)
	GetByID(id string) (*User, error)
	UpdatePasswordHash(id, passwordHash string) error
	UpdateLastLogin(id string, at time.Time) error
	Delete(id string) error
	List(offset, limit int) ([]*User, error)
}
