package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sitebid/authcore/roles"
)

type User struct {
	ID           string     `json:"id,omitempty"`    // Unique identifier for the user
	Email        string     `json:"email,omitempty"` // Stored in normalized (lower-case) form
	PasswordHash string     `json:"-"`               // Hashed version of the user's password - never serialize
	Role         roles.Role `json:"role,omitempty"`
	CreatedAt    time.Time  `json:"created_at,omitempty"`
	LastLogin    time.Time  `json:"last_login,omitempty"`
}

// NormalizeEmail folds an email address to its canonical lookup form.
// Email uniqueness is case-insensitive throughout the system.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
