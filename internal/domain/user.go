package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// User is a demo-app account. The field set mirrors the seeded users table.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

var emailPattern = regexp.MustCompile(`^[\w.+-]+@[\w.-]+\.\w+$`)

// ValidateUser checks user input before any persistence operation.
// Returned errors wrap ErrValidation so handlers can map them to 400s.
func ValidateUser(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > 100 {
		return fmt.Errorf("%w: name must be at most 100 characters", ErrValidation)
	}
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: email format invalid: %s", ErrValidation, email)
	}
	return nil
}
