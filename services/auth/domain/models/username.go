package models

import (
	"fmt"
	"strings"
)

// Username is a value object holding a valid login name.
// Rules: 3 <= len <= 80, ASCII letters, digits, '.', '_' and '-' only.
type Username string

const (
	minUsernameLength = 3
	maxUsernameLength = 80
)

// NewUsername trims s and returns it as a Username, or an error when it
// breaks the length or character rules.
func NewUsername(s string) (Username, error) {
	s = strings.TrimSpace(s)
	if len(s) < minUsernameLength {
		return "", fmt.Errorf("username must be at least %d characters", minUsernameLength)
	}
	if len(s) > maxUsernameLength {
		return "", fmt.Errorf("username must not exceed %d characters", maxUsernameLength)
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-':
		default:
			return "", fmt.Errorf("username contains invalid character %q", r)
		}
	}
	return Username(s), nil
}

func (u Username) String() string {
	return string(u)
}
