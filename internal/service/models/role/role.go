package role

import (
	"errors"
	"strings"
)

// Role is the kind of account a session belongs to.
type Role string

const (
	Admin  Role = "admin"
	Farmer Role = "farmer"
	Buyer  Role = "buyer"
)

var ErrInvalidRole = errors.New("invalid role")

func (r Role) String() string {
	return string(r)
}

// Parse parses a role name case-insensitively.
func Parse(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case Admin:
		return Admin, nil
	case Farmer:
		return Farmer, nil
	case Buyer:
		return Buyer, nil
	default:
		return "", ErrInvalidRole
	}
}
