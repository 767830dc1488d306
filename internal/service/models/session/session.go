package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/models/role"
)

var ErrInvalidToken = errors.New("invalid session token")

// Session is the signed-in account the agent acts for.
// It is created on session start and torn down on logout; nothing in the core reads it from a global.
type Session struct {
	AccountID int64
	Role      role.Role
	Token     string
	ExpiresAt time.Time
	StartedAt time.Time
}

// FromToken builds a session from the API bearer token.
// The token is not verified here: the remote API is the authority and rejects bad tokens itself.
func FromToken(token string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	accountID, err := parseSubject(claims["sub"])
	if err != nil {
		return nil, err
	}

	roleName, _ := claims["role"].(string)
	r, err := role.Parse(roleName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	s := &Session{
		AccountID: accountID,
		Role:      r,
		Token:     token,
		StartedAt: time.Now(),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}

	return s, nil
}

// Expired reports whether the token expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// parseSubject reads the account id; the backend issues it as a number, newer token libraries as a string.
func parseSubject(sub any) (int64, error) {
	switch v := sub.(type) {
	case float64:
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: subject %q is not numeric", ErrInvalidToken, v)
		}

		return id, nil
	default:
		return 0, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
}
