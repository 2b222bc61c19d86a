package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"pkt.systems/halolight/schema"
)

// TokenCodec issues and parses the bearer token stored in the auth cookie.
type TokenCodec interface {
	Issue(user schema.User, ttl time.Duration) (string, error)
	Parse(token string) (schema.UserID, error)
}

const mockTokenPrefix = "mock-token-"

// MockTokens issues unsigned tokens of the form mock-token-<id>-<unixMillis>.
// They carry no expiry; the cookie Max-Age is the only lifetime.
type MockTokens struct {
	Clock clockwork.Clock
}

// Issue implements TokenCodec.
func (m MockTokens) Issue(user schema.User, _ time.Duration) (string, error) {
	if user.ID == "" {
		return "", schema.ErrInvalidUser
	}
	return fmt.Sprintf("%s%s-%d", mockTokenPrefix, user.ID, nowFrom(m.Clock).UnixMilli()), nil
}

// Parse implements TokenCodec.
func (m MockTokens) Parse(token string) (schema.UserID, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(token), mockTokenPrefix)
	if !ok {
		return "", schema.ErrInvalidToken
	}
	cut := strings.LastIndexByte(rest, '-')
	if cut <= 0 {
		return "", schema.ErrInvalidToken
	}
	if _, err := strconv.ParseInt(rest[cut+1:], 10, 64); err != nil {
		return "", schema.ErrInvalidToken
	}
	id := schema.UserID(rest[:cut])
	if err := schema.ValidateUserID(id); err != nil {
		return "", schema.ErrInvalidToken
	}
	return id, nil
}

// JWTTokens issues HS256 JSON Web Tokens whose expiry matches the cookie lifetime.
type JWTTokens struct {
	Secret []byte
	Issuer string
	Clock  clockwork.Clock
}

type jwtClaims struct {
	Email string      `json:"email,omitempty"`
	Role  schema.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issue implements TokenCodec.
func (j JWTTokens) Issue(user schema.User, ttl time.Duration) (string, error) {
	if len(j.Secret) == 0 {
		return "", errors.New("jwt secret is required")
	}
	if user.ID == "" {
		return "", schema.ErrInvalidUser
	}
	now := nowFrom(j.Clock)
	claims := jwtClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user.ID),
			Issuer:    j.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
}

// Parse implements TokenCodec.
func (j JWTTokens) Parse(token string) (schema.UserID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return nowFrom(j.Clock) }),
	}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}
	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.Secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", schema.ErrInvalidToken, err)
	}
	id := schema.UserID(claims.Subject)
	if err := schema.ValidateUserID(id); err != nil {
		return "", schema.ErrInvalidToken
	}
	return id, nil
}

func nowFrom(clock clockwork.Clock) time.Time {
	if clock == nil {
		return time.Now()
	}
	return clock.Now()
}
