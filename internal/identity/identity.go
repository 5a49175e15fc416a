// Package identity verifies caller identity tokens. Verification fails
// closed: any parse, signature, or claim problem yields an unverified error
// and no identity.
package identity

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
)

// Identity is a verified caller.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
}

// ErrUnverified indicates a token that could not be verified.
var ErrUnverified = apperrors.New(apperrors.CodeIdentityUnverified, "identity could not be verified")

// Verifier validates signed identity tokens.
type Verifier struct {
	secret []byte
	clock  func() time.Time
}

// NewVerifier creates a Verifier for HS256 tokens signed with secret.
func NewVerifier(secret []byte, clock func() time.Time) *Verifier {
	if clock == nil {
		clock = time.Now
	}
	return &Verifier{secret: secret, clock: clock}
}

type claims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// Verify parses and validates a token, returning the caller's identity. The
// subject claim is the uid and must be present.
func (v *Verifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(v.secret) == 0 {
		return Identity{}, ErrUnverified
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnverified
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.clock))
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnverified
	}
	parsedClaims, ok := parsed.Claims.(*claims)
	if !ok || strings.TrimSpace(parsedClaims.Subject) == "" {
		return Identity{}, ErrUnverified
	}
	return Identity{
		UID:         parsedClaims.Subject,
		Email:       strings.ToLower(strings.TrimSpace(parsedClaims.Email)),
		DisplayName: strings.TrimSpace(parsedClaims.DisplayName),
	}, nil
}

// Sign issues a token for an identity. Used by tests and local tooling.
func (v *Verifier) Sign(identity Identity, ttl time.Duration) (string, error) {
	now := v.clock().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
