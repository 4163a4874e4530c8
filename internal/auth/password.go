// Package auth encodes passwords and guards the bridge with signed tokens.
//
// TWO SCHEMES:
// Documents written by earlier versions store passwords base64-encoded.
// That encoding is reversible: anyone who can read db.json can recover
// every password. It is kept only so existing libraries keep working.
//
//	legacy:  passwordHash = base64(password)          e.g. "QWRtaW5LZXkx"
//	bcrypt:  passwordHash = bcrypt(password, cost)    e.g. "$2a$12$N9qo8u..."
//
// Verify understands both formats regardless of the configured scheme, so
// a library can be switched to bcrypt at any time. With the bcrypt scheme,
// NeedsUpgrade reports legacy hashes and the login flow re-encodes them
// the first time the user signs in successfully.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names how new passwords are encoded.
type Scheme string

const (
	SchemeLegacy Scheme = "legacy"
	SchemeBcrypt Scheme = "bcrypt"
)

// defaultCost is the bcrypt work factor used when none is configured.
const defaultCost = 12

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService encodes and verifies passwords.
type PasswordService struct {
	scheme Scheme
	cost   int
}

// NewPasswordService returns a service encoding new passwords with scheme.
// A cost outside bcrypt's range falls back to the default.
func NewPasswordService(scheme Scheme, cost int) (*PasswordService, error) {
	switch scheme {
	case SchemeLegacy, SchemeBcrypt:
	case "":
		scheme = SchemeLegacy
	default:
		return nil, fmt.Errorf("auth: unknown password scheme %q", scheme)
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultCost
	}
	return &PasswordService{scheme: scheme, cost: cost}, nil
}

// NewPasswordServiceForTest returns a bcrypt service with cost 4 (the
// minimum) when scheme is bcrypt. Do NOT use in production.
func NewPasswordServiceForTest(scheme Scheme) *PasswordService {
	return &PasswordService{scheme: scheme, cost: bcrypt.MinCost}
}

func (p *PasswordService) Scheme() Scheme {
	return p.scheme
}

// Hash encodes plaintext with the configured scheme.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if p.scheme == SchemeLegacy {
		return base64.StdEncoding.EncodeToString([]byte(plaintext)), nil
	}

	if len(plaintext) > 72 {
		// bcrypt silently truncates longer input.
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks plaintext against a stored hash of either format.
// It returns ErrPasswordMismatch when they do not match. An empty hash
// matches nothing.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrPasswordMismatch
	}
	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
		if err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return ErrPasswordMismatch
			}
			return fmt.Errorf("auth: comparing password hash: %w", err)
		}
		return nil
	}

	want := base64.StdEncoding.EncodeToString([]byte(plaintext))
	if subtle.ConstantTimeCompare([]byte(hash), []byte(want)) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// NeedsUpgrade reports whether hash should be re-encoded with the
// configured scheme after a successful login.
func (p *PasswordService) NeedsUpgrade(hash string) bool {
	return p.scheme == SchemeBcrypt && !isBcrypt(hash)
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2")
}
