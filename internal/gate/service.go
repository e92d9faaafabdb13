// Package gate admits the single owner of the dashboard. A shared passphrase is exchanged
// for a signed session token; the vault API trusts any request carrying a valid one.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

var (
	ErrInvalidPassphrase = errors.New("invalid passphrase")
	ErrInvalidToken      = errors.New("invalid session token")
)

type Options struct {
	// Passphrase is either the plain passphrase or its bcrypt hash ("$2a$...").
	Passphrase string
	Secret     []byte
	TTL        time.Duration
	Revoker    Revoker
	// BcryptCost applies when Passphrase is hashed at startup; <= 0 selects the default.
	BcryptCost int
	Now        func() time.Time
}

type Service struct {
	hash    []byte
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func New(opts Options) (*Service, error) {
	if opts.Passphrase == "" {
		return nil, errors.New("gate passphrase is not configured")
	}
	if len(opts.Secret) < 16 {
		return nil, errors.New("gate secret must be at least 16 bytes")
	}
	s := &Service{secret: opts.Secret, ttl: opts.TTL, revoker: opts.Revoker, now: opts.Now}
	if strings.HasPrefix(opts.Passphrase, "$2") {
		if _, err := bcrypt.Cost([]byte(opts.Passphrase)); err != nil {
			return nil, fmt.Errorf("gate passphrase hash: %w", err)
		}
		s.hash = []byte(opts.Passphrase)
	} else {
		cost := opts.BcryptCost
		if cost <= 0 {
			cost = bcrypt.DefaultCost
		}
		h, err := bcrypt.GenerateFromPassword([]byte(opts.Passphrase), cost)
		if err != nil {
			return nil, fmt.Errorf("hash gate passphrase: %w", err)
		}
		s.hash = h
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.revoker == nil {
		s.revoker = NewMemoryRevoker()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// TTL returns the session lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Login exchanges the passphrase for a session token.
func (s *Service) Login(_ context.Context, passphrase string) (*Session, error) {
	if bcrypt.CompareHashAndPassword(s.hash, []byte(passphrase)) != nil {
		return nil, ErrInvalidPassphrase
	}
	tok, claims, err := issueToken(s.secret, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify implements middleware.Verifier.
func (s *Service) Verify(ctx context.Context, raw string) (map[string]interface{}, error) {
	claims, err := parseToken(s.secret, raw, s.now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return map[string]interface{}{
		"sub": claims.Subject,
		"jti": claims.ID,
		"exp": claims.ExpiresAt.Unix(),
	}, nil
}

// Logout revokes raw for the rest of its lifetime. Invalid or expired tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) error {
	claims, err := parseToken(s.secret, raw, s.now)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
