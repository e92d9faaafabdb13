package vault

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Decision is the outcome of a PIN check.
type Decision int

const (
	Denied Decision = iota
	Granted
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

// AttemptLimiter throttles failed PIN attempts per key. Peek checks the allowance
// without using it; Allow records one failure.
type AttemptLimiter interface {
	Peek(ctx context.Context, key string) (bool, error)
	Allow(ctx context.Context, key string) (bool, error)
}

// Guard issues and verifies folder PINs. Lock state is evaluated per request and is
// never persisted on the folder.
type Guard struct {
	limiter AttemptLimiter
	cost    int
}

// NewGuard returns a Guard. limiter may be nil to disable throttling; cost <= 0 selects
// bcrypt.DefaultCost.
func NewGuard(limiter AttemptLimiter, cost int) *Guard {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Guard{limiter: limiter, cost: cost}
}

// HashPIN validates and hashes a PIN. An empty PIN yields an empty hash.
func (g *Guard) HashPIN(pin string) (string, error) {
	if err := ValidatePIN(pin); err != nil {
		return "", err
	}
	if pin == "" {
		return "", nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), g.cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(h), nil
}

// Open decides whether the caller may enter a folder. Unprotected folders are always
// granted. Once a folder has used up its failure allowance every attempt is denied with
// ErrThrottled without consulting the hash. Only wrong PINs count against the allowance;
// an empty PIN is a missing credential, not a guess.
func (g *Guard) Open(ctx context.Context, folder *Item, supplied string) (Decision, error) {
	if !folder.Protected() {
		return Granted, nil
	}
	key := "pin:" + folder.ID
	if g.limiter != nil {
		ok, err := g.limiter.Peek(ctx, key)
		if err != nil {
			return Denied, fmt.Errorf("pin attempt limiter: %w", err)
		}
		if !ok {
			return Denied, &Error{Code: CodeThrottled, Message: "too many PIN attempts"}
		}
	}
	if supplied == "" {
		return Denied, nil
	}
	// bcrypt compares in constant time
	if ValidatePIN(supplied) == nil && bcrypt.CompareHashAndPassword([]byte(folder.PinHash), []byte(supplied)) == nil {
		return Granted, nil
	}
	if g.limiter != nil {
		if _, err := g.limiter.Allow(ctx, key); err != nil {
			return Denied, fmt.Errorf("record pin failure: %w", err)
		}
	}
	return Denied, nil
}

// AuthorizeDelete applies Open semantics to the item being deleted. Files and
// unprotected folders are always granted.
func (g *Guard) AuthorizeDelete(ctx context.Context, it *Item, supplied string) (Decision, error) {
	if !it.IsFolder() {
		return Granted, nil
	}
	return g.Open(ctx, it, supplied)
}
