package gate

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestLoginVerifyLogout(t *testing.T) {
	ctx := context.Background()
	svc, err := New(Options{Passphrase: "correct horse", Secret: testSecret, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "wrong")
	require.ErrorIs(t, err, ErrInvalidPassphrase)

	sess, err := svc.Login(ctx, "correct horse")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	require.WithinDuration(t, time.Now().Add(DefaultTTL), sess.ExpiresAt, 5*time.Second)

	claims, err := svc.Verify(ctx, sess.Token)
	require.NoError(t, err)
	require.Equal(t, Subject, claims["sub"])
	require.NotEmpty(t, claims["jti"])

	require.NoError(t, svc.Logout(ctx, sess.Token))
	_, err = svc.Verify(ctx, sess.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, svc.Logout(ctx, "garbage"), "unknown tokens are ignored")
}

func TestVerifyRejectsForeignAndExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	svc, err := New(Options{Passphrase: "p", Secret: testSecret, TTL: time.Hour, BcryptCost: bcrypt.MinCost, Now: func() time.Time { return now }})
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "p")
	require.NoError(t, err)

	other, err := New(Options{Passphrase: "p", Secret: []byte("another-secret-of-32-bytes-long!"), BcryptCost: bcrypt.MinCost, Now: func() time.Time { return now }})
	require.NoError(t, err)
	_, err = other.Verify(ctx, sess.Token)
	require.ErrorIs(t, err, ErrInvalidToken)

	now = now.Add(2 * time.Hour)
	_, err = svc.Verify(ctx, sess.Token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewAcceptsHashAndValidates(t *testing.T) {
	h, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := New(Options{Passphrase: string(h), Secret: testSecret})
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), "s3cret")
	require.NoError(t, err)

	_, err = New(Options{Secret: testSecret})
	require.Error(t, err)
	_, err = New(Options{Passphrase: "x", Secret: []byte("short")})
	require.Error(t, err)
}

func TestRedisRevoker(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	r := NewRedisRevoker(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()

	ok, err := r.IsRevoked(ctx, "j1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Revoke(ctx, "j1", 5*time.Second))
	ok, err = r.IsRevoked(ctx, "j1")
	require.NoError(t, err)
	require.True(t, ok)

	m.FastForward(6 * time.Second)
	ok, err = r.IsRevoked(ctx, "j1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryRevokerExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	r := NewMemoryRevoker()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "j", time.Minute))
	ok, _ := r.IsRevoked(ctx, "j")
	require.True(t, ok)
	now = now.Add(time.Minute)
	ok, _ = r.IsRevoked(ctx, "j")
	require.False(t, ok)
}
