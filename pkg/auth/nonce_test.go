package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceRoundTrip(t *testing.T) {
	m := NewNonceManager(NonceConfig{Secret: "s3cret", ExpireTime: time.Hour})

	nonce, expires, err := m.Issue(ContactFormAction)
	require.NoError(t, err)
	assert.NotEmpty(t, nonce)
	assert.True(t, expires.After(time.Now()))

	assert.NoError(t, m.Verify(nonce, ContactFormAction))
	assert.ErrorIs(t, m.Verify(nonce, "other_action"), ErrActionMismatch)
}

func TestNonceRejectsTampered(t *testing.T) {
	m := NewNonceManager(NonceConfig{Secret: "s3cret"})
	other := NewNonceManager(NonceConfig{Secret: "different"})

	nonce, _, err := other.Issue(ContactFormAction)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Verify(nonce, ContactFormAction), ErrInvalidNonce)
	assert.ErrorIs(t, m.Verify("", ContactFormAction), ErrInvalidNonce)
	assert.ErrorIs(t, m.Verify("not-a-token", ContactFormAction), ErrInvalidNonce)
}

func TestNonceExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewNonceManager(NonceConfig{Secret: "s3cret", ExpireTime: time.Minute}).
		WithClock(func() time.Time { return now })

	nonce, _, err := m.Issue(ContactFormAction)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, m.Verify(nonce, ContactFormAction), ErrInvalidNonce)
}
