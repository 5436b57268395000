package tokens_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krekz/maulocum-sub000/internal/tokens"
)

func TestNewIssuer(t *testing.T) {
	t.Parallel()

	_, err := tokens.NewIssuer("", time.Hour)
	require.ErrorIs(t, err, tokens.ErrEmptySecret)

	i, err := tokens.NewIssuer("secret", 0)
	require.NoError(t, err)
	assert.Equal(t, tokens.DefaultTTL, i.TTL())
}

func TestIssuer_Issue(t *testing.T) {
	t.Parallel()

	i, err := tokens.NewIssuer("secret", 0)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a, err := i.Issue(now)
	require.NoError(t, err)
	b, err := i.Issue(now)
	require.NoError(t, err)

	assert.Len(t, a.Raw, 64)
	assert.True(t, tokens.WellFormed(a.Raw))
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.NotEqual(t, a.Raw, a.Digest)
	assert.Equal(t, now.Add(24*time.Hour), a.ExpiresAt)
	assert.Equal(t, a.Digest, i.Digest(a.Raw))
	assert.NotEqual(t, a.Digest, i.Digest(b.Raw))
}

func TestIssuer_DigestDependsOnSecret(t *testing.T) {
	t.Parallel()

	a, err := tokens.NewIssuer("one", 0)
	require.NoError(t, err)
	b, err := tokens.NewIssuer("two", 0)
	require.NoError(t, err)

	assert.NotEqual(t, a.Digest("abc"), b.Digest("abc"))
}

func TestWellFormed(t *testing.T) {
	t.Parallel()

	assert.False(t, tokens.WellFormed(""))
	assert.False(t, tokens.WellFormed("zz"))
	assert.False(t, tokens.WellFormed(string(make([]byte, 64))))
}

func TestConfirmURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://app.example.com/confirm/abc", tokens.ConfirmURL("https://app.example.com/", "abc"))
}
