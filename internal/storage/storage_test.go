package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "logos/tema.png", strings.NewReader("png-bytes")))

	got, err := ReadString(ctx, store, "/logos/tema.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", got)

	require.NoError(t, store.Delete(ctx, "logos/tema.png"))
	_, err = store.Open(ctx, "logos/tema.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "logos/tema.png"))
}

func TestCleanKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "../secret", "a/../../b", "..", `a\b`} {
		_, err := CleanKey(key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
	got, err := CleanKey("email-templates//auth/./x.html")
	require.NoError(t, err)
	assert.Equal(t, "email-templates/auth/x.html", got)
}

func TestSignerVerify(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewSigner("http://localhost:8080/files", []byte("k"))
	s.now = func() time.Time { return now }

	raw, err := s.SignedURL("logos/tema.png", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, "http://localhost:8080/files/logos/tema.png?"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	exp, sig := u.Query().Get("exp"), u.Query().Get("sig")

	assert.NoError(t, s.Verify("logos/tema.png", exp, sig))
	assert.ErrorIs(t, s.Verify("logos/other.png", exp, sig), ErrBadSignature)

	s.now = func() time.Time { return now.Add(2 * time.Hour) }
	err = s.Verify("logos/tema.png", exp, sig)
	assert.True(t, errors.Is(err, ErrExpired))
}
