package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchivePutGet(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, archive.Put("ledger/ledger-all-20240301.csv", []byte("a,b\n")))
	data, err := archive.Get("ledger/ledger-all-20240301.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	_, err = archive.Get("ledger/missing.csv")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestArchiveRejectsEscapingNames(t *testing.T) {
	archive, err := NewArchive(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../x.csv", "/etc/passwd", "ledger/../../x"} {
		assert.ErrorIs(t, archive.Put(name, []byte("x")), ErrInvalidName, name)
	}
}

func TestArchivePrune(t *testing.T) {
	root := t.TempDir()
	archive, err := NewArchive(root)
	require.NoError(t, err)
	require.NoError(t, archive.Put("ledger/old.csv", []byte("old")))
	require.NoError(t, archive.Put("ledger/new.csv", []byte("new")))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "ledger", "old.csv"), old, old))

	removed, err := archive.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"ledger/old.csv"}, removed)

	_, err = archive.Get("ledger/new.csv")
	assert.NoError(t, err)
}

func TestLinkSignerRoundTrip(t *testing.T) {
	signer := NewLinkSigner("secret", time.Hour)
	token, expiresAt, err := signer.Sign("ledger/ledger-all-20240301.pdf")
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	name, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ledger/ledger-all-20240301.pdf", name)
}

func TestLinkSignerRejectsTamperingAndExpiry(t *testing.T) {
	signer := NewLinkSigner("secret", time.Hour)
	token, _, err := signer.Sign("ledger/a.csv")
	require.NoError(t, err)

	_, err = NewLinkSigner("other", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrTokenSignature)

	_, err = signer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrTokenMalformed)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestLinkSignerRequiresSecret(t *testing.T) {
	_, _, err := NewLinkSigner("", time.Hour).Sign("ledger/a.csv")
	assert.Error(t, err)
}
