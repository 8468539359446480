package pdf

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/testutil"
)

func encryptedCopy(t *testing.T, in string, creds Credentials) string {
	t.Helper()
	out := filepath.Join(t.TempDir(), "locked.pdf")
	require.NoError(t, api.EncryptFile(in, out, creds.configuration()))
	return out
}

func TestCredentials(t *testing.T) {
	assert.True(t, Credentials{}.Empty())
	assert.False(t, Credentials{OwnerPassword: "o"}.Empty())

	conf := Credentials{UserPassword: "u", OwnerPassword: "o"}.configuration()
	assert.Equal(t, "u", conf.UserPW)
	assert.Equal(t, "o", conf.OwnerPW)
}

func TestIsEncryptionError(t *testing.T) {
	assert.True(t, isEncryptionError(errors.New("pdfcpu: please provide the correct password")))
	assert.True(t, isEncryptionError(errors.New("Encrypted document")))
	assert.False(t, isEncryptionError(errors.New("unexpected EOF")))
}

func TestIsEncrypted(t *testing.T) {
	plain := writeSceneReport(t, 1)
	encrypted, err := IsEncrypted(plain)
	require.NoError(t, err)
	assert.False(t, encrypted)

	locked := encryptedCopy(t, plain, Credentials{UserPassword: "user", OwnerPassword: "owner"})
	encrypted, err = IsEncrypted(locked)
	require.NoError(t, err)
	assert.True(t, encrypted)

	_, err = IsEncrypted(filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
}

func TestDecrypt(t *testing.T) {
	plain := writeSceneReport(t, 1)

	t.Run("plain file is returned as is", func(t *testing.T) {
		path, cleanup, err := Decrypt(plain, Credentials{})
		require.NoError(t, err)
		defer cleanup()
		assert.Equal(t, plain, path)
	})

	creds := Credentials{UserPassword: "user", OwnerPassword: "owner"}
	locked := encryptedCopy(t, plain, creds)

	t.Run("missing password", func(t *testing.T) {
		_, cleanup, err := Decrypt(locked, Credentials{})
		defer cleanup()
		require.ErrorIs(t, err, ErrPasswordRequired)
	})

	t.Run("correct password", func(t *testing.T) {
		path, cleanup, err := Decrypt(locked, creds)
		require.NoError(t, err)
		assert.NotEqual(t, locked, path)
		assert.True(t, testutil.FileExists(path))

		encrypted, err := IsEncrypted(path)
		require.NoError(t, err)
		assert.False(t, encrypted)

		cleanup()
		assert.False(t, testutil.FileExists(path))
	})
}
