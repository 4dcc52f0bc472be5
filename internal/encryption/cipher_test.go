package encryption

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCipher() *Cipher {
	return NewCipher(PassphraseKey("test passphrase"))
}

func encryptBytes(t *testing.T, c *Cipher, plain []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	require.NoError(t, os.WriteFile(path, plain, 0o640))
	require.NoError(t, c.Encrypt(context.Background(), path))
	return path
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	big := make([]byte, 3<<20+17)
	_, err := rand.Read(big)
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":  {},
		"one":    {0x42},
		"block":  bytes.Repeat([]byte{0xAB}, IVSize),
		"text":   []byte("receipts and reports"),
		"random": big,
	}
	c := newTestCipher()
	for name, plain := range cases {
		t.Run(name, func(t *testing.T) {
			path := encryptBytes(t, c, plain)

			info, err := os.Stat(path)
			require.NoError(t, err)
			require.Equal(t, int64(len(plain)+IVSize+TagSize), info.Size())

			out := filepath.Join(t.TempDir(), "plain.zip")
			require.NoError(t, c.Decrypt(context.Background(), path, out))
			got, err := os.ReadFile(out)
			require.NoError(t, err)
			require.True(t, bytes.Equal(plain, got))
		})
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	c := newTestCipher()
	plain := []byte("same input twice")

	a, err := os.ReadFile(encryptBytes(t, c, plain))
	require.NoError(t, err)
	b, err := os.ReadFile(encryptBytes(t, c, plain))
	require.NoError(t, err)

	require.NotEqual(t, a[:IVSize], b[:IVSize])
	require.NotEqual(t, a, b)
}

func TestEncrypt_LeavesNoTempFiles(t *testing.T) {
	c := newTestCipher()
	path := encryptBytes(t, c, []byte("data"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestDecrypt_DetectsTampering(t *testing.T) {
	c := newTestCipher()
	path := encryptBytes(t, c, []byte("ledger rows"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[IVSize+2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o640))

	outDir := t.TempDir()
	out := filepath.Join(outDir, "plain")
	err = c.Decrypt(context.Background(), path, out)
	require.ErrorIs(t, err, ErrDecryptFailed)
	require.NoFileExists(t, out)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDecrypt_WrongKey(t *testing.T) {
	path := encryptBytes(t, newTestCipher(), []byte("secret"))

	other := NewCipher(PassphraseKey("another passphrase"))
	err := other.Decrypt(context.Background(), path, filepath.Join(t.TempDir(), "out"))
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecrypt_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short")
	require.NoError(t, os.WriteFile(path, []byte("tiny"), 0o640))

	err := newTestCipher().Decrypt(context.Background(), path, filepath.Join(t.TempDir(), "out"))
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecrypt_MissingSource(t *testing.T) {
	err := newTestCipher().Decrypt(context.Background(), filepath.Join(t.TempDir(), "nope"), filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestKeyProviders(t *testing.T) {
	_, err := PassphraseKey("").Key(context.Background())
	require.ErrorIs(t, err, ErrEmptyPassphrase)

	k, err := PassphraseKey("x").Key(context.Background())
	require.NoError(t, err)
	require.Len(t, k, KeySize)

	_, err = StaticKey([]byte("short")).Key(context.Background())
	require.ErrorIs(t, err, ErrInvalidKey)

	err = NewCipher(PassphraseKey("")).Encrypt(context.Background(), filepath.Join(t.TempDir(), "x"))
	require.ErrorIs(t, err, ErrEmptyPassphrase)
}
