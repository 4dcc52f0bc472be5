// Package encryption encrypts snapshot archives in place and decrypts them
// for restore.
//
// File layout:
//
//	IV (16 bytes) || AES-256-CTR(plaintext) || HMAC-SHA256(IV || ciphertext) (32 bytes)
//
// A fresh IV is drawn from crypto/rand for every Encrypt call. The AES and
// HMAC keys are expanded from the provider's 32-byte master key with
// HKDF-SHA256, so one secret never serves two primitives.
package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"

	"github.com/kebairia/snapback/internal/fsutil"
)

const (
	// IVSize is the length of the in-band IV prefix.
	IVSize = aes.BlockSize
	// TagSize is the length of the HMAC-SHA256 trailer.
	TagSize = sha256.Size
	// KeySize is the master key length every KeyProvider must return.
	KeySize = 32

	hkdfSalt = "snapback-archive"
	hkdfInfo = "archive-encryption-v1"
)

var (
	// ErrDecryptFailed is returned when a file is truncated or its
	// authentication tag does not match.
	ErrDecryptFailed = errors.New("decryption failed: archive truncated or tampered")

	// ErrInvalidKey is returned when a provider yields a key of the wrong size.
	ErrInvalidKey = errors.New("invalid encryption key")
)

// KeyProvider supplies the 32-byte master key.
type KeyProvider interface {
	Key(ctx context.Context) ([]byte, error)
}

// Cipher encrypts and decrypts archive files.
type Cipher struct {
	keys KeyProvider
}

// NewCipher returns a Cipher drawing its key from provider on every call.
func NewCipher(provider KeyProvider) *Cipher {
	return &Cipher{keys: provider}
}

// subkeys expands the master key into the AES and HMAC keys.
func (c *Cipher) subkeys(ctx context.Context) (encKey, macKey []byte, err error) {
	master, err := c.keys.Key(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load key: %w", err)
	}
	if len(master) != KeySize {
		return nil, nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, KeySize, len(master))
	}
	kdf := hkdf.New(sha256.New, master, []byte(hkdfSalt), []byte(hkdfInfo))
	keys := make([]byte, 2*KeySize)
	if _, err := io.ReadFull(kdf, keys); err != nil {
		return nil, nil, fmt.Errorf("derive keys: %w", err)
	}
	return keys[:KeySize], keys[KeySize:], nil
}

// Encrypt replaces the plaintext file at path with its ciphertext. The
// ciphertext is written to a sibling temp file first and renamed over path
// only once complete.
//
//nolint:gosec // G304: path is an archive inside the backups root
func (c *Cipher) Encrypt(ctx context.Context, path string) (err error) {
	encKey, macKey, err := c.subkeys(ctx)
	if err != nil {
		return err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return fmt.Errorf("create AES cipher: %w", err)
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open plaintext: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".enc-*")
	if err != nil {
		return fmt.Errorf("create ciphertext: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()           //nolint:errcheck // Best effort cleanup on error
			os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return fmt.Errorf("generate IV: %w", err)
	}
	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv) //nolint:errcheck // hash writes never fail

	if _, err := tmp.Write(iv); err != nil {
		return fmt.Errorf("write IV: %w", err)
	}
	sw := cipher.StreamWriter{S: cipher.NewCTR(block, iv), W: io.MultiWriter(tmp, mac)}
	if _, err := io.Copy(sw, fsutil.NewReader(ctx, in)); err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	if _, err := tmp.Write(mac.Sum(nil)); err != nil {
		return fmt.Errorf("write tag: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync ciphertext: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ciphertext: %w", err)
	}
	in.Close() //nolint:errcheck // released before the rename

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace plaintext: %w", err)
	}
	return nil
}

// Decrypt writes the plaintext of src to dst. dst only appears once the
// whole stream has been decrypted and its tag verified.
//
//nolint:gosec // G304: src is a caller-supplied archive path
func (c *Cipher) Decrypt(ctx context.Context, src, dst string) (err error) {
	encKey, macKey, err := c.subkeys(ctx)
	if err != nil {
		return err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return fmt.Errorf("create AES cipher: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open ciphertext: %w", err)
	}
	defer in.Close() //nolint:errcheck // read-only

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat ciphertext: %w", err)
	}
	bodySize := info.Size() - IVSize - TagSize
	if bodySize < 0 {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrDecryptFailed, info.Size())
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(in, iv); err != nil {
		return fmt.Errorf("read IV: %w", err)
	}
	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv) //nolint:errcheck // hash writes never fail

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".dec-*")
	if err != nil {
		return fmt.Errorf("create plaintext: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()           //nolint:errcheck // Best effort cleanup on error
			os.Remove(tmp.Name()) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	body := io.TeeReader(io.LimitReader(in, bodySize), mac)
	sr := cipher.StreamReader{S: cipher.NewCTR(block, iv), R: fsutil.NewReader(ctx, body)}
	n, err := io.Copy(tmp, sr)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}
	if n != bodySize {
		return fmt.Errorf("%w: short body", ErrDecryptFailed)
	}

	tag := make([]byte, TagSize)
	if _, err := io.ReadFull(in, tag); err != nil {
		return fmt.Errorf("read tag: %w", err)
	}
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return ErrDecryptFailed
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync plaintext: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close plaintext: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("move plaintext into place: %w", err)
	}
	return nil
}
