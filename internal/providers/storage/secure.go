package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

var ErrDecrypt = errors.New("keychain value could not be decrypted")

const (
	saltKey   = "__keychain.salt"
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// SecureStore encrypts every value with NaCl secretbox before handing it
// to an inner store. The key is derived from a secret with Argon2id and a
// per-store random salt kept alongside the data.
type SecureStore struct {
	inner Store
	key   [keySize]byte
}

// NewSecureStore wraps inner, deriving the encryption key from secret
func NewSecureStore(ctx context.Context, inner Store, secret []byte) (*SecureStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("keychain secret is empty")
	}

	salt, err := inner.Get(ctx, saltKey)
	if errors.Is(err, ErrNotFound) {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		if err := inner.Set(ctx, saltKey, salt); err != nil {
			return nil, fmt.Errorf("failed to store salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	s := &SecureStore{inner: inner}
	copy(s.key[:], argon2.IDKey(secret, salt, 1, 64*1024, 4, keySize))
	return s, nil
}

func (s *SecureStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func (s *SecureStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if key == saltKey {
		return ErrInvalidKey
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, &s.key)
	return s.inner.Set(ctx, key, sealed)
}

func (s *SecureStore) Delete(ctx context.Context, key string) error {
	if key == saltKey {
		return ErrInvalidKey
	}
	return s.inner.Delete(ctx, key)
}

func (s *SecureStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if k != saltKey {
			out = append(out, k)
		}
	}
	return out, nil
}

// LoadOrCreateSecret reads a keychain secret from path, generating and
// persisting a random one with owner-only permissions on first use.
func LoadOrCreateSecret(path string) ([]byte, error) {
	secret, err := os.ReadFile(path)
	if err == nil && len(secret) > 0 {
		return secret, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read keychain secret: %w", err)
	}

	secret = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("failed to generate keychain secret: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keychain dir: %w", err)
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write keychain secret: %w", err)
	}
	return secret, nil
}
