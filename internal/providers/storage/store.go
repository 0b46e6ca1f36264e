package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound   = errors.New("key not found")
	ErrInvalidKey = errors.New("invalid storage key")
)

// Store is a string-keyed byte store. Preferences and the keychain are
// both Stores; callers layer JSON encoding and namespacing on top.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Key namespaces
const (
	NamespaceSettings = "settings"
	NamespaceStorage  = "storage"
	NamespaceKeychain = "keychain"
)

// Package categories
const (
	CategorySources  = "sources"
	CategoryTrackers = "trackers"
)

// idEscaper keeps package ids free of the key separator, so one package's
// prefix never covers another package's keys
var idEscaper = strings.NewReplacer("%", "%25", ".", "%2E")

// Key builds a namespaced key: <namespace>.<category>.<id>.<key>. Dots in
// id are escaped; key may contain any characters.
func Key(namespace, category, id, key string) string {
	return strings.Join([]string{namespace, category, idEscaper.Replace(id), key}, ".")
}

// PackagePrefixes returns every key prefix owned by one package
func PackagePrefixes(category, id string) []string {
	return []string{
		Key(NamespaceSettings, category, id, ""),
		Key(NamespaceStorage, category, id, ""),
		Key(NamespaceKeychain, category, id, ""),
	}
}

// DeletePrefix removes every key under prefix
func DeletePrefix(ctx context.Context, s Store, prefix string) error {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
