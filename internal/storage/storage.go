// Package storage provides the client-side key/value store the web layer
// keeps its session token in.
package storage

import (
	"errors"
	"fmt"
	"strings"
)

// TokenKey is the key the session token is stored under.
const TokenKey = "token"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a string key/value store with local-storage semantics.
// Remove on an absent key is not an error.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

const (
	KindMemory  = "memory"
	KindFile    = "file"
	KindSQLite  = "sqlite"
	KindKeyring = "keyring"
)

// Open returns the backend named by kind. path is used by the file and
// sqlite backends and ignored otherwise.
func Open(kind, path string) (Storage, error) {
	switch strings.ToLower(kind) {
	case KindMemory:
		return NewMemory(), nil
	case KindFile, "":
		if path == "" {
			return nil, fmt.Errorf("file storage requires a path")
		}
		return NewFile(path), nil
	case KindSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return NewSQLite(path)
	case KindKeyring:
		return NewKeyring(keyringService), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want memory, file, sqlite or keyring)", kind)
	}
}

// LoadToken returns the stored session token, or "" when none is stored.
func LoadToken(s Storage) (string, error) {
	token, err := s.Get(TokenKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// SaveToken persists the session token.
func SaveToken(s Storage, token string) error {
	if err := s.Set(TokenKey, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// DeleteToken removes the session token.
func DeleteToken(s Storage) error {
	if err := s.Remove(TokenKey); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
