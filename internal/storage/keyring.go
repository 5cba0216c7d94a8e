package storage

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "webgate"

// Keyring stores each key as a separate secret in the OS keychain/credential manager
type Keyring struct {
	service string
}

func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

func (k *Keyring) Get(key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read keyring entry: %w", err)
	}
	return v, nil
}

func (k *Keyring) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("failed to write keyring entry: %w", err)
	}
	return nil
}

func (k *Keyring) Remove(key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}
