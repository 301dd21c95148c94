package keystore

import (
	"errors"
	"runtime"
	"sort"
	"sync"

	"github.com/99designs/keyring"
)

// KeyringKeystore stores keys in the OS keychain (macOS Keychain, Windows
// Credential Manager, Secret Service, pass) via 99designs/keyring.
type KeyringKeystore struct {
	mu   sync.Mutex
	ring keyring.Keyring
}

// NewKeyringKeystore opens the OS keychain under ServiceName.
func NewKeyringKeystore() (*KeyringKeystore, error) {
	// The file backend is excluded; FileKeystore covers that case.
	cfg := keyring.Config{
		ServiceName: ServiceName,
		PassPrefix:  ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.KeyCtlBackend,
			keyring.PassBackend,
		},
	}
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewKeyringKeystoreFrom(ring), nil
}

// NewKeyringKeystoreFrom wraps an already opened keyring.
func NewKeyringKeystoreFrom(ring keyring.Keyring) *KeyringKeystore {
	return &KeyringKeystore{ring: ring}
}

// Set stores a key-value pair.
func (k *KeyringKeystore) Set(name, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.ring.Set(keyring.Item{
		Key:   name,
		Data:  []byte(value),
		Label: ServiceName + ": " + name,
	})
}

// Get retrieves a value by name.
func (k *KeyringKeystore) Get(name string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	item, err := k.ring.Get(name)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", &ErrKeyNotFound{Name: name}
		}
		return "", err
	}
	return string(item.Data), nil
}

// Delete removes a key by name.
func (k *KeyringKeystore) Delete(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	// Some backends report success when removing a missing item.
	if _, err := k.ring.Get(name); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return &ErrKeyNotFound{Name: name}
		}
		return err
	}
	return k.ring.Remove(name)
}

// List returns all stored key names in sorted order.
func (k *KeyringKeystore) List() ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	names, err := k.ring.Keys()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

var _ Keystore = (*KeyringKeystore)(nil)
