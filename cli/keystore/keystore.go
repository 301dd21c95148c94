// Package keystore provides secure storage for Singlebase access keys.
//
// Two backends exist: an encrypted file (the default) and the OS keychain
// through 99designs/keyring. Entries are named after config profiles, or
// after a profile's api_key_ref.
package keystore

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ServiceName namespaces entries in the OS keychain.
const ServiceName = "singlebase"

// EnvPassphrase, when set, is the master passphrase for the file keystore.
const EnvPassphrase = "SINGLEBASE_KEYSTORE_PASSPHRASE"

// Backend names accepted by Open.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
)

// Keystore defines the interface for secure key storage.
type Keystore interface {
	// Set stores a key-value pair.
	Set(name, value string) error
	// Get retrieves a value by name. Returns error if not found.
	Get(name string) (string, error)
	// Delete removes a key by name.
	Delete(name string) error
	// List returns all stored key names, sorted.
	List() ([]string, error)
}

// ErrKeyNotFound is returned when a requested key does not exist.
type ErrKeyNotFound struct {
	Name string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Name
}

// IsNotFound reports whether err is an *ErrKeyNotFound.
func IsNotFound(err error) bool {
	var nf *ErrKeyNotFound
	return errors.As(err, &nf)
}

// MasterKeySource supplies the secret the file keystore derives its
// encryption key from.
type MasterKeySource interface {
	GetMasterKey() ([]byte, error)
}

// MasterKeyFunc adapts a function to MasterKeySource.
type MasterKeyFunc func() ([]byte, error)

// GetMasterKey calls f.
func (f MasterKeyFunc) GetMasterKey() ([]byte, error) { return f() }

// StaticMasterKey returns a source that always yields key.
func StaticMasterKey(key []byte) MasterKeySource {
	return MasterKeyFunc(func() ([]byte, error) {
		if len(key) == 0 {
			return nil, errors.New("keystore: empty master key")
		}
		return key, nil
	})
}

// DefaultMasterKey uses SINGLEBASE_KEYSTORE_PASSPHRASE when set and falls
// back to machine-bound material (hostname and user). The fallback only
// keeps keys out of plain text; set a passphrase on shared machines.
func DefaultMasterKey() MasterKeySource {
	return MasterKeyFunc(func() ([]byte, error) {
		if p := os.Getenv(EnvPassphrase); p != "" {
			return []byte(p), nil
		}
		return machineKey(), nil
	})
}

func machineKey() []byte {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte(hostname + ":" + username + ":" + ServiceName + "-keystore"))
	return sum[:]
}

// DefaultKeystorePath returns the default keystore file path.
// - macOS/Linux: ~/.singlebase/keys.enc
// - Windows: %USERPROFILE%\.singlebase\keys.enc
func DefaultKeystorePath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "keys.enc"
	}

	return filepath.Join(homeDir, ".singlebase", "keys.enc")
}

// Open returns the keystore for backend. An empty backend selects the
// encrypted file at DefaultKeystorePath.
func Open(backend string) (Keystore, error) {
	switch backend {
	case "", BackendFile:
		return NewFileKeystore(DefaultKeystorePath(), DefaultMasterKey())
	case BackendKeyring:
		return NewKeyringKeystore()
	default:
		return nil, fmt.Errorf("unknown keystore backend %q (want %s or %s)", backend, BackendFile, BackendKeyring)
	}
}

// NewKeystore opens the default file keystore.
func NewKeystore() (Keystore, error) {
	return Open(BackendFile)
}
