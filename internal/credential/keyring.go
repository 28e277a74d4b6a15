package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
)

const serviceName = "vendorauto"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = keyring.ErrKeyNotFound

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/vendorauto/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("vendorauto-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// MailKey is the keyring key holding the mail password of username.
func MailKey(username string) string {
	return "mail-" + strings.ToLower(strings.TrimSpace(username))
}

// Vault reads and writes credentials in a keyring.
type Vault struct {
	ring keyring.Keyring
}

// Open returns a vault backed by the system keyring.
func Open() (*Vault, error) {
	ring, err := openKeyring()
	if err != nil {
		return nil, err
	}
	return &Vault{ring: ring}, nil
}

// NewVault wraps an already opened keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// Get retrieves a credential value by key.
func (v *Vault) Get(key string) (string, error) {
	item, err := v.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (v *Vault) Set(key string, value string) error {
	err := v.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func (v *Vault) Delete(key string) error {
	err := v.ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// FillMailPassword sets cfg.Password from the vault when the configuration
// and environment left it empty. A missing keyring entry is not an error;
// the connection attempt reports the failed login instead.
func (v *Vault) FillMailPassword(cfg *model.MailConfig) error {
	if cfg.Password != "" || cfg.Username == "" {
		return nil
	}

	pw, err := v.Get(MailKey(cfg.Username))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	cfg.Password = pw
	return nil
}
