package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "taskboard"

// Well-known credential keys.
const (
	// KeyAccessToken holds the platform-issued JWT access token.
	KeyAccessToken = "platform-access-token"

	// KeyIMAPPassword holds the password for the capture mailbox.
	KeyIMAPPassword = "imap-password"
)

// EnvAccessToken overrides the stored access token when set. Useful on
// hosts without a usable keyring backend.
const EnvAccessToken = "TASKBOARD_ACCESS_TOKEN"

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
		FileDir:                  "~/.config/taskboard/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("taskboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// AccessToken returns the platform access token, preferring the
// keyring and falling back to the environment. An empty string with a
// nil error means no token is stored anywhere.
func AccessToken() (string, error) {
	token, err := Get(KeyAccessToken)
	if err == nil && token != "" {
		return token, nil
	}
	if env := os.Getenv(EnvAccessToken); env != "" {
		return env, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return "", err
	}
	return "", nil
}
