// Package keys loads and stores ed25519 keypairs in the solana-keygen JSON
// format (a JSON array of the 64 secret key bytes).
package keys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const keyFilePermissions = 0o600

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// LoadKeypair reads a solana-keygen keypair file.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	if path == "" {
		return nil, errors.New("keypair path is empty")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(ExpandHome(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load keypair from %s", path)
	}
	if len(key) != 64 {
		return nil, errors.Errorf("keypair %s has %d bytes, expected 64", path, len(key))
	}
	return key, nil
}

// SaveKeypair writes key to path in the solana-keygen format, creating parent
// directories as needed. Existing files are not overwritten.
func SaveKeypair(path string, key solana.PrivateKey) error {
	path = ExpandHome(path)
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("keypair file %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create keypair directory")
	}

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	if err != nil {
		return errors.Wrap(err, "failed to encode keypair")
	}
	if err := os.WriteFile(path, data, keyFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write keypair to %s", path)
	}
	return nil
}
