package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrPasswordRequired is returned when an encrypted keypair is loaded without a password.
	ErrPasswordRequired = errors.New("keypair is encrypted, a password is required")

	// ErrDecryptionFailed is returned for a wrong password or a damaged file.
	ErrDecryptionFailed = errors.New("keypair decryption failed")
)

const (
	encryptedVersion = 1
	cipherName       = "aes-256-gcm"
	kdfName          = "pbkdf2-sha256"

	saltLength       = 32
	gcmNonceLength   = 12
	aesKeyLength     = 32
	pbkdf2Iterations = 100000
)

// encryptedKeypair is the on-disk form of a password protected keypair.
// Ciphertext is base64 of gcm nonce || sealed key || tag.
type encryptedKeypair struct {
	Version    int    `json:"version"`
	PublicKey  string `json:"public_key"`
	Cipher     string `json:"cipher"`
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
	Ciphertext string `json:"ciphertext"`
}

// SaveEncryptedKeypair writes key to path sealed with a key derived from
// password. Existing files are not overwritten.
func SaveEncryptedKeypair(path string, key solana.PrivateKey, password string) error {
	if password == "" {
		return errors.New("password is empty")
	}
	if len(key) != solana.PrivateKeyLength {
		return errors.Errorf("key has %d bytes, expected %d", len(key), solana.PrivateKeyLength)
	}
	path = ExpandHome(path)
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("keypair file %s already exists", path)
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return errors.Wrap(err, "failed to generate salt")
	}
	gcm, err := newGCM(password, salt, pbkdf2Iterations)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcmNonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return errors.Wrap(err, "failed to generate nonce")
	}

	doc := encryptedKeypair{
		Version:    encryptedVersion,
		PublicKey:  key.PublicKey().String(),
		Cipher:     cipherName,
		KDF:        kdfName,
		Iterations: pbkdf2Iterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, key, nil)),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode keypair")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create keypair directory")
	}
	if err := os.WriteFile(path, data, keyFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write keypair to %s", path)
	}
	return nil
}

// LoadKeypairWithPassword reads a keypair written by SaveKeypair or
// SaveEncryptedKeypair. password is only used for encrypted files.
func LoadKeypairWithPassword(path, password string) (solana.PrivateKey, error) {
	if path == "" {
		return nil, errors.New("keypair path is empty")
	}
	data, err := os.ReadFile(filepath.Clean(ExpandHome(path)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load keypair from %s", path)
	}

	var doc encryptedKeypair
	if json.Unmarshal(data, &doc) != nil || doc.Version == 0 {
		return LoadKeypair(path)
	}
	if password == "" {
		return nil, errors.Wrapf(ErrPasswordRequired, "%s", path)
	}
	key, err := doc.open(password)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return key, nil
}

func (d *encryptedKeypair) open(password string) (solana.PrivateKey, error) {
	if d.Version != encryptedVersion || d.Cipher != cipherName || d.KDF != kdfName {
		return nil, errors.Errorf("unsupported keypair encryption %d/%s/%s", d.Version, d.Cipher, d.KDF)
	}
	salt, err := base64.StdEncoding.DecodeString(d.Salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	sealed, err := base64.StdEncoding.DecodeString(d.Ciphertext)
	if err != nil || len(sealed) < gcmNonceLength {
		return nil, ErrDecryptionFailed
	}
	gcm, err := newGCM(password, salt, d.Iterations)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, sealed[:gcmNonceLength], sealed[gcmNonceLength:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	key := solana.PrivateKey(plain)
	if len(key) != solana.PrivateKeyLength || key.PublicKey().String() != d.PublicKey {
		return nil, ErrDecryptionFailed
	}
	return key, nil
}

func newGCM(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	if iterations <= 0 {
		return nil, ErrDecryptionFailed
	}
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, iterations, aesKeyLength, sha256.New))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCM")
	}
	return gcm, nil
}
