package svm

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var (
	// ErrSignerMismatch is returned when the fee payer key does not match the transaction fee payer.
	ErrSignerMismatch = errors.New("fee payer key does not match transaction fee payer")

	// ErrMissingSignature is returned by SignComplete when a required signer is absent.
	ErrMissingSignature = errors.New("missing required signature")

	// ErrInvalidKey is returned for a private key that is not 64 bytes long.
	ErrInvalidKey = errors.New("invalid private key")
)

// CheckKey returns ErrInvalidKey unless key has the ed25519 private key length.
func CheckKey(key solana.PrivateKey) error {
	if len(key) != solana.PrivateKeyLength {
		return errors.Wrapf(ErrInvalidKey, "got %d bytes, want %d", len(key), solana.PrivateKeyLength)
	}
	return nil
}

// Sign signs tx with the fee payer and any auxiliary keys that are required
// signers. Required signers without a key keep a zero signature so they can
// be added later. Keys that are not required signers are ignored.
func Sign(tx *solana.Transaction, feePayer solana.PrivateKey, auxiliary ...solana.PrivateKey) error {
	if tx == nil {
		return errors.New("transaction is nil")
	}
	if len(tx.Message.AccountKeys) == 0 {
		return errors.New("transaction has no account keys")
	}

	if err := CheckKey(feePayer); err != nil {
		return errors.Wrap(err, "fee payer")
	}
	for i, k := range auxiliary {
		if err := CheckKey(k); err != nil {
			return errors.Wrapf(err, "auxiliary signer %d", i)
		}
	}

	payer := feePayer.PublicKey()
	if !payer.Equals(tx.Message.AccountKeys[0]) {
		return errors.Wrapf(ErrSignerMismatch, "key %s, fee payer %s", payer, tx.Message.AccountKeys[0])
	}

	keys := make(map[solana.PublicKey]solana.PrivateKey, len(auxiliary)+1)
	keys[payer] = feePayer
	for _, k := range auxiliary {
		keys[k.PublicKey()] = k
	}

	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if k, ok := keys[key]; ok {
			return &k
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to sign transaction")
	}
	return nil
}

// SignComplete signs like Sign and then requires every signature to be present.
func SignComplete(tx *solana.Transaction, feePayer solana.PrivateKey, auxiliary ...solana.PrivateKey) error {
	if err := Sign(tx, feePayer, auxiliary...); err != nil {
		return err
	}
	if missing := MissingSigners(tx); len(missing) > 0 {
		return errors.Wrapf(ErrMissingSignature, "%v", missing)
	}
	return nil
}

// MissingSigners lists required signers whose signature slot is still empty.
func MissingSigners(tx *solana.Transaction) []solana.PublicKey {
	required := int(tx.Message.Header.NumRequiredSignatures)
	var missing []solana.PublicKey
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if i >= len(tx.Signatures) || tx.Signatures[i] == (solana.Signature{}) {
			missing = append(missing, tx.Message.AccountKeys[i])
		}
	}
	return missing
}
