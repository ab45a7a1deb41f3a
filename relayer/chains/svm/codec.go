package svm

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// ErrInvalidEncoding is returned when a payload is not a base58 wire transaction.
var ErrInvalidEncoding = errors.New("invalid encoded transaction")

// EncodeTransaction serializes tx to wire bytes and encodes them as base58.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize transaction")
	}
	return base58.Encode(raw), nil
}

// DecodeTransaction reverses EncodeTransaction. It rejects input whose bytes
// do not re-serialize to exactly the same wire form.
func DecodeTransaction(encoded string) (*solana.Transaction, error) {
	raw, err := DecodeRaw(encoded)
	if err != nil {
		return nil, err
	}

	dec := bin.NewBinDecoder(raw)
	tx, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidEncoding, "failed to deserialize transaction: %v", err)
	}
	if dec.Remaining() != 0 {
		return nil, errors.Wrapf(ErrInvalidEncoding, "%d trailing bytes", dec.Remaining())
	}
	if len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		return nil, errors.Wrapf(ErrInvalidEncoding, "%d signatures for %d required signers",
			len(tx.Signatures), tx.Message.Header.NumRequiredSignatures)
	}

	again, err := tx.MarshalBinary()
	if err != nil || !bytes.Equal(again, raw) {
		return nil, errors.Wrap(ErrInvalidEncoding, "transaction is not in canonical wire form")
	}
	return tx, nil
}

// DecodeRaw returns the wire bytes of an encoded transaction without parsing them.
func DecodeRaw(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, errors.Wrap(ErrInvalidEncoding, "empty payload")
	}
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidEncoding, "base58: %v", err)
	}
	if len(raw) == 0 {
		return nil, errors.Wrap(ErrInvalidEncoding, "empty payload")
	}
	return raw, nil
}

// FeePayerSignature returns the first signature of tx, which is the
// transaction id once the fee payer has signed.
func FeePayerSignature(tx *solana.Transaction) (solana.Signature, bool) {
	if len(tx.Signatures) == 0 || tx.Signatures[0] == (solana.Signature{}) {
		return solana.Signature{}, false
	}
	return tx.Signatures[0], true
}
