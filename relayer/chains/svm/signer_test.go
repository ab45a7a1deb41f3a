package svm

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDurableTx(t *testing.T, payer solana.PublicKey, cosigners ...solana.PublicKey) *solana.Transaction {
	t.Helper()
	state := &NonceState{
		Nonce:     solana.HashFromBytes(newKey(t).PublicKey().Bytes()),
		Authority: payer,
	}
	tx, err := NewTxBuilder().BuildDurable(newKey(t).PublicKey(), state, payer,
		Budget{PriorityFeeMicroLamports: 240000, ComputeUnitLimit: 200000},
		[]solana.Instruction{memoInstruction("mint", cosigners...)})
	require.NoError(t, err)
	return tx
}

func TestSign(t *testing.T) {
	payer := newKey(t)
	cosigner := newKey(t)

	t.Run("fee payer only leaves co-signer slot empty", func(t *testing.T) {
		tx := buildDurableTx(t, payer.PublicKey(), cosigner.PublicKey())

		require.NoError(t, Sign(tx, payer))
		require.Len(t, tx.Signatures, 2)

		sig, ok := FeePayerSignature(tx)
		assert.True(t, ok)
		assert.NotEqual(t, solana.Signature{}, sig)
		assert.Equal(t, []solana.PublicKey{cosigner.PublicKey()}, MissingSigners(tx))
	})

	t.Run("auxiliary signer fills slot", func(t *testing.T) {
		tx := buildDurableTx(t, payer.PublicKey(), cosigner.PublicKey())

		require.NoError(t, Sign(tx, payer, cosigner))
		assert.Empty(t, MissingSigners(tx))
		assert.NoError(t, tx.VerifySignatures())
	})

	t.Run("unrelated auxiliary key is ignored", func(t *testing.T) {
		tx := buildDurableTx(t, payer.PublicKey())

		require.NoError(t, Sign(tx, payer, newKey(t)))
		assert.Len(t, tx.Signatures, 1)
		assert.Empty(t, MissingSigners(tx))
	})

	t.Run("signing in two steps", func(t *testing.T) {
		tx := buildDurableTx(t, payer.PublicKey(), cosigner.PublicKey())

		require.NoError(t, Sign(tx, payer))
		first := tx.Signatures[0]
		require.NoError(t, Sign(tx, payer, cosigner))
		assert.Equal(t, first, tx.Signatures[0])
		assert.NoError(t, tx.VerifySignatures())
	})

	t.Run("fee payer mismatch", func(t *testing.T) {
		tx := buildDurableTx(t, payer.PublicKey())

		err := Sign(tx, newKey(t))
		assert.ErrorIs(t, err, ErrSignerMismatch)
		assert.Empty(t, tx.Signatures)
	})

	t.Run("malformed keys are rejected", func(t *testing.T) {
		tx := buildDurableTx(t, payer.PublicKey(), cosigner.PublicKey())

		assert.ErrorIs(t, Sign(tx, nil), ErrInvalidKey)
		assert.ErrorIs(t, Sign(tx, payer[:32]), ErrInvalidKey)
		assert.ErrorIs(t, Sign(tx, payer, cosigner[:10]), ErrInvalidKey)
		assert.Empty(t, tx.Signatures)
	})
}

func TestSignComplete(t *testing.T) {
	payer := newKey(t)
	cosigner := newKey(t)

	tx := buildDurableTx(t, payer.PublicKey(), cosigner.PublicKey())
	err := SignComplete(tx, payer)
	assert.ErrorIs(t, err, ErrMissingSignature)
	assert.Contains(t, err.Error(), cosigner.PublicKey().String())

	tx = buildDurableTx(t, payer.PublicKey(), cosigner.PublicKey())
	assert.NoError(t, SignComplete(tx, payer, cosigner))
}
