package svm

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDecodeNonceAccount(t *testing.T) {
	authority := newKey(t).PublicKey()
	nonce := solana.HashFromBytes(newKey(t).PublicKey().Bytes())

	tests := []struct {
		name      string
		data      []byte
		expectErr bool
		errMsg    string
	}{
		{
			name: "current version initialized",
			data: encodeNonceAccount(t, 1, 1, authority, nonce, 5000),
		},
		{
			name: "legacy version initialized",
			data: encodeNonceAccount(t, 0, 1, authority, nonce, 5000),
		},
		{
			name:      "uninitialized",
			data:      encodeNonceAccount(t, 1, 0, authority, nonce, 0),
			expectErr: true,
			errMsg:    "not initialized",
		},
		{
			name:      "unknown version",
			data:      encodeNonceAccount(t, 7, 1, authority, nonce, 0),
			expectErr: true,
			errMsg:    "unsupported version",
		},
		{
			name:      "short data",
			data:      make([]byte, 40),
			expectErr: true,
			errMsg:    "expected 80 bytes",
		},
		{
			name:      "empty data",
			data:      nil,
			expectErr: true,
			errMsg:    "expected 80 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := DecodeNonceAccount(tt.data)
			if tt.expectErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedNonceAccount))
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, authority, state.Authority)
			assert.Equal(t, nonce, state.Nonce)
			assert.Equal(t, uint64(5000), state.LamportsPerSignature)
		})
	}
}

func TestNonceReader_Read(t *testing.T) {
	ctx := context.Background()
	address := newKey(t).PublicKey()
	authority := newKey(t).PublicKey()
	nonce := solana.HashFromBytes(newKey(t).PublicKey().Bytes())

	t.Run("decodes account", func(t *testing.T) {
		cluster := new(MockCluster)
		cluster.On("GetAccountInfo", mock.Anything, address).Return(nonceAccount(t, authority, nonce), nil)

		state, err := NewNonceReader(cluster).Read(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, nonce, state.Nonce)
		assert.Equal(t, authority, state.Authority)
		cluster.AssertExpectations(t)
	})

	t.Run("reads fresh on every call", func(t *testing.T) {
		next := solana.HashFromBytes(newKey(t).PublicKey().Bytes())
		cluster := new(MockCluster)
		cluster.On("GetAccountInfo", mock.Anything, address).Return(nonceAccount(t, authority, nonce), nil).Once()
		cluster.On("GetAccountInfo", mock.Anything, address).Return(nonceAccount(t, authority, next), nil).Once()

		reader := NewNonceReader(cluster)
		first, err := reader.Read(ctx, address)
		require.NoError(t, err)
		second, err := reader.Read(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, nonce, first.Nonce)
		assert.Equal(t, next, second.Nonce)
		cluster.AssertNumberOfCalls(t, "GetAccountInfo", 2)
	})

	t.Run("account not found", func(t *testing.T) {
		cluster := new(MockCluster)
		cluster.On("GetAccountInfo", mock.Anything, address).Return(nil, ErrAccountNotFound)

		_, err := NewNonceReader(cluster).Read(ctx, address)
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})

	t.Run("wrong owner", func(t *testing.T) {
		account := nonceAccount(t, authority, nonce)
		account.Owner = solana.TokenProgramID
		cluster := new(MockCluster)
		cluster.On("GetAccountInfo", mock.Anything, address).Return(account, nil)

		_, err := NewNonceReader(cluster).Read(ctx, address)
		assert.True(t, errors.Is(err, ErrMalformedNonceAccount))
		assert.Contains(t, err.Error(), "owned by")
	})

	t.Run("garbage data", func(t *testing.T) {
		cluster := new(MockCluster)
		cluster.On("GetAccountInfo", mock.Anything, address).Return(&rpc.Account{
			Owner: solana.SystemProgramID,
			Data:  rpc.DataBytesOrJSONFromBytes([]byte{1, 2, 3}),
		}, nil)

		_, err := NewNonceReader(cluster).Read(ctx, address)
		assert.True(t, errors.Is(err, ErrMalformedNonceAccount))
	})
}

func TestCreateNonceAccountInstructions(t *testing.T) {
	payer := newKey(t).PublicKey()
	nonce := newKey(t).PublicKey()

	ixs := CreateNonceAccountInstructions(payer, nonce, payer, 1_500_000)
	require.Len(t, ixs, 2)

	for _, ix := range ixs {
		assert.Equal(t, solana.SystemProgramID, ix.ProgramID())
	}
	create := ixs[0].Accounts()
	assert.Equal(t, payer, create[0].PublicKey)
	assert.Equal(t, nonce, create[1].PublicKey)
	assert.True(t, create[1].IsSigner)

	data, err := ixs[1].Data()
	require.NoError(t, err)
	assert.Equal(t, system.Instruction_InitializeNonceAccount, binary.LittleEndian.Uint32(data))
	assert.Equal(t, nonce, ixs[1].Accounts()[0].PublicKey)
}
