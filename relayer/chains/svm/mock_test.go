package svm

import (
	"bytes"
	"context"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCluster is a mock implementation of Cluster.
type MockCluster struct {
	mock.Mock
}

func (m *MockCluster) GetAccountInfo(ctx context.Context, address solana.PublicKey) (*rpc.Account, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.Account), args.Error(1)
}

func (m *MockCluster) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockCluster) SendRawTransaction(ctx context.Context, raw []byte, skipPreflight bool) (solana.Signature, error) {
	args := m.Called(ctx, raw, skipPreflight)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockCluster) GetSignatureStatus(ctx context.Context, sig solana.Signature, searchHistory bool) (*rpc.SignatureStatusesResult, error) {
	args := m.Called(ctx, sig, searchHistory)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.SignatureStatusesResult), args.Error(1)
}

var _ Cluster = (*MockCluster)(nil)

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// encodeNonceAccount builds raw nonce account data.
func encodeNonceAccount(t *testing.T, version, state uint32, authority solana.PublicKey, nonce solana.Hash, lamports uint64) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	require.NoError(t, enc.WriteUint32(version, bin.LE))
	require.NoError(t, enc.WriteUint32(state, bin.LE))
	require.NoError(t, enc.WriteBytes(authority[:], false))
	require.NoError(t, enc.WriteBytes(nonce[:], false))
	require.NoError(t, enc.WriteUint64(lamports, bin.LE))
	return buf.Bytes()
}

func nonceAccount(t *testing.T, authority solana.PublicKey, nonce solana.Hash) *rpc.Account {
	t.Helper()
	return &rpc.Account{
		Owner: solana.SystemProgramID,
		Data:  rpc.DataBytesOrJSONFromBytes(encodeNonceAccount(t, 1, 1, authority, nonce, 5000)),
	}
}

func memoInstruction(data string, signers ...solana.PublicKey) solana.Instruction {
	metas := make([]*solana.AccountMeta, 0, len(signers))
	for _, s := range signers {
		metas = append(metas, solana.Meta(s).SIGNER())
	}
	return solana.NewInstruction(solana.MemoProgramID, metas, []byte(data))
}

func confirmedStatus() *rpc.SignatureStatusesResult {
	return &rpc.SignatureStatusesResult{Slot: 10, ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
}
