package svm

import (
	"context"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/pkg/errors"
)

// NonceAccountSize is the data length of a system-program nonce account.
const NonceAccountSize = 80

const (
	nonceVersionLegacy  uint32 = 0
	nonceVersionCurrent uint32 = 1

	nonceStateUninitialized uint32 = 0
	nonceStateInitialized   uint32 = 1
)

var (
	// ErrAccountNotFound is returned when an address holds no account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrMalformedNonceAccount is returned when account data is not an initialized nonce account.
	ErrMalformedNonceAccount = errors.New("malformed nonce account")
)

// NonceState is a snapshot of a durable nonce account.
type NonceState struct {
	Nonce                solana.Hash
	Authority            solana.PublicKey
	LamportsPerSignature uint64
}

// DecodeNonceAccount decodes raw nonce account data.
// Layout: u32 version, u32 state, [32]authority, [32]nonce, u64 lamports_per_signature.
func DecodeNonceAccount(data []byte) (*NonceState, error) {
	if len(data) != NonceAccountSize {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "expected %d bytes, got %d", NonceAccountSize, len(data))
	}

	dec := bin.NewBinDecoder(data)

	version, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "version: %v", err)
	}
	if version != nonceVersionLegacy && version != nonceVersionCurrent {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "unsupported version %d", version)
	}

	state, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "state: %v", err)
	}
	if state == nonceStateUninitialized {
		return nil, errors.Wrap(ErrMalformedNonceAccount, "nonce account is not initialized")
	}
	if state != nonceStateInitialized {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "unknown state %d", state)
	}

	authority, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "authority: %v", err)
	}
	nonce, err := dec.ReadNBytes(32)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "nonce: %v", err)
	}
	lamports, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "fee calculator: %v", err)
	}

	return &NonceState{
		Nonce:                solana.HashFromBytes(nonce),
		Authority:            solana.PublicKeyFromBytes(authority),
		LamportsPerSignature: lamports,
	}, nil
}

// NonceReader reads nonce state from the cluster. It holds no cache: every
// Read goes to the network.
type NonceReader struct {
	accounts AccountFetcher
}

// NewNonceReader creates a NonceReader.
func NewNonceReader(accounts AccountFetcher) *NonceReader {
	return &NonceReader{accounts: accounts}
}

// Read fetches and decodes the nonce account at address.
func (r *NonceReader) Read(ctx context.Context, address solana.PublicKey) (*NonceState, error) {
	account, err := r.accounts.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.Wrapf(ErrAccountNotFound, "%s", address)
	}
	if !account.Owner.Equals(solana.SystemProgramID) {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "%s is owned by %s", address, account.Owner)
	}
	if account.Data == nil {
		return nil, errors.Wrapf(ErrMalformedNonceAccount, "%s has no data", address)
	}

	state, err := DecodeNonceAccount(account.Data.GetBinary())
	if err != nil {
		return nil, errors.Wrapf(err, "nonce account %s", address)
	}
	return state, nil
}

// CreateNonceAccountInstructions allocates nonceAccount with lamports and
// initializes it with authority. nonceAccount must co-sign.
func CreateNonceAccountInstructions(payer, nonceAccount, authority solana.PublicKey, lamports uint64) []solana.Instruction {
	return []solana.Instruction{
		system.NewCreateAccountInstruction(lamports, NonceAccountSize, solana.SystemProgramID, payer, nonceAccount).Build(),
		system.NewInitializeNonceAccountInstruction(authority, nonceAccount,
			solana.SysVarRecentBlockHashesPubkey, solana.SysVarRentPubkey).Build(),
	}
}
