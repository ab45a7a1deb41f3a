package svm

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/pkg/errors"
)

// ComputeBudgetProgramID is the native compute budget program.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	computeBudgetSetUnitLimit uint8 = 2
	computeBudgetSetUnitPrice uint8 = 3
)

// ErrEmptyPayload is returned when a transaction would carry no payload instructions.
var ErrEmptyPayload = errors.New("no payload instructions")

// Budget holds the fee-priority and compute directives prepended to every transaction.
// A zero field omits the matching directive.
type Budget struct {
	PriorityFeeMicroLamports uint64
	ComputeUnitLimit         uint32
}

// TxBuilder assembles unsigned transactions. It is stateless; identical inputs
// produce identical messages.
type TxBuilder struct{}

// NewTxBuilder creates a TxBuilder.
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{}
}

// BuildDurable builds a transaction anchored to the stored value of a durable
// nonce account. Instruction order is fixed: advance nonce, compute unit price,
// compute unit limit, then payload in the order given.
func (tb *TxBuilder) BuildDurable(
	nonceAccount solana.PublicKey,
	nonce *NonceState,
	feePayer solana.PublicKey,
	budget Budget,
	payload []solana.Instruction,
) (*solana.Transaction, error) {
	if nonce == nil {
		return nil, errors.New("nonce state is required")
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	advance := system.NewAdvanceNonceAccountInstruction(
		nonceAccount,
		solana.SysVarRecentBlockHashesPubkey,
		nonce.Authority,
	).Build()

	instructions := make([]solana.Instruction, 0, len(payload)+3)
	instructions = append(instructions, advance)
	instructions = append(instructions, tb.budgetInstructions(budget)...)
	instructions = append(instructions, payload...)

	tx, err := solana.NewTransaction(instructions, nonce.Nonce, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create durable transaction")
	}
	return tx, nil
}

// BuildImmediate builds a transaction anchored to a recent blockhash. Same
// ordering as BuildDurable without the nonce advance.
func (tb *TxBuilder) BuildImmediate(
	blockhash solana.Hash,
	feePayer solana.PublicKey,
	budget Budget,
	payload []solana.Instruction,
) (*solana.Transaction, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	instructions := make([]solana.Instruction, 0, len(payload)+2)
	instructions = append(instructions, tb.budgetInstructions(budget)...)
	instructions = append(instructions, payload...)

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transaction")
	}
	return tx, nil
}

func (tb *TxBuilder) budgetInstructions(budget Budget) []solana.Instruction {
	var out []solana.Instruction
	if budget.PriorityFeeMicroLamports > 0 {
		out = append(out, tb.buildSetComputeUnitPriceInstruction(budget.PriorityFeeMicroLamports))
	}
	if budget.ComputeUnitLimit > 0 {
		out = append(out, tb.buildSetComputeUnitLimitInstruction(budget.ComputeUnitLimit))
	}
	return out
}

// buildSetComputeUnitPriceInstruction creates a SetComputeUnitPrice instruction.
// Instruction format: [1-byte instruction type (3)] + [8-byte u64 micro-lamports]
func (tb *TxBuilder) buildSetComputeUnitPriceInstruction(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = computeBudgetSetUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)

	return solana.NewInstruction(ComputeBudgetProgramID, []*solana.AccountMeta{}, data)
}

// buildSetComputeUnitLimitInstruction creates a SetComputeUnitLimit instruction.
// Instruction format: [1-byte instruction type (2)] + [4-byte u32 units]
func (tb *TxBuilder) buildSetComputeUnitLimitInstruction(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = computeBudgetSetUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)

	return solana.NewInstruction(ComputeBudgetProgramID, []*solana.AccountMeta{}, data)
}

// DurableAnchor reports whether tx is a durable nonce transaction and, if so,
// which nonce account it advances.
func DurableAnchor(tx *solana.Transaction) (solana.PublicKey, bool) {
	if tx == nil || len(tx.Message.Instructions) == 0 {
		return solana.PublicKey{}, false
	}
	first := tx.Message.Instructions[0]
	if int(first.ProgramIDIndex) >= len(tx.Message.AccountKeys) ||
		!tx.Message.AccountKeys[first.ProgramIDIndex].Equals(solana.SystemProgramID) {
		return solana.PublicKey{}, false
	}
	if len(first.Data) < 4 || binary.LittleEndian.Uint32(first.Data[:4]) != system.Instruction_AdvanceNonceAccount {
		return solana.PublicKey{}, false
	}
	if len(first.Accounts) == 0 || int(first.Accounts[0]) >= len(tx.Message.AccountKeys) {
		return solana.PublicKey{}, false
	}
	return tx.Message.AccountKeys[first.Accounts[0]], true
}
