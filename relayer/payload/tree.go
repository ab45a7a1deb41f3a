package payload

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/pkg/errors"
)

// ErrInvalidTreeSize is returned for a depth and buffer pair the compression
// program does not support.
var ErrInvalidTreeSize = errors.New("unsupported merkle tree size")

// createTreeDiscriminator selects bubblegum's create_tree instruction.
var createTreeDiscriminator = [8]byte{165, 83, 136, 142, 89, 202, 47, 220}

const (
	// treeHeaderSize is the account type byte followed by the versioned V1 header.
	treeHeaderSize = 2 + 54
	// changeLogOverhead is the root plus index and padding of one change log
	// entry, and equally the leaf plus index and padding of the rightmost path.
	changeLogOverhead = 32 + 4 + 4
)

// TreeSize is the shape of a concurrent merkle tree.
type TreeSize struct {
	MaxDepth      uint32
	MaxBufferSize uint32
}

// DefaultTreeSize holds 16384 leaves.
var DefaultTreeSize = TreeSize{MaxDepth: 14, MaxBufferSize: 64}

var validTreeSizes = map[TreeSize]bool{
	{3, 8}: true, {5, 8}: true, {6, 16}: true, {7, 16}: true, {8, 16}: true, {9, 16}: true,
	{10, 32}: true, {11, 32}: true, {12, 32}: true, {13, 32}: true,
	{14, 64}: true, {14, 256}: true, {14, 1024}: true, {14, 2048}: true,
	{15, 64}: true, {16, 64}: true, {17, 64}: true, {18, 64}: true, {19, 64}: true,
	{20, 64}: true, {20, 256}: true, {20, 1024}: true, {20, 2048}: true,
	{24, 64}: true, {24, 256}: true, {24, 512}: true, {24, 1024}: true, {24, 2048}: true,
	{26, 512}: true, {26, 1024}: true, {26, 2048}: true,
	{30, 512}: true, {30, 1024}: true, {30, 2048}: true,
}

// Validate rejects sizes the compression program cannot allocate.
func (s TreeSize) Validate() error {
	if !validTreeSizes[s] {
		return errors.Wrapf(ErrInvalidTreeSize, "max depth %d, max buffer size %d", s.MaxDepth, s.MaxBufferSize)
	}
	return nil
}

// AccountSize is the merkle tree account size in bytes with a canopy of
// canopyDepth levels.
func (s TreeSize) AccountSize(canopyDepth uint32) uint64 {
	path := uint64(changeLogOverhead) + 32*uint64(s.MaxDepth)
	tree := 3*8 + uint64(s.MaxBufferSize)*path + path
	var canopy uint64
	if canopyDepth > 0 {
		canopy = ((uint64(1) << (canopyDepth + 1)) - 2) * 32
	}
	return treeHeaderSize + tree + canopy
}

// NewAllocTreeInstruction creates the merkle tree account owned by the
// compression program. The tree key must co-sign.
func NewAllocTreeInstruction(payer, tree solana.PublicKey, size TreeSize, canopyDepth uint32, lamports uint64) solana.Instruction {
	return system.NewCreateAccountInstruction(lamports, size.AccountSize(canopyDepth), CompressionProgramID, payer, tree).Build()
}

// NewCreateTreeConfigInstruction initializes the bubblegum tree config of
// tree with creator as tree authority. Public trees let anyone mint.
func NewCreateTreeConfigInstruction(payer, creator, tree solana.PublicKey, size TreeSize, public bool) (solana.Instruction, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	treeConfig, err := TreeConfigPDA(tree)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(createTreeDiscriminator[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(size.MaxDepth, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(size.MaxBufferSize, bin.LE); err != nil {
		return nil, err
	}
	// Option<bool>
	if err := enc.WriteBool(true); err != nil {
		return nil, err
	}
	if err := enc.WriteBool(public); err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(treeConfig).WRITE(),
		solana.Meta(tree).WRITE(),
		solana.Meta(payer).SIGNER().WRITE(),
		solana.Meta(creator).SIGNER(),
		solana.Meta(NoopProgramID),
		solana.Meta(CompressionProgramID),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(BubblegumProgramID, accounts, buf.Bytes()), nil
}
