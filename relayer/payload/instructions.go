package payload

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// Instruction tags of the collection program.
const (
	InstructionCreateCollection uint8 = 1
	InstructionMint             uint8 = 2
)

// NewCreateCollectionInstruction creates the config account and mints the
// collection NFT. cfg.AuthPDA and cfg.CollectionKey are overwritten with the
// derived authority and mint before encoding. The mint key must co-sign.
func NewCreateCollectionInstruction(
	programID, payer, mint solana.PublicKey,
	cfg *CollectionConfig,
) (solana.Instruction, *CollectionAddresses, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	addrs, err := DeriveCollection(programID, cfg.Name, mint)
	if err != nil {
		return nil, nil, err
	}
	cfg.AuthPDA = addrs.Authority
	cfg.CollectionKey = mint

	args, err := cfg.MarshalBorsh()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode collection config")
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(payer).SIGNER().WRITE(),
		solana.Meta(addrs.Config).WRITE(),
		solana.Meta(addrs.Authority).WRITE(),
		solana.Meta(mint).SIGNER().WRITE(),
		solana.Meta(addrs.TokenAccount).WRITE(),
		solana.Meta(addrs.Metadata).WRITE(),
		solana.Meta(addrs.MasterEdition).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(AssociatedTokenProgramID),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarRentPubkey),
		solana.Meta(TokenMetadataProgramID),
		solana.Meta(solana.SysVarInstructionsPubkey),
	}
	return solana.NewInstruction(programID, accounts, tagged(InstructionCreateCollection, args)), addrs, nil
}

// NewMintInstruction mints one compressed NFT into the collection described by cfg.
// payer is both fee payer and tree delegate.
func NewMintInstruction(programID, payer solana.PublicKey, cfg *CollectionConfig, args MintArgs) (solana.Instruction, error) {
	if cfg.CollectionKey.IsZero() {
		return nil, errors.Wrap(ErrInvalidConfig, "collection_key is not set, create the collection first")
	}
	if cfg.MerkleTree.IsZero() {
		return nil, errors.Wrap(ErrInvalidConfig, "merkle_tree is not set")
	}
	addrs, err := DeriveCollection(programID, cfg.Name, cfg.CollectionKey)
	if err != nil {
		return nil, err
	}
	treeConfig, err := TreeConfigPDA(cfg.MerkleTree)
	if err != nil {
		return nil, err
	}
	bubblegumSigner, err := BubblegumSignerPDA()
	if err != nil {
		return nil, err
	}

	data, err := args.MarshalBorsh()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode mint args")
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(payer).SIGNER().WRITE(),
		solana.Meta(addrs.Config).WRITE(),
		solana.Meta(addrs.Authority).WRITE(),
		solana.Meta(treeConfig).WRITE(),
		solana.Meta(payer).SIGNER().WRITE(),
		solana.Meta(cfg.MerkleTree).WRITE(),
		solana.Meta(cfg.CollectionKey).WRITE(),
		solana.Meta(addrs.Metadata).WRITE(),
		solana.Meta(addrs.MasterEdition).WRITE(),
		solana.Meta(bubblegumSigner).WRITE(),
		solana.Meta(NoopProgramID),
		solana.Meta(CompressionProgramID),
		solana.Meta(TokenMetadataProgramID),
		solana.Meta(BubblegumProgramID),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.SysVarInstructionsPubkey),
	}
	return solana.NewInstruction(programID, accounts, tagged(InstructionMint, data)), nil
}

func tagged(tag uint8, args []byte) []byte {
	data := make([]byte, 0, 1+len(args))
	data = append(data, tag)
	return append(data, args...)
}
