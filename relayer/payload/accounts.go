package payload

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Programs the collection program invokes.
var (
	TokenMetadataProgramID   = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	BubblegumProgramID       = solana.MustPublicKeyFromBase58("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")
	NoopProgramID            = solana.MustPublicKeyFromBase58("noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV")
	CompressionProgramID     = solana.MustPublicKeyFromBase58("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK")
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// CollectionAddresses are the accounts derived for one collection.
type CollectionAddresses struct {
	Config        solana.PublicKey
	Authority     solana.PublicKey
	Metadata      solana.PublicKey
	MasterEdition solana.PublicKey
	// TokenAccount is the authority's associated token account for the collection mint.
	TokenAccount solana.PublicKey
}

// DeriveCollection derives the accounts for collection name minted at mint.
func DeriveCollection(programID solana.PublicKey, name string, mint solana.PublicKey) (*CollectionAddresses, error) {
	config, err := ConfigPDA(programID, name)
	if err != nil {
		return nil, err
	}
	authority, err := CollectionAuthorityPDA(programID, name)
	if err != nil {
		return nil, err
	}
	metadata, err := MetadataPDA(mint)
	if err != nil {
		return nil, err
	}
	edition, err := MasterEditionPDA(mint)
	if err != nil {
		return nil, err
	}
	ata, err := AssociatedTokenAddress(authority, mint)
	if err != nil {
		return nil, err
	}
	return &CollectionAddresses{
		Config:        config,
		Authority:     authority,
		Metadata:      metadata,
		MasterEdition: edition,
		TokenAccount:  ata,
	}, nil
}

// ConfigPDA is the config account of collection name.
func ConfigPDA(programID solana.PublicKey, name string) (solana.PublicKey, error) {
	return findPDA("config", programID, []byte(name), programID.Bytes())
}

// CollectionAuthorityPDA signs for the collection mint.
func CollectionAuthorityPDA(programID solana.PublicKey, name string) (solana.PublicKey, error) {
	return findPDA("collection authority", programID, []byte(name), []byte("auth"), programID.Bytes())
}

// MetadataPDA is the token metadata account of mint.
func MetadataPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	return findPDA("metadata", TokenMetadataProgramID,
		[]byte("metadata"), TokenMetadataProgramID.Bytes(), mint.Bytes())
}

// MasterEditionPDA is the master edition account of mint.
func MasterEditionPDA(mint solana.PublicKey) (solana.PublicKey, error) {
	return findPDA("master edition", TokenMetadataProgramID,
		[]byte("metadata"), TokenMetadataProgramID.Bytes(), mint.Bytes(), []byte("edition"))
}

// AssociatedTokenAddress is the associated token account of wallet for mint.
func AssociatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	return findPDA("associated token account", AssociatedTokenProgramID,
		wallet.Bytes(), solana.TokenProgramID.Bytes(), mint.Bytes())
}

// BubblegumSignerPDA is the collection CPI signer of the bubblegum program.
func BubblegumSignerPDA() (solana.PublicKey, error) {
	return findPDA("bubblegum signer", BubblegumProgramID, []byte("collection_cpi"))
}

// TreeConfigPDA is the bubblegum tree config account of merkleTree.
func TreeConfigPDA(merkleTree solana.PublicKey) (solana.PublicKey, error) {
	return findPDA("tree config", BubblegumProgramID, merkleTree.Bytes())
}

func findPDA(what string, programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive %s PDA: %w", what, err)
	}
	return address, nil
}
