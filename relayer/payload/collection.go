// Package payload encodes the collection program instructions that are
// staged behind a durable nonce.
package payload

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const (
	// MaxSfbp is the exclusive upper bound on seller fee basis points.
	MaxSfbp = 10000

	maxStringLength = 1 << 16
)

var (
	// ErrInvalidConfig is returned for collection settings the program would reject.
	ErrInvalidConfig = errors.New("invalid collection config")

	// ErrMalformedConfigAccount is returned when config account data cannot be decoded.
	ErrMalformedConfigAccount = errors.New("malformed collection config account")
)

// CollectionConfig is the state the program stores in the config account.
// Field order is the borsh layout.
type CollectionConfig struct {
	Name          string
	Symbol        string
	URI           string
	AuthPDA       solana.PublicKey
	Sfbp          uint16
	CollectionKey solana.PublicKey
	Creator1      solana.PublicKey
	Creator1Cut   uint8
	UpdateAuth    solana.PublicKey
	MerkleTree    solana.PublicKey
}

// Validate checks the rules enforced on-chain by the create instruction.
func (c *CollectionConfig) Validate() error {
	if c.Name == "" {
		return errors.Wrap(ErrInvalidConfig, "name is empty")
	}
	if len(c.Name) > solana.MaxSeedLength {
		return errors.Wrapf(ErrInvalidConfig, "name is %d bytes, at most %d allowed", len(c.Name), solana.MaxSeedLength)
	}
	if c.Sfbp >= MaxSfbp {
		return errors.Wrapf(ErrInvalidConfig, "sfbp %d must be below %d", c.Sfbp, MaxSfbp)
	}
	if c.Creator1Cut > 100 {
		return errors.Wrapf(ErrInvalidConfig, "creator_1_cut %d exceeds 100", c.Creator1Cut)
	}
	return nil
}

// MarshalBorsh returns the borsh encoding of c.
func (c *CollectionConfig) MarshalBorsh() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	for _, s := range []string{c.Name, c.Symbol, c.URI} {
		if err := writeString(enc, s); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteBytes(c.AuthPDA[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint16(c.Sfbp, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(c.CollectionKey[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(c.Creator1[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(c.Creator1Cut); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(c.UpdateAuth[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(c.MerkleTree[:], false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCollectionConfig parses config account data. Accounts are allocated
// with spare room, so bytes after the encoded struct are ignored.
func DecodeCollectionConfig(data []byte) (*CollectionConfig, error) {
	dec := bin.NewBorshDecoder(data)
	var (
		c   CollectionConfig
		err error
	)
	fail := func(field string, err error) (*CollectionConfig, error) {
		return nil, errors.Wrapf(ErrMalformedConfigAccount, "%s: %v", field, err)
	}

	if c.Name, err = readString(dec); err != nil {
		return fail("name", err)
	}
	if c.Symbol, err = readString(dec); err != nil {
		return fail("symbol", err)
	}
	if c.URI, err = readString(dec); err != nil {
		return fail("uri", err)
	}
	if c.AuthPDA, err = readPublicKey(dec); err != nil {
		return fail("auth_pda", err)
	}
	if c.Sfbp, err = dec.ReadUint16(bin.LE); err != nil {
		return fail("sfbp", err)
	}
	if c.CollectionKey, err = readPublicKey(dec); err != nil {
		return fail("collection_key", err)
	}
	if c.Creator1, err = readPublicKey(dec); err != nil {
		return fail("creator_1", err)
	}
	if c.Creator1Cut, err = dec.ReadUint8(); err != nil {
		return fail("creator_1_cut", err)
	}
	if c.UpdateAuth, err = readPublicKey(dec); err != nil {
		return fail("update_auth", err)
	}
	if c.MerkleTree, err = readPublicKey(dec); err != nil {
		return fail("merkle_tree", err)
	}
	return &c, nil
}

// MintArgs are the metadata fields of one compressed NFT.
type MintArgs struct {
	Name   string
	URI    string
	Symbol string
}

// MarshalBorsh returns the borsh encoding of a.
func (a MintArgs) MarshalBorsh() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	for _, s := range []string{a.Name, a.URI, a.Symbol} {
		if err := writeString(enc, s); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func readString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return "", err
	}
	if n > maxStringLength {
		return "", fmt.Errorf("string length %d too large", n)
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}
