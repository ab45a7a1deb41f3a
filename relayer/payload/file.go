package payload

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// CollectionFile is the operator-edited JSON description of a collection.
// Key fields are base58 strings and may be empty until the collection is created.
type CollectionFile struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	URI           string `json:"uri"`
	AuthPDA       string `json:"auth_pda,omitempty"`
	Sfbp          uint16 `json:"sfbp"`
	CollectionKey string `json:"collection_key,omitempty"`
	Creator1      string `json:"creator_1"`
	Creator1Cut   uint8  `json:"creator_1_cut"`
	UpdateAuth    string `json:"update_auth"`
	MerkleTree    string `json:"merkle_tree"`
	ConfigKey     string `json:"config_key,omitempty"`
}

// LoadCollectionFile reads a collection file.
func LoadCollectionFile(path string) (*CollectionFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read collection file %s", path)
	}
	var f CollectionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "failed to parse collection file %s", path)
	}
	return &f, nil
}

// SaveCollectionFile writes f back with four-space indentation.
func SaveCollectionFile(path string, f *CollectionFile) error {
	data, err := json.MarshalIndent(f, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal collection file")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write collection file %s", path)
	}
	return nil
}

// Config parses the key fields. Empty keys become the zero key.
func (f *CollectionFile) Config() (*CollectionConfig, error) {
	cfg := &CollectionConfig{
		Name:        f.Name,
		Symbol:      f.Symbol,
		URI:         f.URI,
		Sfbp:        f.Sfbp,
		Creator1Cut: f.Creator1Cut,
	}
	keys := []struct {
		field string
		value string
		dst   *solana.PublicKey
	}{
		{"auth_pda", f.AuthPDA, &cfg.AuthPDA},
		{"collection_key", f.CollectionKey, &cfg.CollectionKey},
		{"creator_1", f.Creator1, &cfg.Creator1},
		{"update_auth", f.UpdateAuth, &cfg.UpdateAuth},
		{"merkle_tree", f.MerkleTree, &cfg.MerkleTree},
	}
	for _, k := range keys {
		if k.value == "" {
			continue
		}
		key, err := solana.PublicKeyFromBase58(k.value)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "%s: %v", k.field, err)
		}
		*k.dst = key
	}
	return cfg, nil
}

// Record stores the derived keys of a created collection.
func (f *CollectionFile) Record(cfg *CollectionConfig, addrs *CollectionAddresses) {
	f.CollectionKey = cfg.CollectionKey.String()
	f.AuthPDA = addrs.Authority.String()
	f.ConfigKey = addrs.Config.String()
}
