package genesis

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"lendchain/crypto"
)

// Account allocates an initial fungible balance to an address.
type Account struct {
	Address string `yaml:"address"`
	Balance string `yaml:"balance"`
}

// NFT mints a non-fungible asset to an initial owner.
type NFT struct {
	Collection string `yaml:"collection"`
	ID         uint64 `yaml:"id"`
	Owner      string `yaml:"owner"`
}

// Genesis describes the initial allocation applied once at first boot.
type Genesis struct {
	Accounts []Account `yaml:"accounts"`
	NFTs     []NFT     `yaml:"nfts"`
}

type fungibleMinter interface {
	Mint(addr crypto.Address, amount *big.Int) error
}

type nftMinter interface {
	Mint(collection crypto.Address, id uint64, owner crypto.Address) error
}

// Load reads and validates a YAML genesis file.
func Load(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	gen := &Genesis{}
	if err := yaml.Unmarshal(raw, gen); err != nil {
		return nil, fmt.Errorf("genesis: decode %s: %w", path, err)
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// Validate checks that every address decodes and every balance parses.
func (g *Genesis) Validate() error {
	if g == nil {
		return fmt.Errorf("genesis: empty definition")
	}
	for i, acc := range g.Accounts {
		if _, err := crypto.DecodeAddress(acc.Address); err != nil {
			return fmt.Errorf("genesis: account %d address: %w", i, err)
		}
		if _, ok := new(big.Int).SetString(acc.Balance, 10); !ok {
			return fmt.Errorf("genesis: account %d balance %q is not a base-10 integer", i, acc.Balance)
		}
	}
	for i, asset := range g.NFTs {
		if _, err := crypto.DecodeAddress(asset.Collection); err != nil {
			return fmt.Errorf("genesis: nft %d collection: %w", i, err)
		}
		if _, err := crypto.DecodeAddress(asset.Owner); err != nil {
			return fmt.Errorf("genesis: nft %d owner: %w", i, err)
		}
	}
	return nil
}

// Apply mints the initial balances and assets. Callers guard against double
// application with the state manager's genesis marker.
func (g *Genesis) Apply(ledger fungibleMinter, registry nftMinter) error {
	if err := g.Validate(); err != nil {
		return err
	}
	for _, acc := range g.Accounts {
		addr, err := crypto.DecodeAddress(acc.Address)
		if err != nil {
			return err
		}
		amount, _ := new(big.Int).SetString(acc.Balance, 10)
		if amount.Sign() <= 0 {
			continue
		}
		if err := ledger.Mint(addr, amount); err != nil {
			return fmt.Errorf("genesis: mint %s: %w", acc.Address, err)
		}
	}
	for _, asset := range g.NFTs {
		collection, err := crypto.DecodeAddress(asset.Collection)
		if err != nil {
			return err
		}
		owner, err := crypto.DecodeAddress(asset.Owner)
		if err != nil {
			return err
		}
		if err := registry.Mint(collection, asset.ID, owner); err != nil {
			return fmt.Errorf("genesis: mint nft %s/%d: %w", asset.Collection, asset.ID, err)
		}
	}
	return nil
}
