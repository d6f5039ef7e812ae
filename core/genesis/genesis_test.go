package genesis

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"lendchain/crypto"
)

func makeAddress(fill byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = fill
	}
	return crypto.NewAddress(crypto.LendPrefix, buf)
}

type fungibleMints struct {
	minted map[string]*big.Int
}

func (f *fungibleMints) Mint(addr crypto.Address, amount *big.Int) error {
	if f.minted == nil {
		f.minted = make(map[string]*big.Int)
	}
	f.minted[addr.String()] = new(big.Int).Set(amount)
	return nil
}

type nftMints struct {
	owners map[uint64]crypto.Address
}

func (n *nftMints) Mint(collection crypto.Address, id uint64, owner crypto.Address) error {
	if n.owners == nil {
		n.owners = make(map[uint64]crypto.Address)
	}
	n.owners[id] = owner
	return nil
}

func writeGenesis(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	return path
}

func TestLoadAndApply(t *testing.T) {
	alice := makeAddress(0xA1)
	collection := makeAddress(0x22)
	path := writeGenesis(t, `
accounts:
  - address: `+alice.String()+`
    balance: "1000"
nfts:
  - collection: `+collection.String()+`
    id: 7
    owner: `+alice.String()+`
`)

	gen, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ledger := &fungibleMints{}
	registry := &nftMints{}
	if err := gen.Apply(ledger, registry); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := ledger.minted[alice.String()]; got == nil || got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected 1000 minted to alice, got %v", got)
	}
	if owner := registry.owners[7]; !owner.Equal(alice) {
		t.Fatalf("expected nft owned by alice, got %s", owner)
	}
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := writeGenesis(t, `
accounts:
  - address: notanaddress
    balance: "1000"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsBadBalance(t *testing.T) {
	alice := makeAddress(0xA1)
	path := writeGenesis(t, `
accounts:
  - address: `+alice.String()+`
    balance: "12.5"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}
