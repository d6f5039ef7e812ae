package state

import (
	"math/big"
	"testing"

	"lendchain/core/types"
	"lendchain/crypto"
	"lendchain/native/lending"
	"lendchain/native/nft"
	"lendchain/storage"
)

func makeAddress(fill byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = fill
	}
	return crypto.NewAddress(crypto.LendPrefix, buf)
}

func newManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestAccountRoundTrip(t *testing.T) {
	m := newManager()
	addr := makeAddress(0x11)

	acc, err := m.GetAccount(addr)
	if err != nil {
		t.Fatalf("get unknown account: %v", err)
	}
	if acc.Balance.Sign() != 0 {
		t.Fatalf("expected zero balance for unknown account, got %s", acc.Balance)
	}

	if err := m.PutAccount(addr, &types.Account{Nonce: 3, Balance: big.NewInt(750)}); err != nil {
		t.Fatalf("put account: %v", err)
	}
	loaded, err := m.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if loaded.Nonce != 3 || loaded.Balance.Cmp(big.NewInt(750)) != 0 {
		t.Fatalf("unexpected account: %+v", loaded)
	}
}

func TestOfferRoundTripAndSequence(t *testing.T) {
	m := newManager()

	for want := uint64(0); want < 3; want++ {
		id, err := m.NextOfferID()
		if err != nil {
			t.Fatalf("next offer id: %v", err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}

	offer := &lending.Offer{
		ID:              1,
		AssetContract:   makeAddress(0x22),
		AssetID:         9,
		Lender:          makeAddress(0x33),
		InterestRateBps: 500,
		Duration:        100,
		Principal:       big.NewInt(1_000),
		Active:          true,
		Status:          lending.OfferCreated,
	}
	if err := m.OfferPut(offer); err != nil {
		t.Fatalf("put offer: %v", err)
	}
	loaded, ok, err := m.OfferGet(1)
	if err != nil || !ok {
		t.Fatalf("get offer: ok=%v err=%v", ok, err)
	}
	if loaded.Principal.Cmp(offer.Principal) != 0 || !loaded.Lender.Equal(offer.Lender) {
		t.Fatalf("offer did not round trip: %+v", loaded)
	}
	if loaded.Accepted() {
		t.Fatalf("borrower should stay unset through persistence")
	}

	if _, ok, err := m.OfferGet(99); err != nil || ok {
		t.Fatalf("expected missing offer, ok=%v err=%v", ok, err)
	}
}

func TestListingsAndPairIndex(t *testing.T) {
	m := newManager()
	contract := makeAddress(0x22)
	owner := makeAddress(0x44)
	key := lending.AssetKey(contract, 5)

	listed, err := m.ListedPair(key)
	if err != nil || listed {
		t.Fatalf("expected pair unlisted, listed=%v err=%v", listed, err)
	}

	if err := m.ListingsPut([]*lending.ListedAsset{{AssetContract: contract, AssetID: 5, Owner: owner, IsListed: true}}); err != nil {
		t.Fatalf("put listings: %v", err)
	}
	if err := m.SetListedPair(key, true); err != nil {
		t.Fatalf("set pair: %v", err)
	}

	listings, err := m.ListingsGet()
	if err != nil {
		t.Fatalf("get listings: %v", err)
	}
	if len(listings) != 1 || !listings[0].Owner.Equal(owner) || !listings[0].IsListed {
		t.Fatalf("unexpected listings: %+v", listings)
	}
	listed, err = m.ListedPair(key)
	if err != nil || !listed {
		t.Fatalf("expected pair listed, listed=%v err=%v", listed, err)
	}

	if err := m.SetListedPair(key, false); err != nil {
		t.Fatalf("clear pair: %v", err)
	}
	listed, err = m.ListedPair(key)
	if err != nil || listed {
		t.Fatalf("expected pair cleared, listed=%v err=%v", listed, err)
	}
}

func TestHistoryAppend(t *testing.T) {
	m := newManager()
	key := "asset/1"

	first := &lending.Offer{ID: 0, Principal: big.NewInt(100), Status: lending.OfferCreated}
	second := &lending.Offer{ID: 1, Principal: big.NewInt(200), Status: lending.OfferCreated}
	if err := m.HistoryAppend(key, first); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.HistoryAppend(key, second); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := m.HistoryGet(key)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 2 || history[0].ID != 0 || history[1].ID != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestNFTRoundTrip(t *testing.T) {
	m := newManager()
	collection := makeAddress(0x22)
	owner := makeAddress(0x55)

	if _, ok, err := m.NFTGet(collection, 3); err != nil || ok {
		t.Fatalf("expected missing token, ok=%v err=%v", ok, err)
	}
	if err := m.NFTPut(collection, 3, &nft.Token{Owner: owner}); err != nil {
		t.Fatalf("put token: %v", err)
	}
	token, ok, err := m.NFTGet(collection, 3)
	if err != nil || !ok {
		t.Fatalf("get token: ok=%v err=%v", ok, err)
	}
	if !token.Owner.Equal(owner) {
		t.Fatalf("unexpected owner: %s", token.Owner)
	}
}

func TestPoolRoundTrip(t *testing.T) {
	m := newManager()
	provider := makeAddress(0x66)

	pool, err := m.PoolGet()
	if err != nil {
		t.Fatalf("get empty pool: %v", err)
	}
	if pool.TotalDeposits.Sign() != 0 || len(pool.Depositors) != 0 {
		t.Fatalf("expected empty pool, got %+v", pool)
	}

	pool.Deposits[provider.String()] = big.NewInt(400)
	pool.Depositors = append(pool.Depositors, provider)
	pool.TotalDeposits = big.NewInt(400)
	if err := m.PoolPut(pool); err != nil {
		t.Fatalf("put pool: %v", err)
	}

	loaded, err := m.PoolGet()
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if loaded.BalanceOf(provider).Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("deposit did not round trip: %+v", loaded)
	}
	if len(loaded.Depositors) != 1 || !loaded.Depositors[0].Equal(provider) {
		t.Fatalf("roster did not round trip: %+v", loaded.Depositors)
	}
}

func TestGenesisMarker(t *testing.T) {
	m := newManager()
	applied, err := m.GenesisApplied()
	if err != nil || applied {
		t.Fatalf("expected unapplied, applied=%v err=%v", applied, err)
	}
	if err := m.SetGenesisApplied(); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	applied, err = m.GenesisApplied()
	if err != nil || !applied {
		t.Fatalf("expected applied, applied=%v err=%v", applied, err)
	}
}
