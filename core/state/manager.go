package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lendchain/core/types"
	"lendchain/crypto"
	"lendchain/native/lending"
	"lendchain/native/lendpool"
	"lendchain/native/nft"
	"lendchain/storage"
)

// Manager persists every owned collection of the protocol — accounts,
// listings, offers, NFT ownership and the pool ledger — as JSON values behind
// keccak-hashed prefixed keys. It implements the state interfaces the engines
// declare, funnelling all mutation through the lifecycle operations.
type Manager struct {
	db storage.Database
}

// NewManager wraps the given key-value database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func storageKey(prefix, raw []byte) []byte {
	buf := make([]byte, len(prefix)+len(raw))
	copy(buf, prefix)
	copy(buf[len(prefix):], raw)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %T: %w", out, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %T: %w", value, err)
	}
	return m.db.Put(key, raw)
}

// --- accounts ---

// GetAccount loads the account for the address, returning a zero-balance
// account for addresses never seen before.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	acc := &types.Account{}
	ok, err := m.getJSON(storageKey(accountPrefix, addr.Bytes()), acc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc, nil
}

// PutAccount persists the account record for the address.
func (m *Manager) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account for %s", addr)
	}
	return m.putJSON(storageKey(accountPrefix, addr.Bytes()), account)
}

// --- offers ---

func offerKey(id uint64) []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, id)
	return storageKey(offerRecordPrefix, raw)
}

// OfferGet loads the canonical offer record by identifier.
func (m *Manager) OfferGet(id uint64) (*lending.Offer, bool, error) {
	offer := &lending.Offer{}
	ok, err := m.getJSON(offerKey(id), offer)
	if err != nil || !ok {
		return nil, false, err
	}
	return offer, true, nil
}

// OfferPut persists the canonical offer record.
func (m *Manager) OfferPut(offer *lending.Offer) error {
	if offer == nil {
		return fmt.Errorf("state: nil offer")
	}
	return m.putJSON(offerKey(offer.ID), offer)
}

// NextOfferID allocates the next offer identifier. Identifiers are strictly
// increasing from zero and never reused, even after closure.
func (m *Manager) NextOfferID() (uint64, error) {
	key := storageKey(offerRecordPrefix, offerSeqKeyBytes)
	var next uint64
	raw, err := m.db.Get(key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		next = 0
	case err != nil:
		return 0, err
	default:
		next = binary.BigEndian.Uint64(raw)
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next+1)
	if err := m.db.Put(key, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// --- listings ---

// ListingsGet loads the full append-only listing sequence.
func (m *Manager) ListingsGet() ([]*lending.ListedAsset, error) {
	var listings []*lending.ListedAsset
	if _, err := m.getJSON(ethcrypto.Keccak256(listingsKeyBytes), &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// ListingsPut persists the listing sequence.
func (m *Manager) ListingsPut(listings []*lending.ListedAsset) error {
	return m.putJSON(ethcrypto.Keccak256(listingsKeyBytes), listings)
}

// ListedPair reports whether the (contract, id) pair is currently listed.
func (m *Manager) ListedPair(key string) (bool, error) {
	raw, err := m.db.Get(storageKey(listedPairPrefix, []byte(key)))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(raw) == 1 && raw[0] == 0x01, nil
}

// SetListedPair records the live-listing flag for the pair.
func (m *Manager) SetListedPair(key string, listed bool) error {
	value := []byte{0x00}
	if listed {
		value = []byte{0x01}
	}
	return m.db.Put(storageKey(listedPairPrefix, []byte(key)), value)
}

// --- per-asset offer history ---

// HistoryGet loads the per-asset offer history index: snapshots taken at
// creation time, not live views.
func (m *Manager) HistoryGet(key string) ([]*lending.Offer, error) {
	var history []*lending.Offer
	if _, err := m.getJSON(storageKey(historyPrefix, []byte(key)), &history); err != nil {
		return nil, err
	}
	return history, nil
}

// HistoryAppend appends an offer snapshot to the per-asset history index.
func (m *Manager) HistoryAppend(key string, offer *lending.Offer) error {
	history, err := m.HistoryGet(key)
	if err != nil {
		return err
	}
	history = append(history, offer)
	return m.putJSON(storageKey(historyPrefix, []byte(key)), history)
}

// --- NFT registry ---

func nftKey(collection crypto.Address, id uint64) []byte {
	raw := make([]byte, len(collection.Bytes())+8)
	copy(raw, collection.Bytes())
	binary.BigEndian.PutUint64(raw[len(collection.Bytes()):], id)
	return storageKey(nftTokenPrefix, raw)
}

// NFTGet loads the ownership record for an asset.
func (m *Manager) NFTGet(collection crypto.Address, id uint64) (*nft.Token, bool, error) {
	token := &nft.Token{}
	ok, err := m.getJSON(nftKey(collection, id), token)
	if err != nil || !ok {
		return nil, false, err
	}
	return token, true, nil
}

// NFTPut persists the ownership record for an asset.
func (m *Manager) NFTPut(collection crypto.Address, id uint64, token *nft.Token) error {
	if token == nil {
		return fmt.Errorf("state: nil nft token")
	}
	return m.putJSON(nftKey(collection, id), token)
}

// --- pool ledger ---

// PoolGet loads the pool ledger, returning an empty ledger on first use.
func (m *Manager) PoolGet() (*lendpool.State, error) {
	pool := lendpool.NewState()
	if _, err := m.getJSON(ethcrypto.Keccak256(poolKeyBytes), pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// PoolPut persists the pool ledger.
func (m *Manager) PoolPut(pool *lendpool.State) error {
	if pool == nil {
		return fmt.Errorf("state: nil pool state")
	}
	return m.putJSON(ethcrypto.Keccak256(poolKeyBytes), pool)
}

// --- genesis marker ---

// GenesisApplied reports whether the genesis allocation has been applied.
func (m *Manager) GenesisApplied() (bool, error) {
	raw, err := m.db.Get(ethcrypto.Keccak256(genesisKeyBytes))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(raw) == 1 && raw[0] == 0x01, nil
}

// SetGenesisApplied records that the genesis allocation has been applied so it
// only runs on first boot.
func (m *Manager) SetGenesisApplied() error {
	return m.db.Put(ethcrypto.Keccak256(genesisKeyBytes), []byte{0x01})
}
