package lending

import (
	"errors"
	"math/big"
	"time"

	"lendchain/core/events"
	"lendchain/core/types"
	"lendchain/crypto"
	nativecommon "lendchain/native/common"
)

var (
	errNilState          = errors.New("lending engine: state not configured")
	errNilLedger         = errors.New("lending engine: fungible ledger not configured")
	errNilRegistry       = errors.New("lending engine: collateral registry not configured")
	errPoolNotConfigured = errors.New("lending engine: pool funding not configured")

	// ErrOfferNotFound is returned for identifiers no offer was ever
	// recorded under.
	ErrOfferNotFound = errors.New("lending engine: offer not found")

	// ErrNotOwner rejects callers that do not hold the asset they claim to
	// list or accept against.
	ErrNotOwner = errors.New("lending engine: caller does not own asset")
	// ErrInvalidTerms rejects offers with a zero rate, duration or principal.
	ErrInvalidTerms = errors.New("lending engine: rate, duration and amount must be positive")
	// ErrNotListed rejects offer creation or acceptance against an asset that
	// is not currently listed.
	ErrNotListed = errors.New("lending engine: asset is not listed")
	// ErrInsufficientBalance rejects operations the caller cannot fund.
	ErrInsufficientBalance = errors.New("lending engine: insufficient balance")
	// ErrInvalidState rejects lifecycle transitions the offer's current state
	// does not permit.
	ErrInvalidState = errors.New("lending engine: offer state does not permit this operation")
	// ErrUnauthorized rejects callers that are not the recorded lender or
	// borrower for an operation requiring that role.
	ErrUnauthorized = errors.New("lending engine: caller is not a party to this offer")
)

const moduleName = "lending"

type engineState interface {
	OfferGet(id uint64) (*Offer, bool, error)
	OfferPut(offer *Offer) error
	NextOfferID() (uint64, error)
	ListingsGet() ([]*ListedAsset, error)
	ListingsPut(listings []*ListedAsset) error
	ListedPair(key string) (bool, error)
	SetListedPair(key string, listed bool) error
	HistoryAppend(key string, offer *Offer) error
	HistoryGet(key string) ([]*Offer, error)
}

type fungibleLedger interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Transfer(from, to crypto.Address, amount *big.Int) error
}

type collateralRegistry interface {
	OwnerOf(collection crypto.Address, id uint64) (crypto.Address, error)
	TransferFrom(collection crypto.Address, from, to crypto.Address, id uint64) error
}

type interestDistributor interface {
	DistributeInterest(amount *big.Int) error
}

type lendingEvent struct {
	evt *types.Event
}

func (e lendingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lendingEvent) Event() *types.Event { return e.evt }

/// Engine orchestrates the offer lifecycle: listing collateral, creating and
// accepting offers, repayment, default redemption and cancellation. Every
// state-mutating entry point that performs an external asset transfer runs
// under the reentrancy guard; a callback that re-enters the engine before the
// current operation finishes aborts with ErrReentrancy.
type Engine struct {
	state         engineState
	ledger        fungibleLedger
	registry      collateralRegistry
	moduleAddress crypto.Address
	poolAddress   crypto.Address
	poolOperator  crypto.Address
	distributor   interestDistributor
	emitter       events.Emitter
	guard         nativecommon.ReentrancyGuard
	pauses        nativecommon.PauseView
	nowFn         func() int64
}

// NewEngine constructs a lending engine custodying assets under the given
// module treasury address.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the fungible-asset ledger used for principal and interest
// custody.
func (e *Engine) SetLedger(ledger fungibleLedger) { e.ledger = ledger }

// SetRegistry wires the non-fungible registry used for collateral custody.
func (e *Engine) SetRegistry(registry collateralRegistry) { e.registry = registry }

// SetPauses wires the operational kill-switch view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPoolFunding wires the liquidity pool as an optional funding source. The
// pool address holds pooled capital, the operator is the account allowed to
// manage pool-funded offers and the distributor routes repaid interest to
// depositors pro rata.
func (e *Engine) SetPoolFunding(poolAddr, operator crypto.Address, distributor interestDistributor) {
	if e == nil {
		return
	}
	e.poolAddress = poolAddr
	e.poolOperator = operator
	e.distributor = distributor
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(lendingEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// begin performs the shared entry checks for mutating operations and acquires
// the reentrancy guard. The returned release function must be deferred so the
// guard is dropped on every exit path.
func (e *Engine) begin() (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if e.registry == nil {
		return nil, errNilRegistry
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	return e.guard.Exit, nil
}

// List pledges the asset as eligible collateral. The caller must be the
// current owner; on success the registry record is appended, the pair is
// indexed as listed and custody of the asset moves to the module address.
func (e *Engine) List(assetContract crypto.Address, assetID uint64, caller crypto.Address) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	// Check the pair index before ownership: a live listing means the module
	// already holds the asset, and re-listing it is a state error, not an
	// ownership one.
	key := AssetKey(assetContract, assetID)
	listed, err := e.state.ListedPair(key)
	if err != nil {
		return err
	}
	if listed {
		return ErrInvalidState
	}
	owner, err := e.registry.OwnerOf(assetContract, assetID)
	if err != nil {
		return err
	}
	if !owner.Equal(caller) {
		return ErrNotOwner
	}
	if err := e.registry.TransferFrom(assetContract, caller, e.moduleAddress, assetID); err != nil {
		return err
	}
	listings, err := e.state.ListingsGet()
	if err != nil {
		return err
	}
	record := &ListedAsset{AssetContract: assetContract, AssetID: assetID, Owner: caller, IsListed: true}
	listings = append(listings, record)
	if err := e.state.ListingsPut(listings); err != nil {
		return err
	}
	if err := e.state.SetListedPair(key, true); err != nil {
		return err
	}
	e.emit(NewListedEvent(record))
	return nil
}

// CreateOffer escrows the lender's principal against a listed asset and
// records a new offer in the Created state. Offer identifiers are allocated
// strictly increasing from zero and never reused.
func (e *Engine) CreateOffer(assetContract crypto.Address, assetID uint64, rateBps uint64, duration int64, amount *big.Int, lender crypto.Address) (uint64, error) {
	release, err := e.begin()
	if err != nil {
		return 0, err
	}
	defer release()
	return e.createOffer(assetContract, assetID, rateBps, duration, amount, lender, false)
}

// CreatePoolOffer creates an offer funded from pooled capital. Only the pool
// operator may call it; the pool address becomes the recorded lender so repaid
// principal and interest flow back into pool custody.
func (e *Engine) CreatePoolOffer(assetContract crypto.Address, assetID uint64, rateBps uint64, duration int64, amount *big.Int, caller crypto.Address) (uint64, error) {
	release, err := e.begin()
	if err != nil {
		return 0, err
	}
	defer release()
	if e.poolAddress.IsZero() || e.poolOperator.IsZero() {
		return 0, errPoolNotConfigured
	}
	if !caller.Equal(e.poolOperator) {
		return 0, ErrUnauthorized
	}
	return e.createOffer(assetContract, assetID, rateBps, duration, amount, e.poolAddress, true)
}

func (e *Engine) createOffer(assetContract crypto.Address, assetID uint64, rateBps uint64, duration int64, amount *big.Int, lender crypto.Address, poolFunded bool) (uint64, error) {
	if rateBps == 0 || duration <= 0 || amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidTerms
	}
	key := AssetKey(assetContract, assetID)
	listed, err := e.state.ListedPair(key)
	if err != nil {
		return 0, err
	}
	if !listed {
		return 0, ErrNotListed
	}
	balance, err := e.ledger.BalanceOf(lender)
	if err != nil {
		return 0, err
	}
	if balance.Cmp(amount) < 0 {
		return 0, ErrInsufficientBalance
	}
	if err := e.ledger.Transfer(lender, e.moduleAddress, amount); err != nil {
		return 0, err
	}
	id, err := e.state.NextOfferID()
	if err != nil {
		return 0, err
	}
	offer := &Offer{
		ID:              id,
		AssetContract:   assetContract,
		AssetID:         assetID,
		Lender:          lender,
		InterestRateBps: rateBps,
		Duration:        duration,
		Principal:       new(big.Int).Set(amount),
		Active:          true,
		Status:          OfferCreated,
		PoolFunded:      poolFunded,
	}
	if err := e.state.OfferPut(offer); err != nil {
		return 0, err
	}
	// The history index keeps a snapshot taken at creation time; later
	// mutations to the canonical offer are not reflected here.
	if err := e.state.HistoryAppend(key, offer.Clone()); err != nil {
		return 0, err
	}
	e.emit(NewOfferCreatedEvent(offer))
	return id, nil
}

// AcceptOffer lets the account that pledged the asset take the loan. The
// collateral stays escrowed with the module and the held principal is released
// to the borrower only after every validation has passed. The
// asset is delisted on acceptance, so sibling offers on the same asset become
// permanently un-acceptable and must be reclaimed by their lenders.
func (e *Engine) AcceptOffer(offerID uint64, caller crypto.Address) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if !offer.Active {
		return ErrInvalidState
	}
	if offer.Accepted() {
		return ErrInvalidState
	}
	listing, err := e.liveListing(offer.AssetContract, offer.AssetID)
	if err != nil {
		return err
	}
	if listing == nil {
		// The asset was delisted between creation and acceptance; never
		// accept against stale listing data.
		return ErrNotListed
	}
	if !listing.Owner.Equal(caller) {
		return ErrNotOwner
	}
	custodian, err := e.registry.OwnerOf(offer.AssetContract, offer.AssetID)
	if err != nil {
		return err
	}
	if !custodian.Equal(e.moduleAddress) {
		return ErrInvalidState
	}

	now := e.now()
	offer.Borrower = caller
	offer.StartTime = now
	offer.EndTime = now + offer.Duration
	offer.Status = OfferAccepted

	if err := e.ledger.Transfer(e.moduleAddress, caller, offer.Principal); err != nil {
		return err
	}
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if _, err := e.delist(offer.AssetContract, offer.AssetID); err != nil {
		return err
	}
	e.emit(NewOfferAcceptedEvent(offer))
	return nil
}

// RepayLend settles an accepted offer on time. Interest accrues linearly over
// the elapsed time at the per-unit rate fixed when the offer was created;
// repayment exactly at the expiry instant is still allowed. Principal plus
// interest goes to the lender and the collateral returns to the borrower.
func (e *Engine) RepayLend(offerID uint64, caller crypto.Address) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if !offer.Active || !offer.Accepted() {
		return ErrInvalidState
	}
	if !offer.Borrower.Equal(caller) {
		return ErrUnauthorized
	}
	now := e.now()
	if now > offer.EndTime {
		return ErrInvalidState
	}
	elapsed := now - offer.StartTime
	interest := Interest(offer.Principal, offer.InterestRateBps, offer.Duration, elapsed)
	total := new(big.Int).Add(offer.Principal, interest)

	balance, err := e.ledger.BalanceOf(caller)
	if err != nil {
		return err
	}
	if balance.Cmp(total) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.ledger.Transfer(caller, offer.Lender, total); err != nil {
		return err
	}
	if err := e.registry.TransferFrom(offer.AssetContract, e.moduleAddress, caller, offer.AssetID); err != nil {
		return err
	}

	offer.Active = false
	offer.Status = OfferRepaid
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if _, err := e.delist(offer.AssetContract, offer.AssetID); err != nil {
		return err
	}
	if offer.PoolFunded && e.distributor != nil && interest.Sign() > 0 {
		if err := e.distributor.DistributeInterest(interest); err != nil {
			return err
		}
	}
	e.emit(NewLendRepaidEvent(offer, interest.String()))
	return nil
}

// RedeemCollateral is the default path: once the loan has expired without
// repayment the lender claims the collateral. No fungible movement occurs; the
// lender forfeits the right to further repayment in exchange for the asset.
func (e *Engine) RedeemCollateral(offerID uint64, caller crypto.Address) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if !offer.Active || !offer.Accepted() {
		return ErrInvalidState
	}
	claimant := offer.Lender
	if offer.PoolFunded {
		claimant = e.poolOperator
	}
	if !claimant.Equal(caller) {
		return ErrUnauthorized
	}
	if e.now() <= offer.EndTime {
		return ErrInvalidState
	}
	if err := e.registry.TransferFrom(offer.AssetContract, e.moduleAddress, caller, offer.AssetID); err != nil {
		return err
	}
	offer.Active = false
	offer.Status = OfferRedeemed
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if _, err := e.delist(offer.AssetContract, offer.AssetID); err != nil {
		return err
	}
	e.emit(NewNFTClaimedEvent(offer))
	return nil
}

// CancelOffer lets the lender withdraw an offer that has never been accepted,
// reclaiming the escrowed principal. Cancellation after acceptance is invalid:
// the principal is already with the borrower and the collateral secures the
// loan. When the cancelled offer's asset is still listed, the listing is
// cleared and the escrowed collateral returns to the account that pledged it.
func (e *Engine) CancelOffer(offerID uint64, caller crypto.Address) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if !offer.Active {
		return ErrInvalidState
	}
	canceller := offer.Lender
	if offer.PoolFunded {
		canceller = e.poolOperator
	}
	if !canceller.Equal(caller) {
		return ErrUnauthorized
	}
	if offer.Accepted() {
		return ErrInvalidState
	}
	if err := e.ledger.Transfer(e.moduleAddress, offer.Lender, offer.Principal); err != nil {
		return err
	}
	offer.Active = false
	offer.Status = OfferCancelled
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	released, err := e.delist(offer.AssetContract, offer.AssetID)
	if err != nil {
		return err
	}
	if released != nil {
		if err := e.registry.TransferFrom(offer.AssetContract, e.moduleAddress, released.Owner, offer.AssetID); err != nil {
			return err
		}
	}
	e.emit(NewOfferCancelledEvent(offer))
	return nil
}

// GetListed returns the full historical listing sequence, delisted entries
// included; callers filter as needed.
func (e *Engine) GetListed() ([]*ListedAsset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	listings, err := e.state.ListingsGet()
	if err != nil {
		return nil, err
	}
	out := make([]*ListedAsset, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.Clone())
	}
	return out, nil
}

// GetOffer returns the canonical offer record by identifier.
func (e *Engine) GetOffer(offerID uint64) (*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadOffer(offerID)
}

// GetOffersByAsset returns the per-asset offer history. Entries are snapshots
// taken at creation time, not live views of the canonical records.
func (e *Engine) GetOffersByAsset(assetContract crypto.Address, assetID uint64) ([]*Offer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	history, err := e.state.HistoryGet(AssetKey(assetContract, assetID))
	if err != nil {
		return nil, err
	}
	out := make([]*Offer, 0, len(history))
	for _, o := range history {
		out = append(out, o.Clone())
	}
	return out, nil
}

// GetInterest previews the interest an offer would accrue over the given
// elapsed window using exactly the arithmetic the repayment path applies.
func (e *Engine) GetInterest(offerID uint64, elapsed int64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	offer, err := e.loadOffer(offerID)
	if err != nil {
		return nil, err
	}
	return Interest(offer.Principal, offer.InterestRateBps, offer.Duration, elapsed), nil
}

func (e *Engine) loadOffer(id uint64) (*Offer, error) {
	offer, ok, err := e.state.OfferGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || offer == nil {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

// liveListing scans the listing sequence for the first live match. Linear scan
// is acceptable: listing volume is small and delisting is infrequent.
func (e *Engine) liveListing(assetContract crypto.Address, assetID uint64) (*ListedAsset, error) {
	listings, err := e.state.ListingsGet()
	if err != nil {
		return nil, err
	}
	for _, l := range listings {
		if l != nil && l.IsListed && l.AssetContract.Equal(assetContract) && l.AssetID == assetID {
			return l, nil
		}
	}
	return nil, nil
}

// delist clears the first live listing for the pair and the listed-pair index.
// It returns the cleared record, or nil when the pair was not live.
func (e *Engine) delist(assetContract crypto.Address, assetID uint64) (*ListedAsset, error) {
	listings, err := e.state.ListingsGet()
	if err != nil {
		return nil, err
	}
	for _, l := range listings {
		if l != nil && l.IsListed && l.AssetContract.Equal(assetContract) && l.AssetID == assetID {
			l.IsListed = false
			if err := e.state.ListingsPut(listings); err != nil {
				return nil, err
			}
			if err := e.state.SetListedPair(AssetKey(assetContract, assetID), false); err != nil {
				return nil, err
			}
			return l, nil
		}
	}
	return nil, nil
}
