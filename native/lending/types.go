package lending

import (
	"fmt"
	"math/big"
	"strconv"

	"lendchain/crypto"
)

// OfferStatus tracks where an offer sits in its lifecycle. Created and
// Accepted are the live states; the remaining values are terminal and record
// which path closed the offer.
type OfferStatus uint8

const (
	OfferCreated OfferStatus = iota
	OfferAccepted
	OfferRepaid
	OfferRedeemed
	OfferCancelled
)

// Valid reports whether the status value is within the supported range.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferCreated, OfferAccepted, OfferRepaid, OfferRedeemed, OfferCancelled:
		return true
	default:
		return false
	}
}

func (s OfferStatus) String() string {
	switch s {
	case OfferCreated:
		return "created"
	case OfferAccepted:
		return "accepted"
	case OfferRepaid:
		return "repaid"
	case OfferRedeemed:
		return "redeemed"
	case OfferCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Offer is a lender's proposal to lend a fixed principal against a specific
// pledged asset. Rate, duration and principal are fixed at creation. Borrower,
// StartTime and EndTime are stamped exactly once, on acceptance; EndTime is
// meaningless while Borrower is unset.
type Offer struct {
	ID              uint64         `json:"id"`
	AssetContract   crypto.Address `json:"assetContract"`
	AssetID         uint64         `json:"assetId"`
	Lender          crypto.Address `json:"lender"`
	Borrower        crypto.Address `json:"borrower,omitempty"`
	InterestRateBps uint64         `json:"interestRateBps"`
	Duration        int64          `json:"duration"`
	Principal       *big.Int       `json:"principal"`
	StartTime       int64          `json:"startTime"`
	EndTime         int64          `json:"endTime"`
	Active          bool           `json:"active"`
	Status          OfferStatus    `json:"status"`
	PoolFunded      bool           `json:"poolFunded,omitempty"`
}

// Accepted reports whether a borrower has taken the offer.
func (o *Offer) Accepted() bool {
	if o == nil {
		return false
	}
	return !o.Borrower.IsZero()
}

// Clone returns a deep copy of the offer so callers can safely mutate the copy
// without affecting the stored instance. The per-asset history index stores
// clones taken at creation time.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Principal != nil {
		clone.Principal = new(big.Int).Set(o.Principal)
	} else {
		clone.Principal = big.NewInt(0)
	}
	return &clone
}

// ListedAsset records one listing of a non-fungible asset as eligible
// collateral. Records are append-only: delisting clears IsListed but never
// removes the entry, so observers can reconstruct the full history.
type ListedAsset struct {
	AssetContract crypto.Address `json:"assetContract"`
	AssetID       uint64         `json:"assetId"`
	Owner         crypto.Address `json:"owner"`
	IsListed      bool           `json:"isListed"`
}

// Clone returns a copy of the listing record.
func (l *ListedAsset) Clone() *ListedAsset {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// AssetKey derives the canonical index key for an (asset contract, asset id)
// pair.
func AssetKey(contract crypto.Address, id uint64) string {
	return fmt.Sprintf("%s/%s", contract.String(), strconv.FormatUint(id, 10))
}
