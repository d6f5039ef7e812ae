package lending

import (
	"strconv"

	"lendchain/core/types"
)

const (
	EventTypeNFTListed      = "lending.nft.listed"
	EventTypeOfferCreated   = "lending.offer.created"
	EventTypeOfferAccepted  = "lending.offer.accepted"
	EventTypeLendRepaid     = "lending.lend.repaid"
	EventTypeNFTClaimed     = "lending.nft.claimed"
	EventTypeOfferCancelled = "lending.offer.cancelled"
)

// NewListedEvent returns the canonical event payload emitted when an asset is
// pledged as eligible collateral.
func NewListedEvent(l *ListedAsset) *types.Event {
	attrs := make(map[string]string)
	if l != nil {
		attrs["assetContract"] = l.AssetContract.String()
		attrs["assetId"] = strconv.FormatUint(l.AssetID, 10)
		attrs["owner"] = l.Owner.String()
	}
	return &types.Event{Type: EventTypeNFTListed, Attributes: attrs}
}

// NewOfferCreatedEvent returns the canonical event payload for a new offer.
func NewOfferCreatedEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferCreated, o, nil)
}

// NewOfferAcceptedEvent returns the canonical event payload emitted when a
// borrower takes an offer.
func NewOfferAcceptedEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferAccepted, o, nil)
}

// NewLendRepaidEvent returns the canonical event payload for an on-time
// repayment, carrying the interest actually charged.
func NewLendRepaidEvent(o *Offer, interest string) *types.Event {
	return newOfferEvent(EventTypeLendRepaid, o, map[string]string{"interest": interest})
}

// NewNFTClaimedEvent returns the canonical event payload for a default
// redemption by the lender.
func NewNFTClaimedEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeNFTClaimed, o, nil)
}

// NewOfferCancelledEvent returns the canonical event payload emitted when the
// lender withdraws an unaccepted offer.
func NewOfferCancelledEvent(o *Offer) *types.Event {
	return newOfferEvent(EventTypeOfferCancelled, o, nil)
}

func newOfferEvent(eventType string, o *Offer, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["offerId"] = strconv.FormatUint(o.ID, 10)
		attrs["assetContract"] = o.AssetContract.String()
		attrs["assetId"] = strconv.FormatUint(o.AssetID, 10)
		attrs["lender"] = o.Lender.String()
		if o.Accepted() {
			attrs["borrower"] = o.Borrower.String()
			attrs["startTime"] = strconv.FormatInt(o.StartTime, 10)
			attrs["endTime"] = strconv.FormatInt(o.EndTime, 10)
		}
		attrs["interestRateBps"] = strconv.FormatUint(o.InterestRateBps, 10)
		attrs["duration"] = strconv.FormatInt(o.Duration, 10)
		if o.Principal != nil {
			attrs["principal"] = o.Principal.String()
		}
		attrs["status"] = o.Status.String()
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
