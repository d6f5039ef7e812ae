package lending

import (
	"context"
	"fmt"
	"math/big"

	lendingtypes "lendchain/native/lending"
	pooltypes "lendchain/native/lendpool"
)

// OfferTerms describes a new offer for CreateOffer and CreatePoolOffer.
type OfferTerms struct {
	AssetContract   string
	AssetID         uint64
	InterestRateBps uint64
	Duration        int64
	Amount          *big.Int
}

type listAssetParams struct {
	AssetContract string `json:"assetContract"`
	AssetID       uint64 `json:"assetId"`
	Caller        string `json:"caller"`
}

type createOfferParams struct {
	AssetContract   string `json:"assetContract"`
	AssetID         uint64 `json:"assetId"`
	InterestRateBps uint64 `json:"interestRateBps"`
	Duration        int64  `json:"duration"`
	Amount          string `json:"amount"`
	Lender          string `json:"lender,omitempty"`
	Caller          string `json:"caller,omitempty"`
}

type offerActionParams struct {
	OfferID uint64 `json:"offerId"`
	Caller  string `json:"caller"`
}

type offerIDParams struct {
	OfferID uint64 `json:"offerId"`
}

type assetParams struct {
	AssetContract string `json:"assetContract"`
	AssetID       uint64 `json:"assetId"`
}

type interestParams struct {
	OfferID uint64 `json:"offerId"`
	Elapsed int64  `json:"elapsed"`
}

type poolAmountParams struct {
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
}

type createOfferResult struct {
	OfferID uint64 `json:"offerId"`
}

type offerResult struct {
	Offer *lendingtypes.Offer `json:"offer"`
}

type offersResult struct {
	Offers []*lendingtypes.Offer `json:"offers"`
}

type listedResult struct {
	Listings []*lendingtypes.ListedAsset `json:"listings"`
}

type interestResult struct {
	Interest string `json:"interest"`
}

// PoolBalance is the provider view returned by pool mutations.
type PoolBalance struct {
	Provider string `json:"provider"`
	Balance  string `json:"balance"`
}

type poolStateResult struct {
	Pool *pooltypes.State `json:"pool"`
}

// ListAsset registers an asset for lending on behalf of its owner.
func (c *Client) ListAsset(ctx context.Context, assetContract string, assetID uint64, caller string) error {
	params := listAssetParams{AssetContract: assetContract, AssetID: assetID, Caller: caller}
	return c.Call(ctx, "lending_listAsset", params, nil)
}

// CreateOffer escrows the lender's principal against a listed asset and
// returns the new offer's identifier.
func (c *Client) CreateOffer(ctx context.Context, terms OfferTerms, lender string) (uint64, error) {
	params := createOfferParams{
		AssetContract:   terms.AssetContract,
		AssetID:         terms.AssetID,
		InterestRateBps: terms.InterestRateBps,
		Duration:        terms.Duration,
		Amount:          amountString(terms.Amount),
		Lender:          lender,
	}
	var result createOfferResult
	if err := c.Call(ctx, "lending_createOffer", params, &result); err != nil {
		return 0, err
	}
	return result.OfferID, nil
}

// CreatePoolOffer creates an offer funded from the shared liquidity pool. Only
// the configured pool operator may call it.
func (c *Client) CreatePoolOffer(ctx context.Context, terms OfferTerms, caller string) (uint64, error) {
	params := createOfferParams{
		AssetContract:   terms.AssetContract,
		AssetID:         terms.AssetID,
		InterestRateBps: terms.InterestRateBps,
		Duration:        terms.Duration,
		Amount:          amountString(terms.Amount),
		Caller:          caller,
	}
	var result createOfferResult
	if err := c.Call(ctx, "lending_createPoolOffer", params, &result); err != nil {
		return 0, err
	}
	return result.OfferID, nil
}

func (c *Client) offerAction(ctx context.Context, method string, offerID uint64, caller string) (*lendingtypes.Offer, error) {
	var result offerResult
	if err := c.Call(ctx, method, offerActionParams{OfferID: offerID, Caller: caller}, &result); err != nil {
		return nil, err
	}
	return result.Offer, nil
}

// AcceptOffer locks the caller's asset as collateral and releases the
// principal to them.
func (c *Client) AcceptOffer(ctx context.Context, offerID uint64, caller string) (*lendingtypes.Offer, error) {
	return c.offerAction(ctx, "lending_acceptOffer", offerID, caller)
}

// RepayLend settles principal plus accrued interest before expiry.
func (c *Client) RepayLend(ctx context.Context, offerID uint64, caller string) (*lendingtypes.Offer, error) {
	return c.offerAction(ctx, "lending_repayLend", offerID, caller)
}

// RedeemCollateral claims the collateral after a defaulted term.
func (c *Client) RedeemCollateral(ctx context.Context, offerID uint64, caller string) (*lendingtypes.Offer, error) {
	return c.offerAction(ctx, "lending_redeemCollateral", offerID, caller)
}

// CancelOffer withdraws an unaccepted offer and refunds the escrow.
func (c *Client) CancelOffer(ctx context.Context, offerID uint64, caller string) (*lendingtypes.Offer, error) {
	return c.offerAction(ctx, "lending_cancelOffer", offerID, caller)
}

// GetOffer fetches a single offer by identifier.
func (c *Client) GetOffer(ctx context.Context, offerID uint64) (*lendingtypes.Offer, error) {
	var result offerResult
	if err := c.Call(ctx, "lending_getOffer", offerIDParams{OfferID: offerID}, &result); err != nil {
		return nil, err
	}
	return result.Offer, nil
}

// GetOffersByAsset enumerates every offer recorded against an asset.
func (c *Client) GetOffersByAsset(ctx context.Context, assetContract string, assetID uint64) ([]*lendingtypes.Offer, error) {
	var result offersResult
	if err := c.Call(ctx, "lending_getOffersByAsset", assetParams{AssetContract: assetContract, AssetID: assetID}, &result); err != nil {
		return nil, err
	}
	return result.Offers, nil
}

// GetListed returns the listing registry.
func (c *Client) GetListed(ctx context.Context) ([]*lendingtypes.ListedAsset, error) {
	var result listedResult
	if err := c.Call(ctx, "lending_getListed", nil, &result); err != nil {
		return nil, err
	}
	return result.Listings, nil
}

// GetInterest quotes accrued interest on an offer after elapsed seconds.
func (c *Client) GetInterest(ctx context.Context, offerID uint64, elapsed int64) (*big.Int, error) {
	var result interestResult
	if err := c.Call(ctx, "lending_getInterest", interestParams{OfferID: offerID, Elapsed: elapsed}, &result); err != nil {
		return nil, err
	}
	interest, ok := new(big.Int).SetString(result.Interest, 10)
	if !ok {
		return nil, fmt.Errorf("lending client: malformed interest %q", result.Interest)
	}
	return interest, nil
}

// PoolDeposit adds liquidity on behalf of a provider.
func (c *Client) PoolDeposit(ctx context.Context, provider string, amount *big.Int) (*PoolBalance, error) {
	return c.poolAmount(ctx, "lendpool_deposit", provider, amount)
}

// PoolWithdraw removes previously deposited liquidity.
func (c *Client) PoolWithdraw(ctx context.Context, provider string, amount *big.Int) (*PoolBalance, error) {
	return c.poolAmount(ctx, "lendpool_withdraw", provider, amount)
}

func (c *Client) poolAmount(ctx context.Context, method, provider string, amount *big.Int) (*PoolBalance, error) {
	var result PoolBalance
	if err := c.Call(ctx, method, poolAmountParams{Provider: provider, Amount: amountString(amount)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PoolState returns the full pool ledger.
func (c *Client) PoolState(ctx context.Context) (*pooltypes.State, error) {
	var result poolStateResult
	if err := c.Call(ctx, "lendpool_get", nil, &result); err != nil {
		return nil, err
	}
	return result.Pool, nil
}

func amountString(amount *big.Int) string {
	if amount == nil {
		return ""
	}
	return amount.String()
}
