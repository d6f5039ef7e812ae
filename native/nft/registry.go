package nft

import (
	"errors"

	"lendchain/crypto"
)

var (
	errNilState      = errors.New("nft registry: state not configured")
	errUnknownAsset  = errors.New("nft registry: unknown asset")
	errNotOwner      = errors.New("nft registry: caller does not own asset")
	errAlreadyMinted = errors.New("nft registry: asset already minted")
)

// ErrUnknownAsset reports a lookup against an asset that was never minted.
var ErrUnknownAsset = errUnknownAsset

// ErrNotOwner reports a transfer or approval by an account that does not hold
// the asset.
var ErrNotOwner = errNotOwner

type registryState interface {
	NFTGet(collection crypto.Address, id uint64) (*Token, bool, error)
	NFTPut(collection crypto.Address, id uint64, token *Token) error
}

// Token records the ownership state for a single non-fungible asset.
type Token struct {
	Owner    crypto.Address `json:"owner"`
	Approved crypto.Address `json:"approved,omitempty"`
}

// Registry implements the non-fungible capability set the lending engine
// consumes: exclusive, queryable ownership plus transfer and approval. Assets
// are scoped by a collection address so one registry serves every collection.
type Registry struct {
	state registryState
}

// NewRegistry constructs an unwired registry. SetState must be called before use.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetState wires the registry to the external persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

// OwnerOf returns the current owner of the asset.
func (r *Registry) OwnerOf(collection crypto.Address, id uint64) (crypto.Address, error) {
	if r == nil || r.state == nil {
		return crypto.Address{}, errNilState
	}
	token, ok, err := r.state.NFTGet(collection, id)
	if err != nil {
		return crypto.Address{}, err
	}
	if !ok || token == nil {
		return crypto.Address{}, errUnknownAsset
	}
	return token.Owner, nil
}

// TransferFrom moves the asset from its current owner to the destination. The
// source must match the recorded owner; any standing approval is cleared on
// transfer, matching exclusive-ownership semantics.
func (r *Registry) TransferFrom(collection crypto.Address, from, to crypto.Address, id uint64) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	token, ok, err := r.state.NFTGet(collection, id)
	if err != nil {
		return err
	}
	if !ok || token == nil {
		return errUnknownAsset
	}
	if !token.Owner.Equal(from) {
		return errNotOwner
	}
	token.Owner = to
	token.Approved = crypto.Address{}
	return r.state.NFTPut(collection, id, token)
}

// Approve records an operator allowed to move the asset on the owner's behalf.
func (r *Registry) Approve(collection crypto.Address, caller, operator crypto.Address, id uint64) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	token, ok, err := r.state.NFTGet(collection, id)
	if err != nil {
		return err
	}
	if !ok || token == nil {
		return errUnknownAsset
	}
	if !token.Owner.Equal(caller) {
		return errNotOwner
	}
	token.Approved = operator
	return r.state.NFTPut(collection, id, token)
}

// Mint registers a new asset under the given owner. Only genesis bootstrap
// uses this; minting an existing asset fails.
func (r *Registry) Mint(collection crypto.Address, id uint64, owner crypto.Address) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	_, ok, err := r.state.NFTGet(collection, id)
	if err != nil {
		return err
	}
	if ok {
		return errAlreadyMinted
	}
	return r.state.NFTPut(collection, id, &Token{Owner: owner})
}
