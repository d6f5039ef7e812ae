package lendpool

import (
	"math/big"

	"lendchain/core/types"
	"lendchain/crypto"
)

const (
	EventTypeDeposit     = "lendpool.deposit"
	EventTypeWithdraw    = "lendpool.withdraw"
	EventTypeDistributed = "lendpool.interest.distributed"
)

// NewDepositEvent returns the canonical event payload for a provider deposit.
func NewDepositEvent(provider crypto.Address, amount, balance *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDeposit, Attributes: map[string]string{
		"provider": provider.String(),
		"amount":   bigString(amount),
		"balance":  bigString(balance),
	}}
}

// NewWithdrawEvent returns the canonical event payload for a provider
// withdrawal.
func NewWithdrawEvent(provider crypto.Address, amount, balance *big.Int) *types.Event {
	return &types.Event{Type: EventTypeWithdraw, Attributes: map[string]string{
		"provider": provider.String(),
		"amount":   bigString(amount),
		"balance":  bigString(balance),
	}}
}

// NewDistributedEvent returns the canonical event payload for a pro-rata
// interest distribution, recording the undistributed rounding dust retained by
// the pool.
func NewDistributedEvent(amount, paid, dust *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDistributed, Attributes: map[string]string{
		"amount": bigString(amount),
		"paid":   bigString(paid),
		"dust":   bigString(dust),
	}}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
