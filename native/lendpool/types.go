package lendpool

import (
	"math/big"

	"lendchain/crypto"
)

// State is the pooled-liquidity accounting ledger: per-provider balances, the
// provider roster and running totals. Invariants: TotalDeposits always equals
// the sum of Deposits, and Depositors contains exactly the providers with a
// nonzero balance.
type State struct {
	TotalDeposits     *big.Int            `json:"totalDeposits"`
	TotalInterestPaid *big.Int            `json:"totalInterestPaid"`
	Deposits          map[string]*big.Int `json:"deposits"`
	Depositors        []crypto.Address    `json:"depositors"`
}

// NewState returns an empty pool ledger.
func NewState() *State {
	return &State{
		TotalDeposits:     big.NewInt(0),
		TotalInterestPaid: big.NewInt(0),
		Deposits:          make(map[string]*big.Int),
	}
}

func (s *State) normalize() *State {
	if s == nil {
		return NewState()
	}
	if s.TotalDeposits == nil {
		s.TotalDeposits = big.NewInt(0)
	}
	if s.TotalInterestPaid == nil {
		s.TotalInterestPaid = big.NewInt(0)
	}
	if s.Deposits == nil {
		s.Deposits = make(map[string]*big.Int)
	}
	return s
}

// BalanceOf returns the recorded deposit balance for a provider.
func (s *State) BalanceOf(addr crypto.Address) *big.Int {
	if s == nil || s.Deposits == nil {
		return big.NewInt(0)
	}
	if balance, ok := s.Deposits[addr.String()]; ok && balance != nil {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}

// Clone returns a deep copy of the pool state.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	clone := NewState()
	clone.TotalDeposits.Set(s.TotalDeposits)
	clone.TotalInterestPaid.Set(s.TotalInterestPaid)
	for k, v := range s.Deposits {
		if v != nil {
			clone.Deposits[k] = new(big.Int).Set(v)
		}
	}
	clone.Depositors = append([]crypto.Address(nil), s.Depositors...)
	return clone
}
