package token

import (
	"errors"
	"math/big"

	"lendchain/core/types"
	"lendchain/crypto"
)

var (
	errNilState            = errors.New("token ledger: state not configured")
	errInvalidAmount       = errors.New("token ledger: amount must be positive")
	errInsufficientBalance = errors.New("token ledger: insufficient balance")
)

// ErrInsufficientBalance is surfaced to engines that need to distinguish a
// funding failure from other transfer errors.
var ErrInsufficientBalance = errInsufficientBalance

type ledgerState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// Ledger implements the fungible-asset capability set consumed by the lending
// and pool engines: balance lookup and atomic transfers between accounts. A
// transfer either applies in full or returns an error with no partial effect.
type Ledger struct {
	state ledgerState
}

// NewLedger constructs an unwired ledger. SetState must be called before use.
func NewLedger() *Ledger {
	return &Ledger{}
}

// SetState wires the ledger to the external persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

// BalanceOf returns the current balance for the given address. Unknown
// addresses report a zero balance.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	acc = ensureAccount(acc)
	return new(big.Int).Set(acc.Balance), nil
}

// Transfer moves amount from one account to another. The engines invoke this
// as the protocol-custody operator, so no allowance bookkeeping applies; the
// whole call aborts when the source balance is short.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	fromAcc, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = ensureAccount(fromAcc)
	toAcc = ensureAccount(toAcc)
	if fromAcc.Balance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}

// TransferFrom pulls amount from a third-party account into the destination.
// It mirrors the standardized fungible capability surface; custody authority is
// implicit because the engines are the only callers.
func (l *Ledger) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	return l.Transfer(from, to, amount)
}

// Mint credits freshly issued units to an account. Only genesis bootstrap uses
// this.
func (l *Ledger) Mint(addr crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return l.state.PutAccount(addr, acc)
}
