package lendpool

import (
	"errors"
	"math/big"

	"lendchain/core/events"
	"lendchain/core/types"
	"lendchain/crypto"
	nativecommon "lendchain/native/common"
)

var (
	errNilState  = errors.New("lendpool engine: state not configured")
	errNilLedger = errors.New("lendpool engine: fungible ledger not configured")

	// ErrInvalidAmount rejects zero or negative deposit/withdraw amounts.
	ErrInvalidAmount = errors.New("lendpool engine: amount must be positive")
	// ErrInsufficientBalance rejects withdrawals beyond the provider's
	// recorded deposit, and deposits the provider cannot fund.
	ErrInsufficientBalance = errors.New("lendpool engine: insufficient balance")
	// ErrInsufficientLiquidity rejects withdrawals while pooled capital is
	// lent out in open offers.
	ErrInsufficientLiquidity = errors.New("lendpool engine: insufficient liquidity")
)

const moduleName = "lendpool"

type engineState interface {
	PoolGet() (*State, error)
	PoolPut(state *State) error
}

type fungibleLedger interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Transfer(from, to crypto.Address, amount *big.Int) error
}

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

// Engine maintains the pooled-liquidity ledger. Deposited capital is custodied
// under the pool address; the lending engine draws on it for pool-funded
// offers and routes repaid interest back through DistributeInterest.
type Engine struct {
	state       engineState
	ledger      fungibleLedger
	poolAddress crypto.Address
	emitter     events.Emitter
	guard       nativecommon.ReentrancyGuard
	pauses      nativecommon.PauseView
}

// NewEngine constructs a pool engine custodying deposits under the given pool
// address.
func NewEngine(poolAddr crypto.Address) *Engine {
	return &Engine{
		poolAddress: poolAddr,
		emitter:     events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the fungible-asset ledger used for deposit custody.
func (e *Engine) SetLedger(ledger fungibleLedger) { e.ledger = ledger }

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

// PoolAddress returns the custody address holding pooled capital.
func (e *Engine) PoolAddress() crypto.Address {
	return e.poolAddress
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(poolEvent{evt: event})
}

func (e *Engine) begin() (func(), error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	return e.guard.Exit, nil
}

// Deposit pulls amount from the provider into pool custody. A provider enters
// the roster the instant their balance transitions from zero to positive.
func (e *Engine) Deposit(provider crypto.Address, amount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := e.ledger.BalanceOf(provider)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if err := e.ledger.Transfer(provider, e.poolAddress, amount); err != nil {
		return err
	}
	key := provider.String()
	current := pool.BalanceOf(provider)
	if current.Sign() == 0 {
		pool.Depositors = append(pool.Depositors, provider)
	}
	updated := current.Add(current, amount)
	pool.Deposits[key] = updated
	pool.TotalDeposits = new(big.Int).Add(pool.TotalDeposits, amount)
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewDepositEvent(provider, amount, updated))
	return nil
}

// Withdraw pays amount back to the provider. When the balance reaches zero the
// provider leaves the roster via swap-with-last-and-pop; roster order is not
// meaningful and must not be relied upon.
func (e *Engine) Withdraw(provider crypto.Address, amount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	current := pool.BalanceOf(provider)
	if current.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	liquidity, err := e.ledger.BalanceOf(e.poolAddress)
	if err != nil {
		return err
	}
	if liquidity.Cmp(amount) < 0 {
		return ErrInsufficientLiquidity
	}
	if err := e.ledger.Transfer(e.poolAddress, provider, amount); err != nil {
		return err
	}
	remaining := current.Sub(current, amount)
	key := provider.String()
	if remaining.Sign() == 0 {
		delete(pool.Deposits, key)
		for i, addr := range pool.Depositors {
			if addr.Equal(provider) {
				last := len(pool.Depositors) - 1
				pool.Depositors[i] = pool.Depositors[last]
				pool.Depositors = pool.Depositors[:last]
				break
			}
		}
	} else {
		pool.Deposits[key] = remaining
	}
	pool.TotalDeposits = new(big.Int).Sub(pool.TotalDeposits, amount)
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewWithdrawEvent(provider, amount, remaining))
	return nil
}

// DistributeInterest pays each depositor their pro-rata floor share of the
// interest amount out of pool custody. The rounding remainder stays in the
// pool: a bounded dust retention, not a loss. No-op when the pool is empty.
func (e *Engine) DistributeInterest(amount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()

	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if pool.TotalDeposits.Sign() == 0 {
		return nil
	}
	paid := big.NewInt(0)
	for _, provider := range pool.Depositors {
		deposit := pool.BalanceOf(provider)
		share := new(big.Int).Mul(deposit, amount)
		share.Quo(share, pool.TotalDeposits)
		if share.Sign() == 0 {
			continue
		}
		if err := e.ledger.Transfer(e.poolAddress, provider, share); err != nil {
			return err
		}
		paid.Add(paid, share)
	}
	pool.TotalInterestPaid = new(big.Int).Add(pool.TotalInterestPaid, paid)
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	dust := new(big.Int).Sub(amount, paid)
	e.emit(NewDistributedEvent(amount, paid, dust))
	return nil
}

// Get returns a snapshot of the pool ledger.
func (e *Engine) Get() (*State, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

func (e *Engine) loadPool() (*State, error) {
	pool, err := e.state.PoolGet()
	if err != nil {
		return nil, err
	}
	return pool.normalize(), nil
}
