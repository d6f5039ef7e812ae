package lendpool

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"lendchain/crypto"
	nativecommon "lendchain/native/common"
)

func makeAddress(fill byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = fill
	}
	return crypto.NewAddress(crypto.LendPrefix, buf)
}

type mockPoolState struct {
	pool *State
}

func (m *mockPoolState) PoolGet() (*State, error) {
	if m.pool == nil {
		return NewState(), nil
	}
	return m.pool.Clone(), nil
}

func (m *mockPoolState) PoolPut(state *State) error {
	m.pool = state.Clone()
	return nil
}

type mockLedger struct {
	balances map[string]*big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[string]*big.Int)}
}

func (m *mockLedger) set(addr crypto.Address, amount int64) {
	m.balances[string(addr.Bytes())] = big.NewInt(amount)
}

func (m *mockLedger) get(addr crypto.Address) *big.Int {
	if bal, ok := m.balances[string(addr.Bytes())]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (m *mockLedger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	return new(big.Int).Set(m.get(addr)), nil
}

func (m *mockLedger) Transfer(from, to crypto.Address, amount *big.Int) error {
	fromBal := m.get(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("mock ledger: insufficient balance")
	}
	m.balances[string(from.Bytes())] = new(big.Int).Sub(fromBal, amount)
	m.balances[string(to.Bytes())] = new(big.Int).Add(m.get(to), amount)
	return nil
}

type stubPauses struct {
	modules map[string]bool
}

func (s stubPauses) IsPaused(module string) bool {
	return s.modules[module]
}

func newPoolHarness() (*Engine, *mockPoolState, *mockLedger, crypto.Address) {
	state := &mockPoolState{}
	ledger := newMockLedger()
	poolAddr := makeAddress(0x01)
	engine := NewEngine(poolAddr)
	engine.SetState(state)
	engine.SetLedger(ledger)
	return engine, state, ledger, poolAddr
}

func TestDepositTracksProviders(t *testing.T) {
	engine, state, ledger, poolAddr := newPoolHarness()
	alice := makeAddress(0xA1)
	ledger.set(alice, 1_000)

	if err := engine.Deposit(alice, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := engine.Deposit(alice, big.NewInt(5_000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := engine.Deposit(alice, big.NewInt(600)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if bal := ledger.get(poolAddr); bal.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected pool custody 600, got %s", bal)
	}
	if got := state.pool.BalanceOf(alice); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected recorded deposit 600, got %s", got)
	}
	if len(state.pool.Depositors) != 1 {
		t.Fatalf("expected 1 roster entry, got %d", len(state.pool.Depositors))
	}

	// A second deposit tops up without duplicating the roster entry.
	if err := engine.Deposit(alice, big.NewInt(100)); err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if got := state.pool.BalanceOf(alice); got.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("expected recorded deposit 700, got %s", got)
	}
	if len(state.pool.Depositors) != 1 {
		t.Fatalf("expected roster unchanged, got %d entries", len(state.pool.Depositors))
	}
}

func TestWithdrawChecksRecordedAndCustody(t *testing.T) {
	engine, state, ledger, poolAddr := newPoolHarness()
	alice := makeAddress(0xA1)
	ledger.set(alice, 1_000)
	if err := engine.Deposit(alice, big.NewInt(600)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := engine.Withdraw(alice, big.NewInt(601)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Simulate capital lent out in an open offer: custody drops below the
	// recorded deposit.
	if err := ledger.Transfer(poolAddr, makeAddress(0xFF), big.NewInt(500)); err != nil {
		t.Fatalf("drain custody: %v", err)
	}
	if err := engine.Withdraw(alice, big.NewInt(600)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity, got %v", err)
	}

	if err := engine.Withdraw(alice, big.NewInt(100)); err != nil {
		t.Fatalf("partial withdraw: %v", err)
	}
	if got := state.pool.BalanceOf(alice); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected recorded deposit 500, got %s", got)
	}
}

func TestFullWithdrawalLeavesRoster(t *testing.T) {
	engine, state, ledger, _ := newPoolHarness()
	alice := makeAddress(0xA1)
	bob := makeAddress(0xB2)
	carol := makeAddress(0xC3)
	for _, p := range []crypto.Address{alice, bob, carol} {
		ledger.set(p, 1_000)
		if err := engine.Deposit(p, big.NewInt(100)); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}

	if err := engine.Withdraw(alice, big.NewInt(100)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(state.pool.Depositors) != 2 {
		t.Fatalf("expected 2 roster entries, got %d", len(state.pool.Depositors))
	}
	for _, remaining := range state.pool.Depositors {
		if remaining.Equal(alice) {
			t.Fatalf("alice should have left the roster")
		}
	}
	if _, ok := state.pool.Deposits[alice.String()]; ok {
		t.Fatalf("alice's deposit entry should be deleted")
	}
	if got := state.pool.TotalDeposits; got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected total deposits 200, got %s", got)
	}
}

func TestDistributeProRataExact(t *testing.T) {
	engine, state, ledger, poolAddr := newPoolHarness()
	alice := makeAddress(0xA1)
	bob := makeAddress(0xB2)
	ledger.set(alice, 1_000)
	ledger.set(bob, 1_000)
	if err := engine.Deposit(alice, big.NewInt(60)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Deposit(bob, big.NewInt(40)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// Interest arrives in pool custody before distribution.
	ledger.set(poolAddr, 110)
	if err := engine.DistributeInterest(big.NewInt(10)); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if bal := ledger.get(alice); bal.Cmp(big.NewInt(946)) != 0 {
		t.Fatalf("expected alice 946, got %s", bal)
	}
	if bal := ledger.get(bob); bal.Cmp(big.NewInt(964)) != 0 {
		t.Fatalf("expected bob 964, got %s", bal)
	}
	if got := state.pool.TotalInterestPaid; got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected total interest paid 10, got %s", got)
	}
	// Recorded deposits are untouched by distributions.
	if got := state.pool.BalanceOf(alice); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected recorded deposit 60, got %s", got)
	}
}

func TestDistributeRetainsDust(t *testing.T) {
	engine, state, ledger, poolAddr := newPoolHarness()
	alice := makeAddress(0xA1)
	bob := makeAddress(0xB2)
	ledger.set(alice, 1_000)
	ledger.set(bob, 1_000)
	if err := engine.Deposit(alice, big.NewInt(60)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.Deposit(bob, big.NewInt(40)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	ledger.set(poolAddr, 107)
	if err := engine.DistributeInterest(big.NewInt(7)); err != nil {
		t.Fatalf("distribute: %v", err)
	}
	// floor(60*7/100)=4, floor(40*7/100)=2; 1 unit of dust stays in custody.
	if bal := ledger.get(alice); bal.Cmp(big.NewInt(944)) != 0 {
		t.Fatalf("expected alice 944, got %s", bal)
	}
	if bal := ledger.get(bob); bal.Cmp(big.NewInt(962)) != 0 {
		t.Fatalf("expected bob 962, got %s", bal)
	}
	if bal := ledger.get(poolAddr); bal.Cmp(big.NewInt(101)) != 0 {
		t.Fatalf("expected pool custody 101, got %s", bal)
	}
	if got := state.pool.TotalInterestPaid; got.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("expected total interest paid 6, got %s", got)
	}
}

func TestDistributeEmptyPoolIsNoop(t *testing.T) {
	engine, state, ledger, poolAddr := newPoolHarness()
	ledger.set(poolAddr, 100)
	if err := engine.DistributeInterest(big.NewInt(10)); err != nil {
		t.Fatalf("distribute on empty pool: %v", err)
	}
	if bal := ledger.get(poolAddr); bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected custody untouched, got %s", bal)
	}
	if state.pool != nil && state.pool.TotalInterestPaid.Sign() != 0 {
		t.Fatalf("expected no interest recorded")
	}
}

func TestPoolPausedBlocksMutations(t *testing.T) {
	engine, _, ledger, _ := newPoolHarness()
	engine.SetPauses(stubPauses{modules: map[string]bool{moduleName: true}})
	alice := makeAddress(0xA1)
	ledger.set(alice, 1_000)

	if err := engine.Deposit(alice, big.NewInt(100)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if bal := ledger.get(alice); bal.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected balance untouched, got %s", bal)
	}
}
