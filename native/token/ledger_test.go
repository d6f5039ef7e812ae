package token

import (
	"errors"
	"math/big"
	"testing"

	"lendchain/core/types"
	"lendchain/crypto"
)

func makeAddress(fill byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = fill
	}
	return crypto.NewAddress(crypto.LendPrefix, buf)
}

type mockLedgerState struct {
	accounts map[string]*types.Account
}

func newMockLedgerState() *mockLedgerState {
	return &mockLedgerState{accounts: make(map[string]*types.Account)}
}

func (m *mockLedgerState) GetAccount(addr crypto.Address) (*types.Account, error) {
	if acc, ok := m.accounts[string(addr.Bytes())]; ok {
		return &types.Account{Nonce: acc.Nonce, Balance: new(big.Int).Set(acc.Balance)}, nil
	}
	return &types.Account{Balance: big.NewInt(0)}, nil
}

func (m *mockLedgerState) PutAccount(addr crypto.Address, account *types.Account) error {
	m.accounts[string(addr.Bytes())] = account
	return nil
}

func newLedger() (*Ledger, *mockLedgerState) {
	state := newMockLedgerState()
	ledger := NewLedger()
	ledger.SetState(state)
	return ledger, state
}

func TestTransferMovesBalance(t *testing.T) {
	ledger, _ := newLedger()
	alice := makeAddress(0xA1)
	bob := makeAddress(0xB2)
	if err := ledger.Mint(alice, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.Transfer(alice, bob, big.NewInt(200)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBal, err := ledger.BalanceOf(alice)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	bobBal, err := ledger.BalanceOf(bob)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if aliceBal.Cmp(big.NewInt(300)) != 0 || bobBal.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected balances: alice=%s bob=%s", aliceBal, bobBal)
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	ledger, state := newLedger()
	alice := makeAddress(0xA1)
	bob := makeAddress(0xB2)
	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.Transfer(alice, bob, big.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	// No partial effect on failure.
	if acc := state.accounts[string(alice.Bytes())]; acc.Balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected alice untouched, got %s", acc.Balance)
	}
	if _, ok := state.accounts[string(bob.Bytes())]; ok {
		t.Fatalf("expected bob never persisted")
	}
}

func TestTransferRejectsNonPositiveAmounts(t *testing.T) {
	ledger, _ := newLedger()
	alice := makeAddress(0xA1)
	bob := makeAddress(0xB2)
	if err := ledger.Transfer(alice, bob, big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(-5)); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if err := ledger.Transfer(alice, bob, nil); err == nil {
		t.Fatalf("expected error for nil amount")
	}
}

func TestUnknownAccountReadsZero(t *testing.T) {
	ledger, _ := newLedger()
	bal, err := ledger.BalanceOf(makeAddress(0xC3))
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("expected zero, got %s", bal)
	}
}
