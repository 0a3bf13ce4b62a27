package token

import (
	"fmt"

	"github.com/google/uuid"
)

// DebtToken is the fungible synthetic-asset ledger the position ledger mints
// into and burns from. Amounts are fixed-point at fixed.AmountScale.
type DebtToken interface {
	Mint(to uuid.UUID, amount int64) error
	BurnFrom(holder uuid.UUID, amount int64) error
	Transfer(from, to uuid.UUID, amount int64) error
	BalanceOf(holder uuid.UUID) int64
	TotalSupply() int64
}

// Bank holds reserve-asset balances for external accounts. Positions lock
// reserve by debiting the depositor; payouts credit the receiver. The bank
// never tracks per-position collateral — that is the vault's job.
type Bank interface {
	Credit(account uuid.UUID, amount int64)
	Debit(account uuid.UUID, amount int64) error
	BalanceOf(account uuid.UUID) int64
}

// InMemoryToken is the concrete debt-token adapter. Not safe for concurrent
// use — all mutation goes through the single-threaded engine.
type InMemoryToken struct {
	balances map[uuid.UUID]int64
	supply   int64
}

func NewInMemoryToken() *InMemoryToken {
	return &InMemoryToken{balances: make(map[uuid.UUID]int64)}
}

func (t *InMemoryToken) Mint(to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("token: mint amount must be positive, got %d", amount)
	}
	if to == uuid.Nil {
		return fmt.Errorf("token: mint to nil holder")
	}
	t.balances[to] += amount
	t.supply += amount
	return nil
}

func (t *InMemoryToken) BurnFrom(holder uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("token: burn amount must be positive, got %d", amount)
	}
	if t.balances[holder] < amount {
		return fmt.Errorf("token: burn %d exceeds balance %d of %s", amount, t.balances[holder], holder)
	}
	t.balances[holder] -= amount
	t.supply -= amount
	return nil
}

func (t *InMemoryToken) Transfer(from, to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("token: transfer amount must be positive, got %d", amount)
	}
	if t.balances[from] < amount {
		return fmt.Errorf("token: transfer %d exceeds balance %d of %s", amount, t.balances[from], from)
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}

func (t *InMemoryToken) BalanceOf(holder uuid.UUID) int64 {
	return t.balances[holder]
}

func (t *InMemoryToken) TotalSupply() int64 {
	return t.supply
}

// Balances returns a copy of all holder balances (snapshots).
func (t *InMemoryToken) Balances() map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(t.balances))
	for k, v := range t.balances {
		out[k] = v
	}
	return out
}

// Restore replaces token state from a snapshot.
func (t *InMemoryToken) Restore(balances map[uuid.UUID]int64) {
	t.balances = make(map[uuid.UUID]int64, len(balances))
	t.supply = 0
	for k, v := range balances {
		t.balances[k] = v
		t.supply += v
	}
}

// InMemoryBank is the concrete reserve-asset bank adapter.
type InMemoryBank struct {
	balances map[uuid.UUID]int64
}

func NewInMemoryBank() *InMemoryBank {
	return &InMemoryBank{balances: make(map[uuid.UUID]int64)}
}

func (b *InMemoryBank) Credit(account uuid.UUID, amount int64) {
	if amount <= 0 {
		return
	}
	b.balances[account] += amount
}

func (b *InMemoryBank) Debit(account uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("bank: debit amount must be positive, got %d", amount)
	}
	if b.balances[account] < amount {
		return fmt.Errorf("bank: debit %d exceeds balance %d of %s", amount, b.balances[account], account)
	}
	b.balances[account] -= amount
	return nil
}

func (b *InMemoryBank) BalanceOf(account uuid.UUID) int64 {
	return b.balances[account]
}

// Balances returns a copy of all account balances (snapshots).
func (b *InMemoryBank) Balances() map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(b.balances))
	for k, v := range b.balances {
		out[k] = v
	}
	return out
}

// Restore replaces bank state from a snapshot.
func (b *InMemoryBank) Restore(balances map[uuid.UUID]int64) {
	b.balances = make(map[uuid.UUID]int64, len(balances))
	for k, v := range balances {
		b.balances[k] = v
	}
}
