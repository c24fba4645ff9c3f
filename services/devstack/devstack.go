// Package devstack provides in-process implementations of the credit engine's
// core external adapters (bank, account NFT registry, money market and oracle)
// for local development and testing. Swap, zap, vault and incentive adapters
// are not included; the engine reports them as not configured. A production
// deployment replaces the stack with clients for the real services.
package devstack

import (
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"creditmanager/native/credit"
	"creditmanager/native/params"
)

// Bank is a thread-safe in-memory coin ledger.
type Bank struct {
	mu       sync.Mutex
	balances map[string]map[string]*big.Int
}

func NewBank() *Bank {
	return &Bank{balances: make(map[string]map[string]*big.Int)}
}

// Mint credits coins out of thin air, used to fund dev wallets and the money
// market's liquidity address.
func (b *Bank) Mint(addr string, coins ...credit.Coin) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, coin := range coins {
		b.credit(addr, coin.Denom, coin.Amount)
	}
}

func (b *Bank) credit(addr, denom string, amount *big.Int) {
	if b.balances[addr] == nil {
		b.balances[addr] = make(map[string]*big.Int)
	}
	prev := b.balances[addr][denom]
	if prev == nil {
		prev = big.NewInt(0)
	}
	b.balances[addr][denom] = new(big.Int).Add(prev, amount)
}

func (b *Bank) Balance(addr, denom string) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[addr] == nil || b.balances[addr][denom] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(b.balances[addr][denom]), nil
}

func (b *Bank) Send(from, to string, coins []credit.Coin) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, coin := range coins {
		have := big.NewInt(0)
		if b.balances[from] != nil && b.balances[from][coin.Denom] != nil {
			have = b.balances[from][coin.Denom]
		}
		if have.Cmp(coin.Amount) < 0 {
			return fmt.Errorf("devstack bank: %s has %s %s, needs %s", from, have, coin.Denom, coin.Amount)
		}
		b.balances[from][coin.Denom] = new(big.Int).Sub(have, coin.Amount)
		b.credit(to, coin.Denom, coin.Amount)
	}
	return nil
}

// NFT is a sequential token mint acting as the account ownership registry.
type NFT struct {
	mu     sync.Mutex
	next   uint64
	owners map[string]string
}

func NewNFT() *NFT {
	return &NFT{owners: make(map[string]string)}
}

func (n *NFT) Mint(owner string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	id := strconv.FormatUint(n.next, 10)
	n.owners[id] = owner
	return id, nil
}

func (n *NFT) OwnerOf(tokenID string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	owner, ok := n.owners[tokenID]
	if !ok {
		return "", fmt.Errorf("devstack nft: unknown token %s", tokenID)
	}
	return owner, nil
}

func (n *NFT) UpdateConfig(map[string]string) error { return nil }

// RedBank is a zero-interest in-memory money market. Liquidity lives under its
// own bank address; borrows and repays move coins against the manager address.
type RedBank struct {
	mu      sync.Mutex
	bank    *Bank
	address string
	manager string
	debt    map[string]*big.Int
	lent    map[string]*big.Int
}

func NewRedBank(bank *Bank, address, manager string) *RedBank {
	return &RedBank{
		bank:    bank,
		address: address,
		manager: manager,
		debt:    make(map[string]*big.Int),
		lent:    make(map[string]*big.Int),
	}
}

func (r *RedBank) add(m map[string]*big.Int, denom string, delta *big.Int) error {
	prev := m[denom]
	if prev == nil {
		prev = big.NewInt(0)
	}
	next := new(big.Int).Add(prev, delta)
	if next.Sign() < 0 {
		return fmt.Errorf("devstack red bank: %s position for %s would go negative", denom, r.manager)
	}
	m[denom] = next
	return nil
}

func (r *RedBank) Borrow(denom string, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.bank.Send(r.address, r.manager, []credit.Coin{{Denom: denom, Amount: amount}}); err != nil {
		return err
	}
	return r.add(r.debt, denom, amount)
}

func (r *RedBank) Repay(denom string, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.bank.Send(r.manager, r.address, []credit.Coin{{Denom: denom, Amount: amount}}); err != nil {
		return err
	}
	return r.add(r.debt, denom, new(big.Int).Neg(amount))
}

func (r *RedBank) Lend(denom string, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.bank.Send(r.manager, r.address, []credit.Coin{{Denom: denom, Amount: amount}}); err != nil {
		return err
	}
	return r.add(r.lent, denom, amount)
}

func (r *RedBank) Reclaim(denom string, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.bank.Send(r.address, r.manager, []credit.Coin{{Denom: denom, Amount: amount}}); err != nil {
		return err
	}
	return r.add(r.lent, denom, new(big.Int).Neg(amount))
}

func (r *RedBank) UnderlyingDebt(denom string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.debt[denom] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(r.debt[denom]), nil
}

func (r *RedBank) UnderlyingLent(denom string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lent[denom] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(r.lent[denom]), nil
}

func (r *RedBank) MarketDeposits(denom string) (*big.Int, error) {
	return r.UnderlyingLent(denom)
}

// Oracle serves the reference prices seeded into the parameter registry.
type Oracle struct {
	registry *params.Registry
}

func NewOracle(registry *params.Registry) *Oracle {
	return &Oracle{registry: registry}
}

func (o *Oracle) Price(denom string, _ credit.PriceKind) (decimal.Decimal, error) {
	price, ok := o.registry.Price(denom)
	if !ok {
		return decimal.Zero, credit.MissingPriceError{Denom: denom}
	}
	return price, nil
}
