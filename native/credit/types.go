package credit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// AccountKind selects the rule set applied to a credit account. Default
// accounts use per-asset risk parameters, HighLeveredStrategy accounts use the
// tighter HLS correlation rules and FundManager accounts are managed vaults
// whose ownership checks go through the fund manager registry.
type AccountKind string

const (
	AccountKindDefault          AccountKind = "default"
	AccountKindHighLevered      AccountKind = "high_levered_strategy"
	AccountKindFundManager      AccountKind = "fund_manager"
	debtSharesPerCoinBorrowed               = 1_000_000
	lendSharesPerCoinSupplied               = 1_000_000
	defaultQueryLimit                       = 10
	maxQueryLimit                           = 30
)

// Coin pairs a denomination with an unsigned base-unit amount.
type Coin struct {
	Denom  string
	Amount *big.Int
}

func NewCoin(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: big.NewInt(amount)}
}

// Clone returns a deep copy to avoid callers mutating shared pointers.
func (c Coin) Clone() Coin {
	out := Coin{Denom: c.Denom}
	if c.Amount != nil {
		out.Amount = new(big.Int).Set(c.Amount)
	} else {
		out.Amount = big.NewInt(0)
	}
	return out
}

// IsPositive reports whether the coin carries a non-zero amount.
func (c Coin) IsPositive() bool {
	return c.Amount != nil && c.Amount.Sign() > 0
}

// ActionAmount is either a literal amount or a marker resolving to the
// account's full balance of the denom at the time the callback runs.
type ActionAmount struct {
	Exact          *big.Int
	AccountBalance bool
}

func ExactAmount(amount *big.Int) ActionAmount {
	return ActionAmount{Exact: amount}
}

func BalanceAmount() ActionAmount {
	return ActionAmount{AccountBalance: true}
}

// Resolve returns the concrete amount given the account's current balance.
func (a ActionAmount) Resolve(balance *big.Int) *big.Int {
	if a.AccountBalance {
		if balance == nil {
			return big.NewInt(0)
		}
		return new(big.Int).Set(balance)
	}
	if a.Exact == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.Exact)
}

// ActionCoin is a denom paired with an ActionAmount.
type ActionCoin struct {
	Denom  string
	Amount ActionAmount
}

// VaultBucket identifies one of the three storage locations a vault position
// can occupy.
type VaultBucket string

const (
	VaultBucketUnlocked  VaultBucket = "unlocked"
	VaultBucketLocked    VaultBucket = "locked"
	VaultBucketUnlocking VaultBucket = "unlocking"
)

// VaultUnlockingPosition is a single pending unlock inside a locking vault.
// IDs are allocated by the vault and never reused.
type VaultUnlockingPosition struct {
	ID        uint64
	Coin      Coin
	ReleaseAt uint64
}

// VaultPosition aggregates an account's holdings in one vault across the
// unlocked, locked and unlocking buckets.
type VaultPosition struct {
	Unlocked  *big.Int
	Locked    *big.Int
	Unlocking []VaultUnlockingPosition
}

func (p *VaultPosition) normalize() {
	if p.Unlocked == nil {
		p.Unlocked = big.NewInt(0)
	}
	if p.Locked == nil {
		p.Locked = big.NewInt(0)
	}
}

// IsEmpty reports whether every bucket is drained; empty positions are removed
// from state.
func (p *VaultPosition) IsEmpty() bool {
	p.normalize()
	return p.Unlocked.Sign() == 0 && p.Locked.Sign() == 0 && len(p.Unlocking) == 0
}

// TotalShares sums the unlocked and locked vault share buckets.
func (p *VaultPosition) TotalShares() *big.Int {
	p.normalize()
	return new(big.Int).Add(p.Unlocked, p.Locked)
}

// VaultPositionItem pairs a vault address with the position held in it.
type VaultPositionItem struct {
	Vault    string
	Position VaultPosition
}

// DebtAmount is a debt denom with both its share count and the underlying
// amount the shares currently represent.
type DebtAmount struct {
	Denom  string
	Shares *big.Int
	Amount *big.Int
}

// Positions is the full aggregate of a credit account used by queries and by
// the health computer snapshot.
type Positions struct {
	AccountID string
	Kind      AccountKind
	Deposits  []Coin
	Debts     []DebtAmount
	Lends     []Coin
	Vaults    []VaultPositionItem
	StakedLPs []Coin
}

// HealthValues is the output of the health computer for one account snapshot.
type HealthValues struct {
	TotalDebtValue                 decimal.Decimal
	TotalCollateralValue           decimal.Decimal
	MaxLTVAdjustedCollateral       decimal.Decimal
	LiqThresholdAdjustedCollateral decimal.Decimal
	// Health factors are nil when the account carries no debt.
	MaxLTVHealthFactor      *decimal.Decimal
	LiquidationHealthFactor *decimal.Decimal
	AboveMaxLTV             bool
	Liquidatable            bool
}

// HealthState is the snapshot the dispatcher records before running an action
// sequence so the terminal max-LTV assertion can compare against it.
type HealthState struct {
	HasDebt            bool
	MaxLTVHealthFactor *decimal.Decimal
}

// Healthy reports whether the snapshot was at or above max LTV, treating
// debt-free accounts as healthy.
func (s HealthState) Healthy() bool {
	if !s.HasDebt || s.MaxLTVHealthFactor == nil {
		return true
	}
	return s.MaxLTVHealthFactor.GreaterThanOrEqual(decimal.NewFromInt(1))
}

// VaultPositionValue is the valued breakdown of one vault position.
type VaultPositionValue struct {
	Vault          string
	VaultCoinValue decimal.Decimal
	UnlockingValue decimal.Decimal
	TotalValue     decimal.Decimal
}

// CoinBalance is one (account, denom, amount) row of the global deposit index.
type CoinBalance struct {
	AccountID string
	Denom     string
	Amount    *big.Int
}

// SharesBalance is one (denom, shares) row of a share ledger.
type SharesBalance struct {
	Denom  string
	Shares *big.Int
}
