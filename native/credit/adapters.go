package credit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceKind selects the oracle feed. Liquidation pricing may come from a
// slower-moving feed than the default one.
type PriceKind string

const (
	PriceKindDefault     PriceKind = "default"
	PriceKindLiquidation PriceKind = "liquidation"
)

// Bank tracks coin balances held by wallet-level addresses, including the
// credit manager's own address. Adapter results are reconciled by observing
// the manager's balance before and after an adapter call.
type Bank interface {
	Balance(addr, denom string) (*big.Int, error)
	Send(from, to string, coins []Coin) error
}

// AccountNFT is the external ownership registry for credit account tokens.
type AccountNFT interface {
	Mint(owner string) (string, error)
	OwnerOf(tokenID string) (string, error)
	UpdateConfig(params map[string]string) error
}

// RedBank is the shared money market the credit manager borrows from and
// lends to on behalf of every account.
type RedBank interface {
	Borrow(denom string, amount *big.Int) error
	Repay(denom string, amount *big.Int) error
	Lend(denom string, amount *big.Int) error
	Reclaim(denom string, amount *big.Int) error
	// UnderlyingDebt is the manager's total debt in the denom, including
	// interest accrued since the last observation.
	UnderlyingDebt(denom string) (*big.Int, error)
	// UnderlyingLent is the manager's total supplied principal in the denom.
	UnderlyingLent(denom string) (*big.Int, error)
	// MarketDeposits is the total principal held in the market for the denom,
	// used for protocol-wide deposit cap checks.
	MarketDeposits(denom string) (*big.Int, error)
}

// Oracle prices denoms in the protocol base unit.
type Oracle interface {
	Price(denom string, kind PriceKind) (decimal.Decimal, error)
}

// Swapper executes exact-in swaps against external liquidity.
type Swapper interface {
	SwapExactIn(coinIn Coin, denomOut string, minReceive *big.Int, route string) error
}

// Zapper packages swap + provide-liquidity behind a single LP denom action.
type Zapper interface {
	EstimateProvideLiquidity(coinsIn []Coin, lpDenom string) (*big.Int, error)
	ProvideLiquidity(coinsIn []Coin, lpDenom string, minReceive *big.Int) error
	EstimateWithdrawLiquidity(lpCoin Coin) ([]Coin, error)
	WithdrawLiquidity(lpCoin Coin, minReceive []Coin) error
}

// VaultInfo describes a vault adapter's denominations and lockup.
type VaultInfo struct {
	BaseDenom  string
	VaultToken string
	// Lockup is the unbonding period in seconds; zero means shares redeem
	// immediately.
	Lockup uint64
}

// Vault is the adapter for a single yield vault.
type Vault interface {
	Info() (VaultInfo, error)
	Deposit(coin Coin) error
	Redeem(shares *big.Int) error
	RequestUnlock(shares *big.Int) (uint64, error)
	WithdrawUnlocked(id uint64) error
	PreviewRedeem(shares *big.Int) (*big.Int, error)
}

// VaultRegistry resolves vault adapters by address.
type VaultRegistry interface {
	Adapter(vault string) (Vault, bool)
}

// Incentives is the external rewards distributor for staked LP positions.
type Incentives interface {
	// BalanceChange notifies the distributor of an account's staked LP amount
	// before the change it is about to observe.
	BalanceChange(accountID, lpDenom string, previousAmount *big.Int) error
	ClaimRewards(accountID string) ([]Coin, error)
}

// ParamsRegistry is the read-only global parameter source. Missing entries
// are reported as (nil, nil).
type ParamsRegistry interface {
	AssetParams(denom string) (*AssetParams, error)
	VaultConfig(vault string) (*VaultConfig, error)
	TargetHealthFactor() (decimal.Decimal, error)
	CloseFactor() (decimal.Decimal, error)
}
