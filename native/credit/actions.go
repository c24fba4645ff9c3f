package credit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Action is one step of an UpdateCreditAccount sequence. Each variant maps to
// exactly one internal callback; the dispatcher executes them in declared
// order followed by the post-sequence assertions.
type Action interface {
	isAction()
}

// Deposit credits attached funds to the account.
type Deposit struct {
	Coin Coin
}

// Withdraw sends deposited coins back to the account owner's wallet.
type Withdraw struct {
	Coin ActionCoin
	// Recipient overrides the destination wallet; empty means the caller.
	Recipient string
}

// Borrow draws the coin from the Red Bank against the account's collateral.
type Borrow struct {
	Coin Coin
}

// Lend moves deposited coins into the Red Bank supply side.
type Lend struct {
	Coin ActionCoin
}

// Reclaim withdraws previously lent coins back into deposits.
type Reclaim struct {
	Coin ActionCoin
}

// Repay burns debt shares on the recipient account, funded from the acting
// account's deposits. A nil RecipientAccountID repays the acting account.
type Repay struct {
	RecipientAccountID string
	Coin               ActionCoin
}

// EnterVault deposits coins into a whitelisted yield vault.
type EnterVault struct {
	Vault string
	Coin  ActionCoin
}

// ExitVault redeems unlocked vault shares immediately.
type ExitVault struct {
	Vault  string
	Amount ActionAmount
}

// RequestVaultUnlock starts the unbonding clock on locked vault shares.
type RequestVaultUnlock struct {
	Vault  string
	Amount ActionAmount
}

// ExitVaultUnlocked withdraws a matured unlocking position. It succeeds even
// when the vault has since been de-whitelisted.
type ExitVaultUnlocked struct {
	Vault string
	ID    uint64
}

// SwapExactIn swaps deposited coins through the swap adapter, bounded by the
// slippage tolerance.
type SwapExactIn struct {
	CoinIn   ActionCoin
	DenomOut string
	Slippage decimal.Decimal
	Route    string
}

// ProvideLiquidity zaps deposited coins into an LP denom.
type ProvideLiquidity struct {
	CoinsIn  []ActionCoin
	DenomOut string
	Slippage decimal.Decimal
}

// WithdrawLiquidity unzaps an LP coin back into its underlying coins.
type WithdrawLiquidity struct {
	LPToken  ActionCoin
	Slippage decimal.Decimal
}

// StakeLP stakes a deposited LP coin into the incentive module.
type StakeLP struct {
	Coin ActionCoin
}

// UnstakeLP withdraws a staked LP coin back into deposits.
type UnstakeLP struct {
	Coin ActionCoin
}

// ClaimRewards pulls accrued incentive rewards into deposits.
type ClaimRewards struct{}

// LiquidationRequest names the collateral bucket a liquidator wants seized.
type LiquidationRequest struct {
	Kind   LiquidationRequestKind
	Denom  string
	Vault  string
	Bucket VaultBucket
}

type LiquidationRequestKind string

const (
	LiquidateDeposit LiquidationRequestKind = "deposit"
	LiquidateLend    LiquidationRequestKind = "lend"
	LiquidateVault   LiquidationRequestKind = "vault"
)

// Liquidate repays part of an unhealthy account's debt in exchange for a
// discounted slice of its collateral.
type Liquidate struct {
	LiquidateeAccountID string
	DebtCoin            Coin
	Request             LiquidationRequest
}

func (Deposit) isAction()            {}
func (Withdraw) isAction()           {}
func (Borrow) isAction()             {}
func (Lend) isAction()               {}
func (Reclaim) isAction()            {}
func (Repay) isAction()              {}
func (EnterVault) isAction()         {}
func (ExitVault) isAction()          {}
func (RequestVaultUnlock) isAction() {}
func (ExitVaultUnlocked) isAction()  {}
func (SwapExactIn) isAction()        {}
func (ProvideLiquidity) isAction()   {}
func (WithdrawLiquidity) isAction()  {}
func (StakeLP) isAction()            {}
func (UnstakeLP) isAction()          {}
func (ClaimRewards) isAction()       {}
func (Liquidate) isAction()          {}

// balanceChange is the expected direction of a reconciliation callback.
type balanceChange int

const (
	balanceIncrease balanceChange = iota
	balanceDecrease
)

// callback is one unit of the internal execution queue. Callbacks may push
// follow-up callbacks to the front of the remaining queue, which is how
// adapter calls schedule their balance reconciliation.
type callback interface {
	isCallback()
}

type actionCallback struct {
	action Action
}

// updateCoinBalance reconciles the manager's bank balance of a denom after an
// adapter call and books the delta against the account.
type updateCoinBalance struct {
	accountID string
	denom     string
	previous  *big.Int
	change    balanceChange
}

// updateVaultCoinBalance reconciles the manager's vault share balance after a
// vault deposit and books the minted shares into the account's position.
type updateVaultCoinBalance struct {
	accountID string
	vault     string
	previous  *big.Int
}

// assertDepositCaps is the terminal cap check over every denom the sequence
// noted as balance-increasing.
type assertDepositCaps struct{}

type assertAccountReqs struct {
	accountID string
}

type assertMaxLTV struct {
	accountID string
	previous  HealthState
}

type removeReentrancyGuard struct{}

func (actionCallback) isCallback()         {}
func (updateCoinBalance) isCallback()      {}
func (updateVaultCoinBalance) isCallback() {}
func (assertDepositCaps) isCallback()      {}
func (assertAccountReqs) isCallback()      {}
func (assertMaxLTV) isCallback()           {}
func (removeReentrancyGuard) isCallback()  {}
