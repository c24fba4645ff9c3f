package credit

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrNilState             = errors.New("credit engine: state not configured")
	ErrNotTokenOwner        = errors.New("credit engine: caller is not the token owner")
	ErrUnauthorized         = errors.New("credit engine: unauthorized")
	ErrAdapterNotConfigured = errors.New("credit engine: adapter not configured")
	ErrReentrancyGuard      = errors.New("credit engine: reentrancy guard active")
	ErrNoAmount             = errors.New("credit engine: amount must be positive")
	ErrNoDebt               = errors.New("credit engine: no outstanding debt")
	ErrNotLiquidatable      = errors.New("credit engine: account not eligible for liquidation")
	ErrUnlockNotReady       = errors.New("credit engine: unlocking position has not matured")
	ErrNoPositionMatch      = errors.New("credit engine: no matching position")
	ErrCoinNotAvailable     = errors.New("credit engine: requested coin not available")
	ErrFundsMismatch        = errors.New("credit engine: attached funds do not match deposit actions")
	ErrInsufficientBalance  = errors.New("credit engine: insufficient balance")
	ErrAboveMaxLTV          = errors.New("credit engine: account health above max loan-to-value")
	ErrOverflow             = errors.New("credit engine: arithmetic overflow")
	ErrDivideByZero         = errors.New("credit engine: divide by zero")
	ErrSelfLiquidation      = errors.New("credit engine: cannot liquidate own account")
	ErrMinReceiveNotMet     = errors.New("credit engine: swap returned less than min receive")
	ErrSlippageExceeded     = errors.New("credit engine: slippage tolerance exceeded")
)

// NotWhitelistedError marks an asset or vault outside the parameter registry
// whitelist.
type NotWhitelistedError struct {
	Denom string
	Vault string
}

func (e NotWhitelistedError) Error() string {
	if e.Vault != "" {
		return fmt.Sprintf("credit engine: vault %s is not whitelisted", e.Vault)
	}
	return fmt.Sprintf("credit engine: denom %s is not whitelisted", e.Denom)
}

// RequirementsNotMetError reports an action whose inputs violate a structural
// requirement, e.g. depositing the wrong denom into a vault.
type RequirementsNotMetError struct {
	Reason string
}

func (e RequirementsNotMetError) Error() string {
	return fmt.Sprintf("credit engine: requirements not met: %s", e.Reason)
}

// HLSError reports a High-Leverage-Strategy rule violation.
type HLSError struct {
	Reason string
}

func (e HLSError) Error() string {
	return fmt.Sprintf("credit engine: hls: %s", e.Reason)
}

// AboveVaultDepositCapError carries the projected value that breached a
// vault's configured cap.
type AboveVaultDepositCapError struct {
	Vault    string
	NewValue *big.Int
	Maximum  *big.Int
}

func (e AboveVaultDepositCapError) Error() string {
	return fmt.Sprintf("credit engine: vault %s deposit cap exceeded: new value %s, maximum %s", e.Vault, e.NewValue, e.Maximum)
}

// AboveDepositCapError carries the observed total that breached a denom's
// protocol-wide deposit cap.
type AboveDepositCapError struct {
	Denom    string
	NewValue *big.Int
	Maximum  *big.Int
}

func (e AboveDepositCapError) Error() string {
	return fmt.Sprintf("credit engine: denom %s deposit cap exceeded: new value %s, maximum %s", e.Denom, e.NewValue, e.Maximum)
}

// MissingPriceError reports an oracle gap for a denom the valuation needs.
type MissingPriceError struct {
	Denom string
}

func (e MissingPriceError) Error() string {
	return fmt.Sprintf("credit engine: missing price for %s", e.Denom)
}

// MissingParamsError reports a parameter registry gap for a denom or vault.
type MissingParamsError struct {
	Denom string
	Vault string
}

func (e MissingParamsError) Error() string {
	if e.Vault != "" {
		return fmt.Sprintf("credit engine: missing params for vault %s", e.Vault)
	}
	return fmt.Sprintf("credit engine: missing params for %s", e.Denom)
}

// InvalidConfigError rejects privileged updates that would leave the system
// inconsistent.
type InvalidConfigError struct {
	Reason string
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("credit engine: invalid config: %s", e.Reason)
}
