package credit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// CorrelationType tags a correlated asset entry as a coin or a vault.
type CorrelationType string

const (
	CorrelationCoin  CorrelationType = "coin"
	CorrelationVault CorrelationType = "vault"
)

// Correlation names one asset a High-Leverage-Strategy debt denom may be
// collateralized with.
type Correlation struct {
	Type  CorrelationType
	Value string
}

// HLSParams are the tighter risk parameters applied when an asset backs a
// High-Leverage-Strategy position.
type HLSParams struct {
	MaxLTV               decimal.Decimal
	LiquidationThreshold decimal.Decimal
	Correlations         []Correlation
}

// Correlated reports whether the given asset is in the correlations list.
func (p *HLSParams) Correlated(kind CorrelationType, value string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Correlations {
		if c.Type == kind && c.Value == value {
			return true
		}
	}
	return false
}

// LiquidationBonus interpolates the collateral bonus a liquidator receives as
// a function of how far the account's health has deteriorated.
type LiquidationBonus struct {
	StartingLB decimal.Decimal
	Slope      decimal.Decimal
	MinLB      decimal.Decimal
	MaxLB      decimal.Decimal
}

// Bonus evaluates starting_lb + slope * (1 - liq_hf), clamped to [min, max].
func (b LiquidationBonus) Bonus(liqHealthFactor decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	gap := one.Sub(liqHealthFactor)
	if gap.IsNegative() {
		gap = decimal.Zero
	}
	bonus := b.StartingLB.Add(b.Slope.Mul(gap))
	if bonus.LessThan(b.MinLB) {
		bonus = b.MinLB
	}
	if bonus.GreaterThan(b.MaxLB) {
		bonus = b.MaxLB
	}
	return bonus
}

// AssetParams are the per-denom risk parameters from the registry.
type AssetParams struct {
	Denom                string
	MaxLTV               decimal.Decimal
	LiquidationThreshold decimal.Decimal
	Whitelisted          bool
	// DepositCap bounds the protocol-wide principal in this denom; nil means
	// uncapped.
	DepositCap       *big.Int
	LiquidationBonus LiquidationBonus
	ProtocolFee      decimal.Decimal
	HLS              *HLSParams
}

// Validate rejects parameter sets that would make liquidation unreachable.
func (p *AssetParams) Validate() error {
	if p == nil {
		return InvalidConfigError{Reason: "nil asset params"}
	}
	if p.Denom == "" {
		return InvalidConfigError{Reason: "asset params missing denom"}
	}
	if p.MaxLTV.GreaterThanOrEqual(p.LiquidationThreshold) {
		return InvalidConfigError{Reason: "max ltv must be below liquidation threshold for " + p.Denom}
	}
	if p.LiquidationThreshold.GreaterThan(decimal.NewFromInt(1)) {
		return InvalidConfigError{Reason: "liquidation threshold above 1 for " + p.Denom}
	}
	if p.HLS != nil {
		if p.HLS.MaxLTV.GreaterThanOrEqual(p.HLS.LiquidationThreshold) {
			return InvalidConfigError{Reason: "hls max ltv must be below hls liquidation threshold for " + p.Denom}
		}
	}
	return nil
}

// VaultConfig is the per-vault risk configuration from the registry.
type VaultConfig struct {
	Vault                string
	MaxLTV               decimal.Decimal
	LiquidationThreshold decimal.Decimal
	Whitelisted          bool
	// DepositCap bounds the base-denom value of all credit manager positions
	// in the vault; nil means uncapped.
	DepositCap *big.Int
	HLS        *HLSParams
}

// Validate rejects vault configs that would make liquidation unreachable.
func (c *VaultConfig) Validate() error {
	if c == nil {
		return InvalidConfigError{Reason: "nil vault config"}
	}
	if c.Vault == "" {
		return InvalidConfigError{Reason: "vault config missing address"}
	}
	if c.MaxLTV.GreaterThanOrEqual(c.LiquidationThreshold) {
		return InvalidConfigError{Reason: "max ltv must be below liquidation threshold for vault " + c.Vault}
	}
	return nil
}
