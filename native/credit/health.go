package credit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// HealthInput is a fully resolved snapshot of one account's positions together
// with the prices and parameters needed to value them. Compute is pure so the
// same input can be evaluated with default or liquidation pricing.
type HealthInput struct {
	Kind      AccountKind
	Deposits  []Coin
	Lends     []Coin
	StakedLPs []Coin
	// Debts are underlying owed amounts, not shares.
	Debts  []Coin
	Vaults []VaultHealthItem

	Prices       map[string]decimal.Decimal
	AssetParams  map[string]*AssetParams
	VaultConfigs map[string]*VaultConfig
}

// VaultHealthItem carries the pre-valued slices of one vault position. Vault
// shares are risk-weighted with the vault config while unlocking coins are
// weighted with their base denom's asset parameters.
type VaultHealthItem struct {
	Vault          string
	BaseDenom      string
	VaultCoinValue decimal.Decimal
	UnlockingValue decimal.Decimal
}

func (in HealthInput) price(denom string) (decimal.Decimal, error) {
	price, ok := in.Prices[denom]
	if !ok || price.Sign() <= 0 {
		return decimal.Zero, MissingPriceError{Denom: denom}
	}
	return price, nil
}

// hlsDebtParams returns the HLS parameter set of the account's single debt
// denom, or nil when the account carries no debt.
func (in HealthInput) hlsDebtParams() *HLSParams {
	for _, debt := range in.Debts {
		if debt.Amount != nil && debt.Amount.Sign() > 0 {
			params := in.AssetParams[debt.Denom]
			if params == nil {
				return nil
			}
			return params.HLS
		}
	}
	return nil
}

// coinWeights resolves the max-LTV and liquidation-threshold weights of one
// collateral denom under the account kind. The max-LTV weight drops to zero
// for de-listed assets while the liquidation threshold keeps applying, so a
// de-whitelisting can never push healthy accounts straight into liquidation.
// Unparameterized assets and HLS collaterals outside the debt denom's
// correlation set keep their market value but contribute nothing to either
// adjusted total.
func (in HealthInput) coinWeights(denom string, debtHLS *HLSParams) (decimal.Decimal, decimal.Decimal) {
	params := in.AssetParams[denom]
	if params == nil {
		return decimal.Zero, decimal.Zero
	}
	if in.Kind == AccountKindHighLevered {
		if params.HLS == nil {
			return decimal.Zero, decimal.Zero
		}
		if debtHLS != nil && !debtHLS.Correlated(CorrelationCoin, denom) {
			return decimal.Zero, decimal.Zero
		}
		maxLTV := params.HLS.MaxLTV
		if !params.Whitelisted {
			maxLTV = decimal.Zero
		}
		return maxLTV, params.HLS.LiquidationThreshold
	}
	maxLTV := params.MaxLTV
	if !params.Whitelisted {
		maxLTV = decimal.Zero
	}
	return maxLTV, params.LiquidationThreshold
}

func (in HealthInput) vaultWeights(vault string, debtHLS *HLSParams) (decimal.Decimal, decimal.Decimal) {
	config := in.VaultConfigs[vault]
	if config == nil {
		return decimal.Zero, decimal.Zero
	}
	if in.Kind == AccountKindHighLevered {
		if config.HLS == nil {
			return decimal.Zero, decimal.Zero
		}
		if debtHLS != nil && !debtHLS.Correlated(CorrelationVault, vault) {
			return decimal.Zero, decimal.Zero
		}
		maxLTV := config.HLS.MaxLTV
		if !config.Whitelisted {
			maxLTV = decimal.Zero
		}
		return maxLTV, config.HLS.LiquidationThreshold
	}
	maxLTV := config.MaxLTV
	if !config.Whitelisted {
		maxLTV = decimal.Zero
	}
	return maxLTV, config.LiquidationThreshold
}

// Compute values the snapshot and derives both health factors. Health factors
// are nil when the account has no debt; such accounts are always healthy.
func (in HealthInput) Compute() (HealthValues, error) {
	var out HealthValues
	debtHLS := in.hlsDebtParams()

	for _, debt := range in.Debts {
		if debt.Amount == nil || debt.Amount.Sign() == 0 {
			continue
		}
		price, err := in.price(debt.Denom)
		if err != nil {
			return out, err
		}
		out.TotalDebtValue = out.TotalDebtValue.Add(decimal.NewFromBigInt(debt.Amount, 0).Mul(price))
	}

	addCoin := func(coin Coin) error {
		if !coin.IsPositive() {
			return nil
		}
		price, err := in.price(coin.Denom)
		if err != nil {
			return err
		}
		value := decimal.NewFromBigInt(coin.Amount, 0).Mul(price)
		maxLTV, liqThreshold := in.coinWeights(coin.Denom, debtHLS)
		out.TotalCollateralValue = out.TotalCollateralValue.Add(value)
		out.MaxLTVAdjustedCollateral = out.MaxLTVAdjustedCollateral.Add(value.Mul(maxLTV))
		out.LiqThresholdAdjustedCollateral = out.LiqThresholdAdjustedCollateral.Add(value.Mul(liqThreshold))
		return nil
	}
	for _, coin := range in.Deposits {
		if err := addCoin(coin); err != nil {
			return out, err
		}
	}
	for _, coin := range in.Lends {
		if err := addCoin(coin); err != nil {
			return out, err
		}
	}
	for _, coin := range in.StakedLPs {
		if err := addCoin(coin); err != nil {
			return out, err
		}
	}

	for _, item := range in.Vaults {
		vMaxLTV, vLiqThreshold := in.vaultWeights(item.Vault, debtHLS)
		out.TotalCollateralValue = out.TotalCollateralValue.Add(item.VaultCoinValue)
		out.MaxLTVAdjustedCollateral = out.MaxLTVAdjustedCollateral.Add(item.VaultCoinValue.Mul(vMaxLTV))
		out.LiqThresholdAdjustedCollateral = out.LiqThresholdAdjustedCollateral.Add(item.VaultCoinValue.Mul(vLiqThreshold))

		cMaxLTV, cLiqThreshold := in.coinWeights(item.BaseDenom, debtHLS)
		out.TotalCollateralValue = out.TotalCollateralValue.Add(item.UnlockingValue)
		out.MaxLTVAdjustedCollateral = out.MaxLTVAdjustedCollateral.Add(item.UnlockingValue.Mul(cMaxLTV))
		out.LiqThresholdAdjustedCollateral = out.LiqThresholdAdjustedCollateral.Add(item.UnlockingValue.Mul(cLiqThreshold))
	}

	if out.TotalDebtValue.Sign() > 0 {
		maxLTVHF := out.MaxLTVAdjustedCollateral.Div(out.TotalDebtValue)
		liqHF := out.LiqThresholdAdjustedCollateral.Div(out.TotalDebtValue)
		out.MaxLTVHealthFactor = &maxLTVHF
		out.LiquidationHealthFactor = &liqHF
		one := decimal.NewFromInt(1)
		out.AboveMaxLTV = maxLTVHF.LessThan(one)
		out.Liquidatable = liqHF.LessThan(one)
	}
	return out, nil
}

// MaxWithdrawAmount estimates the largest amount of denom the account could
// withdraw while staying at or above max LTV. A denom the account does not
// hold yields zero without consulting the parameter registry. Assets with a
// zero max-LTV weight never back debt, so their full balance is withdrawable.
func (in HealthInput) MaxWithdrawAmount(denom string) (*big.Int, error) {
	balance := big.NewInt(0)
	for _, coin := range in.Deposits {
		if coin.Denom == denom && coin.Amount != nil {
			balance.Add(balance, coin.Amount)
		}
	}
	if balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if in.AssetParams[denom] == nil {
		return nil, MissingParamsError{Denom: denom}
	}
	values, err := in.Compute()
	if err != nil {
		return nil, err
	}
	if values.TotalDebtValue.Sign() == 0 {
		return balance, nil
	}
	maxLTV, _ := in.coinWeights(denom, in.hlsDebtParams())
	if maxLTV.Sign() == 0 {
		return balance, nil
	}
	headroom := values.MaxLTVAdjustedCollateral.Sub(values.TotalDebtValue)
	if headroom.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	price, err := in.price(denom)
	if err != nil {
		return nil, err
	}
	max := headroom.Div(price.Mul(maxLTV)).Floor().BigInt()
	if max.Cmp(balance) > 0 {
		return balance, nil
	}
	return max, nil
}

// MaxSwapAmount estimates the largest amount of denomIn the account could swap
// into denomOut at the given slippage while staying at or above max LTV.
func (in HealthInput) MaxSwapAmount(denomIn, denomOut string, slippage decimal.Decimal) (*big.Int, error) {
	balance := big.NewInt(0)
	for _, coin := range in.Deposits {
		if coin.Denom == denomIn && coin.Amount != nil {
			balance.Add(balance, coin.Amount)
		}
	}
	if balance.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if in.AssetParams[denomIn] == nil {
		return nil, MissingParamsError{Denom: denomIn}
	}
	values, err := in.Compute()
	if err != nil {
		return nil, err
	}
	if values.TotalDebtValue.Sign() == 0 {
		return balance, nil
	}
	debtHLS := in.hlsDebtParams()
	ltvIn, _ := in.coinWeights(denomIn, debtHLS)
	ltvOut, _ := in.coinWeights(denomOut, debtHLS)
	keep := decimal.NewFromInt(1).Sub(slippage)
	// Each unit of swapped value trades its in-weight for a slippage-reduced
	// out-weight. A non-negative net change cannot hurt health.
	net := ltvOut.Mul(keep).Sub(ltvIn)
	if net.Sign() >= 0 {
		return balance, nil
	}
	headroom := values.MaxLTVAdjustedCollateral.Sub(values.TotalDebtValue)
	if headroom.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	price, err := in.price(denomIn)
	if err != nil {
		return nil, err
	}
	max := headroom.Div(price.Mul(net.Neg())).Floor().BigInt()
	if max.Cmp(balance) > 0 {
		return balance, nil
	}
	return max, nil
}

// healthInput assembles the valuation snapshot for an account from session
// state, adapters and the parameter registry.
func (e *Engine) healthInput(s StateSession, accountID string, kind PriceKind) (HealthInput, error) {
	positions, err := e.positions(s, accountID)
	if err != nil {
		return HealthInput{}, err
	}
	in := HealthInput{
		Kind:         positions.Kind,
		Deposits:     positions.Deposits,
		Lends:        positions.Lends,
		StakedLPs:    positions.StakedLPs,
		Prices:       make(map[string]decimal.Decimal),
		AssetParams:  make(map[string]*AssetParams),
		VaultConfigs: make(map[string]*VaultConfig),
	}
	for _, debt := range positions.Debts {
		in.Debts = append(in.Debts, Coin{Denom: debt.Denom, Amount: debt.Amount})
	}

	addDenom := func(denom string) error {
		if _, ok := in.Prices[denom]; ok {
			return nil
		}
		price, err := e.price(denom, kind)
		if err != nil {
			return err
		}
		in.Prices[denom] = price
		params, err := e.params.AssetParams(denom)
		if err != nil {
			return err
		}
		in.AssetParams[denom] = params
		return nil
	}
	for _, coin := range positions.Deposits {
		if err := addDenom(coin.Denom); err != nil {
			return HealthInput{}, err
		}
	}
	for _, coin := range positions.Lends {
		if err := addDenom(coin.Denom); err != nil {
			return HealthInput{}, err
		}
	}
	for _, coin := range positions.StakedLPs {
		if err := addDenom(coin.Denom); err != nil {
			return HealthInput{}, err
		}
	}
	for _, debt := range positions.Debts {
		if err := addDenom(debt.Denom); err != nil {
			return HealthInput{}, err
		}
	}
	for _, item := range positions.Vaults {
		position := item.Position
		value, err := e.vaultPositionValue(item.Vault, &position, kind)
		if err != nil {
			return HealthInput{}, err
		}
		_, info, err := e.vaultAdapter(item.Vault)
		if err != nil {
			return HealthInput{}, err
		}
		if err := addDenom(info.BaseDenom); err != nil {
			return HealthInput{}, err
		}
		config, err := e.params.VaultConfig(item.Vault)
		if err != nil {
			return HealthInput{}, err
		}
		in.VaultConfigs[item.Vault] = config
		in.Vaults = append(in.Vaults, VaultHealthItem{
			Vault:          item.Vault,
			BaseDenom:      info.BaseDenom,
			VaultCoinValue: value.VaultCoinValue,
			UnlockingValue: value.UnlockingValue,
		})
	}
	return in, nil
}

func (e *Engine) healthValues(s StateSession, accountID string, kind PriceKind) (HealthValues, error) {
	in, err := e.healthInput(s, accountID, kind)
	if err != nil {
		return HealthValues{}, err
	}
	return in.Compute()
}

// healthState snapshots the pre-sequence health so the terminal max-LTV
// assertion can apply the improvement rule to already unhealthy accounts.
func (e *Engine) healthState(s StateSession, accountID string) (HealthState, error) {
	values, err := e.healthValues(s, accountID, PriceKindDefault)
	if err != nil {
		return HealthState{}, err
	}
	return HealthState{
		HasDebt:            values.TotalDebtValue.Sign() > 0,
		MaxLTVHealthFactor: values.MaxLTVHealthFactor,
	}, nil
}
