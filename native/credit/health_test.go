package credit

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testAsset(denom, maxLTV, liqThreshold string) *AssetParams {
	return &AssetParams{
		Denom:                denom,
		MaxLTV:               d(maxLTV),
		LiquidationThreshold: d(liqThreshold),
		Whitelisted:          true,
	}
}

func TestComputeHealthFactors(t *testing.T) {
	in := HealthInput{
		Kind:     AccountKindDefault,
		Deposits: []Coin{NewCoin("uosmo", 1_000)},
		Debts:    []Coin{NewCoin("udai", 400)},
		Prices: map[string]decimal.Decimal{
			"uosmo": d("2"),
			"udai":  d("1"),
		},
		AssetParams: map[string]*AssetParams{
			"uosmo": testAsset("uosmo", "0.5", "0.6"),
			"udai":  testAsset("udai", "0.8", "0.9"),
		},
	}
	values, err := in.Compute()
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !values.TotalDebtValue.Equal(d("400")) {
		t.Fatalf("unexpected debt value: %s", values.TotalDebtValue)
	}
	if !values.TotalCollateralValue.Equal(d("2000")) {
		t.Fatalf("unexpected collateral value: %s", values.TotalCollateralValue)
	}
	if !values.MaxLTVAdjustedCollateral.Equal(d("1000")) {
		t.Fatalf("unexpected max ltv adjusted: %s", values.MaxLTVAdjustedCollateral)
	}
	if !values.LiqThresholdAdjustedCollateral.Equal(d("1200")) {
		t.Fatalf("unexpected liq adjusted: %s", values.LiqThresholdAdjustedCollateral)
	}
	if values.MaxLTVHealthFactor == nil || !values.MaxLTVHealthFactor.Equal(d("2.5")) {
		t.Fatalf("unexpected max ltv hf: %v", values.MaxLTVHealthFactor)
	}
	if values.LiquidationHealthFactor == nil || !values.LiquidationHealthFactor.Equal(d("3")) {
		t.Fatalf("unexpected liq hf: %v", values.LiquidationHealthFactor)
	}
	if values.AboveMaxLTV || values.Liquidatable {
		t.Fatalf("healthy account flagged: %+v", values)
	}
}

func TestComputeNoDebtHasNilFactors(t *testing.T) {
	in := HealthInput{
		Kind:     AccountKindDefault,
		Deposits: []Coin{NewCoin("uosmo", 10)},
		Prices:   map[string]decimal.Decimal{"uosmo": d("1")},
		AssetParams: map[string]*AssetParams{
			"uosmo": testAsset("uosmo", "0.5", "0.6"),
		},
	}
	values, err := in.Compute()
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if values.MaxLTVHealthFactor != nil || values.LiquidationHealthFactor != nil {
		t.Fatalf("expected nil factors for debt-free account")
	}
	if values.AboveMaxLTV || values.Liquidatable {
		t.Fatalf("debt-free account flagged: %+v", values)
	}
}

func TestComputeDelistedKeepsLiquidationThreshold(t *testing.T) {
	delisted := testAsset("uosmo", "0.5", "0.6")
	delisted.Whitelisted = false
	in := HealthInput{
		Kind:     AccountKindDefault,
		Deposits: []Coin{NewCoin("uosmo", 1_000)},
		Debts:    []Coin{NewCoin("udai", 100)},
		Prices: map[string]decimal.Decimal{
			"uosmo": d("1"),
			"udai":  d("1"),
		},
		AssetParams: map[string]*AssetParams{
			"uosmo": delisted,
			"udai":  testAsset("udai", "0.8", "0.9"),
		},
	}
	values, err := in.Compute()
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	// De-listing zeroes borrowing power but not liquidation protection.
	if values.MaxLTVAdjustedCollateral.Sign() != 0 {
		t.Fatalf("expected zero max ltv adjusted, got %s", values.MaxLTVAdjustedCollateral)
	}
	if !values.LiqThresholdAdjustedCollateral.Equal(d("600")) {
		t.Fatalf("unexpected liq adjusted: %s", values.LiqThresholdAdjustedCollateral)
	}
}

func TestComputeMissingPrice(t *testing.T) {
	in := HealthInput{
		Kind:        AccountKindDefault,
		Deposits:    []Coin{NewCoin("uosmo", 10)},
		Prices:      map[string]decimal.Decimal{},
		AssetParams: map[string]*AssetParams{"uosmo": testAsset("uosmo", "0.5", "0.6")},
	}
	_, err := in.Compute()
	var missing MissingPriceError
	if !errors.As(err, &missing) || missing.Denom != "uosmo" {
		t.Fatalf("expected missing price for uosmo, got %v", err)
	}
}

func TestHLSUncorrelatedContributesNothing(t *testing.T) {
	atom := testAsset("uatom", "0.8", "0.9")
	atom.HLS = &HLSParams{
		MaxLTV:               d("0.75"),
		LiquidationThreshold: d("0.8"),
		Correlations:         []Correlation{{Type: CorrelationCoin, Value: "uatom"}},
	}
	osmo := testAsset("uosmo", "0.5", "0.6")
	osmo.HLS = &HLSParams{MaxLTV: d("0.4"), LiquidationThreshold: d("0.5")}

	base := HealthInput{
		Kind:     AccountKindHighLevered,
		Deposits: []Coin{NewCoin("uatom", 1_000)},
		Debts:    []Coin{NewCoin("uatom", 100)},
		Prices: map[string]decimal.Decimal{
			"uatom": d("1"),
			"uosmo": d("1"),
		},
		AssetParams: map[string]*AssetParams{
			"uatom": atom,
			"uosmo": osmo,
		},
	}
	before, err := base.Compute()
	if err != nil {
		t.Fatalf("compute: %v", err)
	}

	// Adding a deposit outside the debt denom's correlation set must leave
	// the health factor unchanged.
	base.Deposits = append(base.Deposits, NewCoin("uosmo", 500))
	after, err := base.Compute()
	if err != nil {
		t.Fatalf("compute with extra deposit: %v", err)
	}
	if !before.MaxLTVHealthFactor.Equal(*after.MaxLTVHealthFactor) {
		t.Fatalf("hf changed: %s -> %s", before.MaxLTVHealthFactor, after.MaxLTVHealthFactor)
	}
	if !after.TotalCollateralValue.Equal(d("1500")) {
		t.Fatalf("uncorrelated deposit should still be valued, got %s", after.TotalCollateralValue)
	}
}

func TestHLSUsesHLSWeights(t *testing.T) {
	atom := testAsset("uatom", "0.8", "0.9")
	atom.HLS = &HLSParams{
		MaxLTV:               d("0.75"),
		LiquidationThreshold: d("0.8"),
		Correlations:         []Correlation{{Type: CorrelationCoin, Value: "uatom"}},
	}
	in := HealthInput{
		Kind:        AccountKindHighLevered,
		Deposits:    []Coin{NewCoin("uatom", 1_000)},
		Debts:       []Coin{NewCoin("uatom", 100)},
		Prices:      map[string]decimal.Decimal{"uatom": d("1")},
		AssetParams: map[string]*AssetParams{"uatom": atom},
	}
	values, err := in.Compute()
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !values.MaxLTVAdjustedCollateral.Equal(d("750")) {
		t.Fatalf("expected hls max ltv weighting, got %s", values.MaxLTVAdjustedCollateral)
	}
	if !values.LiqThresholdAdjustedCollateral.Equal(d("800")) {
		t.Fatalf("expected hls threshold weighting, got %s", values.LiqThresholdAdjustedCollateral)
	}
}

func TestMaxWithdrawAmount(t *testing.T) {
	in := HealthInput{
		Kind: AccountKindDefault,
		Deposits: []Coin{
			NewCoin("uosmo", 1_000),
			NewCoin("udai", 500),
		},
		Debts: []Coin{NewCoin("udai", 300)},
		Prices: map[string]decimal.Decimal{
			"uosmo": d("1"),
			"udai":  d("1"),
		},
		AssetParams: map[string]*AssetParams{
			"uosmo": testAsset("uosmo", "0.5", "0.6"),
			"udai":  testAsset("udai", "0.8", "0.9"),
		},
	}
	// Adjusted collateral = 500 + 400 = 900, debt 300, headroom 600.
	// Withdrawing uosmo burns 0.5 per coin, so at most 1200, clamped to the
	// 1000 balance.
	max, err := in.MaxWithdrawAmount("uosmo")
	if err != nil {
		t.Fatalf("max withdraw: %v", err)
	}
	if max.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected max withdraw: %s", max)
	}

	// udai burns 0.8 per coin: 600 / 0.8 = 750, clamped to 500.
	max, err = in.MaxWithdrawAmount("udai")
	if err != nil {
		t.Fatalf("max withdraw: %v", err)
	}
	if max.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected max withdraw: %s", max)
	}

	in.Debts = []Coin{NewCoin("udai", 700)}
	// Headroom shrinks to 200; only 200/0.5 = 400 uosmo may leave.
	max, err = in.MaxWithdrawAmount("uosmo")
	if err != nil {
		t.Fatalf("max withdraw: %v", err)
	}
	if max.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected max withdraw: %s", max)
	}
}

func TestMaxWithdrawDelistedIsUnbounded(t *testing.T) {
	delisted := testAsset("uosmo", "0.5", "0.6")
	delisted.Whitelisted = false
	in := HealthInput{
		Kind:     AccountKindDefault,
		Deposits: []Coin{NewCoin("uosmo", 1_000), NewCoin("udai", 1_000)},
		Debts:    []Coin{NewCoin("udai", 500)},
		Prices: map[string]decimal.Decimal{
			"uosmo": d("1"),
			"udai":  d("1"),
		},
		AssetParams: map[string]*AssetParams{
			"uosmo": delisted,
			"udai":  testAsset("udai", "0.8", "0.9"),
		},
	}
	max, err := in.MaxWithdrawAmount("uosmo")
	if err != nil {
		t.Fatalf("max withdraw: %v", err)
	}
	if max.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected full balance for delisted asset, got %s", max)
	}
}

func TestMaxWithdrawAbsentDenomIsZero(t *testing.T) {
	in := HealthInput{
		Kind:        AccountKindDefault,
		Deposits:    []Coin{NewCoin("udai", 500)},
		Prices:      map[string]decimal.Decimal{"udai": d("1")},
		AssetParams: map[string]*AssetParams{"uosmo": testAsset("uosmo", "0.5", "0.6")},
	}
	max, err := in.MaxWithdrawAmount("uosmo")
	if err != nil {
		t.Fatalf("max withdraw: %v", err)
	}
	if max.Sign() != 0 {
		t.Fatalf("expected zero for absent denom, got %s", max)
	}

	// Absent denoms short-circuit before the params lookup.
	max, err = in.MaxWithdrawAmount("unknown")
	if err != nil {
		t.Fatalf("max withdraw unknown denom: %v", err)
	}
	if max.Sign() != 0 {
		t.Fatalf("expected zero for unknown denom, got %s", max)
	}
	if _, err := in.MaxSwapAmount("unknown", "uosmo", d("0.01")); err != nil {
		t.Fatalf("max swap unknown denom: %v", err)
	}

	// A denom the account actually holds still needs params.
	var missing MissingParamsError
	if _, err := in.MaxWithdrawAmount("udai"); !errors.As(err, &missing) {
		t.Fatalf("expected missing params, got %v", err)
	}
}

func TestMaxSwapAmount(t *testing.T) {
	in := HealthInput{
		Kind:     AccountKindDefault,
		Deposits: []Coin{NewCoin("uosmo", 1_000)},
		Debts:    []Coin{NewCoin("udai", 400)},
		Prices: map[string]decimal.Decimal{
			"uosmo": d("1"),
			"udai":  d("1"),
		},
		AssetParams: map[string]*AssetParams{
			"uosmo": testAsset("uosmo", "0.5", "0.6"),
			"udai":  testAsset("udai", "0.8", "0.9"),
		},
	}
	// Swapping into a higher-LTV asset can only improve health.
	max, err := in.MaxSwapAmount("uosmo", "udai", d("0"))
	if err != nil {
		t.Fatalf("max swap: %v", err)
	}
	if max.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected max swap: %s", max)
	}

	// Reversed direction loses 0.3 weight per unit: headroom 100 allows 333.
	in.Deposits = []Coin{NewCoin("udai", 1_000)}
	in.Debts = []Coin{NewCoin("udai", 700)}
	max, err = in.MaxSwapAmount("udai", "uosmo", d("0"))
	if err != nil {
		t.Fatalf("max swap: %v", err)
	}
	if max.Cmp(big.NewInt(333)) != 0 {
		t.Fatalf("unexpected max swap: %s", max)
	}
}

func TestLiquidationBonusClamps(t *testing.T) {
	bonus := LiquidationBonus{
		StartingLB: d("0.01"),
		Slope:      d("2"),
		MinLB:      d("0.02"),
		MaxLB:      d("0.10"),
	}
	if got := bonus.Bonus(d("0.9")); !got.Equal(d("0.10")) {
		t.Fatalf("expected max clamp, got %s", got)
	}
	if got := bonus.Bonus(d("0.999")); !got.Equal(d("0.02")) {
		t.Fatalf("expected min clamp, got %s", got)
	}
	if got := bonus.Bonus(d("0.98")); !got.Equal(d("0.05")) {
		t.Fatalf("expected interpolation, got %s", got)
	}
	// A health factor above one cannot produce a negative gap.
	if got := bonus.Bonus(d("1.5")); !got.Equal(d("0.02")) {
		t.Fatalf("expected min clamp above one, got %s", got)
	}
}
