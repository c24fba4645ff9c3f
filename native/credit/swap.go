package credit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// swapExactIn routes deposited coins through the swap adapter. The minimum
// receive amount is derived from oracle prices and the caller's slippage
// tolerance; the adapter fails the sequence when it cannot meet it.
func (e *Engine) swapExactIn(ctx *execContext, action SwapExactIn) error {
	if e.swapper == nil {
		return ErrAdapterNotConfigured
	}
	coinIn, err := e.resolveActionCoin(ctx.session, ctx.accountID, action.CoinIn)
	if err != nil {
		return err
	}
	if !coinIn.IsPositive() {
		return ErrNoAmount
	}
	if action.Slippage.IsNegative() || action.Slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return RequirementsNotMetError{Reason: "slippage must be within [0, 1)"}
	}
	priceIn, err := e.price(coinIn.Denom, PriceKindDefault)
	if err != nil {
		return err
	}
	priceOut, err := e.price(action.DenomOut, PriceKindDefault)
	if err != nil {
		return err
	}
	expectedOut := decimal.NewFromBigInt(coinIn.Amount, 0).Mul(priceIn).Div(priceOut)
	minReceive := expectedOut.Mul(decimal.NewFromInt(1).Sub(action.Slippage)).Floor().BigInt()
	if err := decreaseDeposit(ctx.session, ctx.accountID, coinIn); err != nil {
		return err
	}
	previous, err := e.bank.Balance(e.address, action.DenomOut)
	if err != nil {
		return err
	}
	if err := e.swapper.SwapExactIn(coinIn, action.DenomOut, minReceive, action.Route); err != nil {
		return err
	}
	ctx.pushFront(updateCoinBalance{
		accountID: ctx.accountID,
		denom:     action.DenomOut,
		previous:  previous,
		change:    balanceIncrease,
	})
	return nil
}

func (e *Engine) provideLiquidity(ctx *execContext, action ProvideLiquidity) error {
	if e.zapper == nil {
		return ErrAdapterNotConfigured
	}
	params, err := e.params.AssetParams(action.DenomOut)
	if err != nil {
		return err
	}
	if params == nil || !params.Whitelisted {
		return NotWhitelistedError{Denom: action.DenomOut}
	}
	coinsIn := make([]Coin, 0, len(action.CoinsIn))
	for _, ac := range action.CoinsIn {
		coin, err := e.resolveActionCoin(ctx.session, ctx.accountID, ac)
		if err != nil {
			return err
		}
		if !coin.IsPositive() {
			continue
		}
		coinsIn = append(coinsIn, coin)
	}
	if len(coinsIn) == 0 {
		return ErrNoAmount
	}
	estimate, err := e.zapper.EstimateProvideLiquidity(coinsIn, action.DenomOut)
	if err != nil {
		return err
	}
	minReceive := applySlippage(estimate, action.Slippage)
	for _, coin := range coinsIn {
		if err := decreaseDeposit(ctx.session, ctx.accountID, coin); err != nil {
			return err
		}
	}
	previous, err := e.bank.Balance(e.address, action.DenomOut)
	if err != nil {
		return err
	}
	if err := e.zapper.ProvideLiquidity(coinsIn, action.DenomOut, minReceive); err != nil {
		return err
	}
	ctx.pushFront(updateCoinBalance{
		accountID: ctx.accountID,
		denom:     action.DenomOut,
		previous:  previous,
		change:    balanceIncrease,
	})
	return nil
}

func (e *Engine) withdrawLiquidity(ctx *execContext, action WithdrawLiquidity) error {
	if e.zapper == nil {
		return ErrAdapterNotConfigured
	}
	lpCoin, err := e.resolveActionCoin(ctx.session, ctx.accountID, action.LPToken)
	if err != nil {
		return err
	}
	if !lpCoin.IsPositive() {
		return ErrNoAmount
	}
	estimates, err := e.zapper.EstimateWithdrawLiquidity(lpCoin)
	if err != nil {
		return err
	}
	minReceive := make([]Coin, 0, len(estimates))
	for _, est := range estimates {
		minReceive = append(minReceive, Coin{Denom: est.Denom, Amount: applySlippage(est.Amount, action.Slippage)})
	}
	if err := decreaseDeposit(ctx.session, ctx.accountID, lpCoin); err != nil {
		return err
	}
	previousBalances := make(map[string]*big.Int, len(estimates))
	for _, est := range estimates {
		previous, err := e.bank.Balance(e.address, est.Denom)
		if err != nil {
			return err
		}
		previousBalances[est.Denom] = previous
	}
	if err := e.zapper.WithdrawLiquidity(lpCoin, minReceive); err != nil {
		return err
	}
	// Follow-ups are pushed in reverse so they run in estimate order.
	for i := len(estimates) - 1; i >= 0; i-- {
		denom := estimates[i].Denom
		ctx.pushFront(updateCoinBalance{
			accountID: ctx.accountID,
			denom:     denom,
			previous:  previousBalances[denom],
			change:    balanceIncrease,
		})
	}
	return nil
}

func applySlippage(amount *big.Int, slippage decimal.Decimal) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	keep := decimal.NewFromInt(1).Sub(slippage)
	if keep.IsNegative() {
		return big.NewInt(0)
	}
	return decimal.NewFromBigInt(amount, 0).Mul(keep).Floor().BigInt()
}
