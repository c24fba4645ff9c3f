package credit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// liquidate repays part of an unhealthy account's debt from the liquidator's
// deposits and moves a bonus-discounted slice of the liquidatee's collateral
// in return. Any part of the sent debt coin above the repayable maximum stays
// in the liquidator's deposits.
func (e *Engine) liquidate(ctx *execContext, action Liquidate) error {
	liquidatee := action.LiquidateeAccountID
	if liquidatee == ctx.accountID {
		return ErrSelfLiquidation
	}
	if !action.DebtCoin.IsPositive() {
		return ErrNoAmount
	}
	health, err := e.healthValues(ctx.session, liquidatee, PriceKindLiquidation)
	if err != nil {
		return err
	}
	if !health.Liquidatable || health.LiquidationHealthFactor == nil {
		return ErrNotLiquidatable
	}
	debtDenom := action.DebtCoin.Denom
	owed, err := e.debtAmount(ctx.session, liquidatee, debtDenom)
	if err != nil {
		return err
	}
	if owed.Sign() == 0 {
		return ErrNoDebt
	}

	closeFactor, err := e.params.CloseFactor()
	if err != nil {
		return err
	}
	debtPrice, err := e.price(debtDenom, PriceKindLiquidation)
	if err != nil {
		return err
	}
	// The close factor bounds how much of the account's total debt value one
	// liquidation may retire.
	byCloseFactor := closeFactor.Mul(health.TotalDebtValue).Div(debtPrice).Floor().BigInt()
	repay := new(big.Int).Set(action.DebtCoin.Amount)
	if repay.Cmp(owed) > 0 {
		repay.Set(owed)
	}
	if repay.Cmp(byCloseFactor) > 0 {
		repay.Set(byCloseFactor)
	}
	if repay.Sign() <= 0 {
		return ErrNoAmount
	}

	requestDenom := action.Request.Denom
	if action.Request.Kind == LiquidateVault {
		_, info, err := e.vaultAdapter(action.Request.Vault)
		if err != nil {
			return err
		}
		requestDenom = info.BaseDenom
	}
	requestParams, err := e.params.AssetParams(requestDenom)
	if err != nil {
		return err
	}
	if requestParams == nil {
		return MissingParamsError{Denom: requestDenom}
	}
	bonus := requestParams.LiquidationBonus.Bonus(*health.LiquidationHealthFactor)
	requestPrice, err := e.price(requestDenom, PriceKindLiquidation)
	if err != nil {
		return err
	}
	one := decimal.NewFromInt(1)
	seize := decimal.NewFromBigInt(repay, 0).Mul(debtPrice).Mul(one.Add(bonus)).Div(requestPrice).Floor().BigInt()

	available, err := e.availableCollateral(ctx.session, liquidatee, action.Request)
	if err != nil {
		return err
	}
	if available.Sign() == 0 {
		return ErrCoinNotAvailable
	}
	if seize.Cmp(available) > 0 {
		// The bucket cannot cover the full seizure; shrink both sides of the
		// trade so the bonus ratio is preserved.
		seize = available
		repay = decimal.NewFromBigInt(available, 0).Mul(requestPrice).Div(one.Add(bonus)).Div(debtPrice).Floor().BigInt()
	}
	if repay.Sign() <= 0 || seize.Sign() <= 0 {
		return ErrCoinNotAvailable
	}

	if err := decreaseDeposit(ctx.session, ctx.accountID, Coin{Denom: debtDenom, Amount: repay}); err != nil {
		return err
	}
	if _, err := e.burnDebtShares(ctx.session, liquidatee, debtDenom, repay); err != nil {
		return err
	}
	if err := e.redBank.Repay(debtDenom, repay); err != nil {
		return err
	}

	switch action.Request.Kind {
	case LiquidateDeposit:
		err = e.seizeFromDeposit(ctx, liquidatee, requestDenom, seize)
	case LiquidateLend:
		err = e.seizeFromLend(ctx, liquidatee, requestDenom, seize)
	case LiquidateVault:
		err = e.seizeFromVault(ctx, liquidatee, action.Request, requestParams, seize)
	default:
		err = RequirementsNotMetError{Reason: "unknown liquidation request kind"}
	}
	if err != nil {
		return err
	}
	e.logger.Info("credit: liquidation",
		"liquidator", ctx.accountID,
		"liquidatee", liquidatee,
		"debt_denom", debtDenom,
		"repaid", repay.String(),
		"request_denom", requestDenom,
		"seized", seize.String(),
	)
	return nil
}

// availableCollateral sizes the requested source bucket in request-denom
// units before anything is moved.
func (e *Engine) availableCollateral(s StateSession, liquidatee string, request LiquidationRequest) (*big.Int, error) {
	switch request.Kind {
	case LiquidateDeposit:
		balance, err := s.Deposit(liquidatee, request.Denom)
		if err != nil {
			return nil, err
		}
		lent, err := e.lendAmount(s, liquidatee, request.Denom)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Add(balance, lent), nil
	case LiquidateLend:
		return e.lendAmount(s, liquidatee, request.Denom)
	case LiquidateVault:
		adapter, _, err := e.vaultAdapter(request.Vault)
		if err != nil {
			return nil, err
		}
		position, err := s.VaultPosition(liquidatee, request.Vault)
		if err != nil {
			return nil, err
		}
		if position == nil {
			return big.NewInt(0), nil
		}
		position.normalize()
		switch request.Bucket {
		case VaultBucketUnlocked:
			return adapter.PreviewRedeem(position.Unlocked)
		case VaultBucketLocked:
			return adapter.PreviewRedeem(position.Locked)
		case VaultBucketUnlocking:
			total := big.NewInt(0)
			for _, u := range position.Unlocking {
				if u.Coin.Amount != nil {
					total.Add(total, u.Coin.Amount)
				}
			}
			return total, nil
		}
		return big.NewInt(0), nil
	}
	return big.NewInt(0), nil
}

// seizeFromDeposit drains the liquidatee's deposits first and reclaims any
// shortfall from their lend position.
func (e *Engine) seizeFromDeposit(ctx *execContext, liquidatee, denom string, seize *big.Int) error {
	balance, err := ctx.session.Deposit(liquidatee, denom)
	if err != nil {
		return err
	}
	fromDeposit := new(big.Int).Set(seize)
	if fromDeposit.Cmp(balance) > 0 {
		fromDeposit.Set(balance)
	}
	taken := new(big.Int).Set(fromDeposit)
	if fromDeposit.Sign() > 0 {
		if err := decreaseDeposit(ctx.session, liquidatee, Coin{Denom: denom, Amount: fromDeposit}); err != nil {
			return err
		}
	}
	shortfall := new(big.Int).Sub(seize, fromDeposit)
	if shortfall.Sign() > 0 {
		_, reclaimed, err := e.burnLendShares(ctx.session, liquidatee, denom, shortfall)
		if err != nil {
			return err
		}
		if err := e.redBank.Reclaim(denom, reclaimed); err != nil {
			return err
		}
		taken.Add(taken, reclaimed)
	}
	return increaseDeposit(ctx.session, ctx.accountID, Coin{Denom: denom, Amount: taken})
}

// seizeFromLend moves lend shares between the accounts without touching the
// Red Bank position.
func (e *Engine) seizeFromLend(ctx *execContext, liquidatee, denom string, seize *big.Int) error {
	shares, err := ctx.session.LendShares(liquidatee, denom)
	if err != nil {
		return err
	}
	if shares.Sign() == 0 {
		return ErrCoinNotAvailable
	}
	lent, err := e.lendAmount(ctx.session, liquidatee, denom)
	if err != nil {
		return err
	}
	moved, err := mulDiv(shares, seize, lent)
	if err != nil {
		return err
	}
	if moved.Cmp(shares) > 0 {
		moved = new(big.Int).Set(shares)
	}
	if err := ctx.session.PutLendShares(liquidatee, denom, new(big.Int).Sub(shares, moved)); err != nil {
		return err
	}
	liquidatorShares, err := ctx.session.LendShares(ctx.accountID, denom)
	if err != nil {
		return err
	}
	return ctx.session.PutLendShares(ctx.accountID, denom, new(big.Int).Add(liquidatorShares, moved))
}

// seizeFromVault force-exits the requested bucket of the liquidatee's vault
// position. The protocol fee applies only here; deposit and lend seizures
// carry no fee.
func (e *Engine) seizeFromVault(ctx *execContext, liquidatee string, request LiquidationRequest, params *AssetParams, seize *big.Int) error {
	adapter, info, err := e.vaultAdapter(request.Vault)
	if err != nil {
		return err
	}
	position, err := ctx.session.VaultPosition(liquidatee, request.Vault)
	if err != nil {
		return err
	}
	if position == nil {
		return ErrCoinNotAvailable
	}
	position.normalize()

	previous, err := e.bank.Balance(e.address, info.BaseDenom)
	if err != nil {
		return err
	}
	switch request.Bucket {
	case VaultBucketUnlocked, VaultBucketLocked:
		bucket := position.Unlocked
		if request.Bucket == VaultBucketLocked {
			bucket = position.Locked
		}
		underlying, err := adapter.PreviewRedeem(bucket)
		if err != nil {
			return err
		}
		if underlying.Sign() == 0 {
			return ErrCoinNotAvailable
		}
		shares, err := mulDiv(bucket, seize, underlying)
		if err != nil {
			return err
		}
		if shares.Cmp(bucket) > 0 {
			shares = new(big.Int).Set(bucket)
		}
		if shares.Sign() == 0 {
			return ErrCoinNotAvailable
		}
		if request.Bucket == VaultBucketLocked {
			position.Locked = new(big.Int).Sub(position.Locked, shares)
		} else {
			position.Unlocked = new(big.Int).Sub(position.Unlocked, shares)
		}
		if err := adapter.Redeem(shares); err != nil {
			return err
		}
	case VaultBucketUnlocking:
		// Whole entries are withdrawn front to back until the seizure is
		// covered; any excess underlying is returned to the liquidatee below.
		covered := big.NewInt(0)
		remaining := position.Unlocking[:0]
		for _, entry := range position.Unlocking {
			if covered.Cmp(seize) >= 0 {
				remaining = append(remaining, entry)
				continue
			}
			if err := adapter.WithdrawUnlocked(entry.ID); err != nil {
				return err
			}
			if entry.Coin.Amount != nil {
				covered.Add(covered, entry.Coin.Amount)
			}
		}
		if covered.Sign() == 0 {
			return ErrCoinNotAvailable
		}
		position.Unlocking = remaining
	default:
		return RequirementsNotMetError{Reason: "unknown vault bucket"}
	}
	if err := ctx.session.PutVaultPosition(liquidatee, request.Vault, position); err != nil {
		return err
	}

	current, err := e.bank.Balance(e.address, info.BaseDenom)
	if err != nil {
		return err
	}
	if current.Cmp(previous) < 0 {
		return ErrOverflow
	}
	withdrawn := new(big.Int).Sub(current, previous)
	if withdrawn.Sign() == 0 {
		return ErrCoinNotAvailable
	}

	seized := new(big.Int).Set(seize)
	if seized.Cmp(withdrawn) > 0 {
		seized.Set(withdrawn)
	}
	excess := new(big.Int).Sub(withdrawn, seized)
	if excess.Sign() > 0 {
		if err := increaseDeposit(ctx.session, liquidatee, Coin{Denom: info.BaseDenom, Amount: excess}); err != nil {
			return err
		}
	}
	fee := decimal.NewFromBigInt(seized, 0).Mul(params.ProtocolFee).Floor().BigInt()
	if fee.Sign() > 0 && e.rewardsCollector != "" {
		if err := e.bank.Send(e.address, e.rewardsCollector, []Coin{{Denom: info.BaseDenom, Amount: fee}}); err != nil {
			return err
		}
	}
	return increaseDeposit(ctx.session, ctx.accountID, Coin{Denom: info.BaseDenom, Amount: new(big.Int).Sub(seized, fee)})
}
