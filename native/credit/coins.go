package credit

import (
	"math/big"
)

// increaseDeposit and decreaseDeposit are the only paths that mutate an
// account's deposit balances, so zero-balance entries are always pruned.
func increaseDeposit(s StateSession, accountID string, coin Coin) error {
	if !coin.IsPositive() {
		return nil
	}
	balance, err := s.Deposit(accountID, coin.Denom)
	if err != nil {
		return err
	}
	return s.PutDeposit(accountID, coin.Denom, new(big.Int).Add(balance, coin.Amount))
}

func decreaseDeposit(s StateSession, accountID string, coin Coin) error {
	balance, err := s.Deposit(accountID, coin.Denom)
	if err != nil {
		return err
	}
	if balance.Cmp(coin.Amount) < 0 {
		return ErrInsufficientBalance
	}
	return s.PutDeposit(accountID, coin.Denom, new(big.Int).Sub(balance, coin.Amount))
}

// resolveActionCoin turns an ActionCoin into a concrete coin against the
// account's current deposit balance.
func (e *Engine) resolveActionCoin(s StateSession, accountID string, ac ActionCoin) (Coin, error) {
	balance, err := s.Deposit(accountID, ac.Denom)
	if err != nil {
		return Coin{}, err
	}
	return Coin{Denom: ac.Denom, Amount: ac.Amount.Resolve(balance)}, nil
}

func (e *Engine) deposit(ctx *execContext, action Deposit) error {
	coin := action.Coin
	if !coin.IsPositive() {
		return ErrNoAmount
	}
	params, err := e.params.AssetParams(coin.Denom)
	if err != nil {
		return err
	}
	if params == nil || !params.Whitelisted {
		return NotWhitelistedError{Denom: coin.Denom}
	}
	remaining, ok := ctx.funds[coin.Denom]
	if !ok || remaining.Cmp(coin.Amount) < 0 {
		return ErrFundsMismatch
	}
	remaining.Sub(remaining, coin.Amount)
	return increaseDeposit(ctx.session, ctx.accountID, coin)
}

func (e *Engine) withdraw(ctx *execContext, action Withdraw) error {
	coin, err := e.resolveActionCoin(ctx.session, ctx.accountID, action.Coin)
	if err != nil {
		return err
	}
	if !coin.IsPositive() {
		return ErrNoAmount
	}
	if err := decreaseDeposit(ctx.session, ctx.accountID, coin); err != nil {
		return err
	}
	recipient := action.Recipient
	if recipient == "" {
		recipient = ctx.caller
	}
	return e.bank.Send(e.address, recipient, []Coin{coin})
}

func (e *Engine) borrow(ctx *execContext, action Borrow) error {
	coin := action.Coin
	if !coin.IsPositive() {
		return ErrNoAmount
	}
	params, err := e.params.AssetParams(coin.Denom)
	if err != nil {
		return err
	}
	if params == nil || !params.Whitelisted {
		return NotWhitelistedError{Denom: coin.Denom}
	}
	if _, err := e.mintDebtShares(ctx.session, ctx.accountID, coin.Denom, coin.Amount); err != nil {
		return err
	}
	if err := e.redBank.Borrow(coin.Denom, coin.Amount); err != nil {
		return err
	}
	return increaseDeposit(ctx.session, ctx.accountID, coin)
}

func (e *Engine) lend(ctx *execContext, action Lend) error {
	coin, err := e.resolveActionCoin(ctx.session, ctx.accountID, action.Coin)
	if err != nil {
		return err
	}
	if !coin.IsPositive() {
		return ErrNoAmount
	}
	params, err := e.params.AssetParams(coin.Denom)
	if err != nil {
		return err
	}
	if params == nil || !params.Whitelisted {
		return NotWhitelistedError{Denom: coin.Denom}
	}
	if err := decreaseDeposit(ctx.session, ctx.accountID, coin); err != nil {
		return err
	}
	if _, err := e.mintLendShares(ctx.session, ctx.accountID, coin.Denom, coin.Amount); err != nil {
		return err
	}
	return e.redBank.Lend(coin.Denom, coin.Amount)
}

func (e *Engine) reclaim(ctx *execContext, action Reclaim) error {
	lent, err := e.lendAmount(ctx.session, ctx.accountID, action.Coin.Denom)
	if err != nil {
		return err
	}
	amount := action.Coin.Amount.Resolve(lent)
	if amount.Sign() <= 0 {
		return ErrNoAmount
	}
	_, reclaimed, err := e.burnLendShares(ctx.session, ctx.accountID, action.Coin.Denom, amount)
	if err != nil {
		return err
	}
	if err := e.redBank.Reclaim(action.Coin.Denom, reclaimed); err != nil {
		return err
	}
	return increaseDeposit(ctx.session, ctx.accountID, Coin{Denom: action.Coin.Denom, Amount: reclaimed})
}

// repay burns debt shares on the recipient account, funded from the acting
// account's deposits. Repaying more than is owed clamps to the debt.
func (e *Engine) repay(ctx *execContext, action Repay) error {
	recipient := action.RecipientAccountID
	if recipient == "" {
		recipient = ctx.accountID
	}
	owed, err := e.debtAmount(ctx.session, recipient, action.Coin.Denom)
	if err != nil {
		return err
	}
	if owed.Sign() == 0 {
		return ErrNoDebt
	}
	balance, err := ctx.session.Deposit(ctx.accountID, action.Coin.Denom)
	if err != nil {
		return err
	}
	amount := action.Coin.Amount.Resolve(balance)
	if amount.Sign() <= 0 {
		return ErrNoAmount
	}
	if amount.Cmp(owed) > 0 {
		amount = owed
	}
	if err := decreaseDeposit(ctx.session, ctx.accountID, Coin{Denom: action.Coin.Denom, Amount: amount}); err != nil {
		return err
	}
	if _, err := e.burnDebtShares(ctx.session, recipient, action.Coin.Denom, amount); err != nil {
		return err
	}
	return e.redBank.Repay(action.Coin.Denom, amount)
}

func (e *Engine) stakeLP(ctx *execContext, action StakeLP) error {
	if e.incentives == nil {
		return ErrAdapterNotConfigured
	}
	coin, err := e.resolveActionCoin(ctx.session, ctx.accountID, action.Coin)
	if err != nil {
		return err
	}
	if !coin.IsPositive() {
		return ErrNoAmount
	}
	staked, err := ctx.session.StakedLP(ctx.accountID, coin.Denom)
	if err != nil {
		return err
	}
	if err := e.incentives.BalanceChange(ctx.accountID, coin.Denom, staked); err != nil {
		return err
	}
	if err := decreaseDeposit(ctx.session, ctx.accountID, coin); err != nil {
		return err
	}
	return ctx.session.PutStakedLP(ctx.accountID, coin.Denom, new(big.Int).Add(staked, coin.Amount))
}

func (e *Engine) unstakeLP(ctx *execContext, action UnstakeLP) error {
	if e.incentives == nil {
		return ErrAdapterNotConfigured
	}
	staked, err := ctx.session.StakedLP(ctx.accountID, action.Coin.Denom)
	if err != nil {
		return err
	}
	amount := action.Coin.Amount.Resolve(staked)
	if amount.Sign() <= 0 {
		return ErrNoAmount
	}
	if amount.Cmp(staked) > 0 {
		return ErrInsufficientBalance
	}
	if err := e.incentives.BalanceChange(ctx.accountID, action.Coin.Denom, staked); err != nil {
		return err
	}
	if err := ctx.session.PutStakedLP(ctx.accountID, action.Coin.Denom, new(big.Int).Sub(staked, amount)); err != nil {
		return err
	}
	return increaseDeposit(ctx.session, ctx.accountID, Coin{Denom: action.Coin.Denom, Amount: amount})
}

func (e *Engine) claimRewards(ctx *execContext) error {
	if e.incentives == nil {
		return ErrAdapterNotConfigured
	}
	rewards, err := e.incentives.ClaimRewards(ctx.accountID)
	if err != nil {
		return err
	}
	for _, coin := range rewards {
		if coin.IsPositive() {
			ctx.noteCapDenom(coin.Denom)
		}
		if err := increaseDeposit(ctx.session, ctx.accountID, coin); err != nil {
			return err
		}
	}
	return nil
}

// runUpdateCoinBalance books the manager's bank balance delta of a denom
// against the account after an adapter call.
func (e *Engine) runUpdateCoinBalance(ctx *execContext, cb updateCoinBalance) error {
	current, err := e.bank.Balance(e.address, cb.denom)
	if err != nil {
		return err
	}
	switch cb.change {
	case balanceIncrease:
		if current.Cmp(cb.previous) < 0 {
			return ErrOverflow
		}
		delta := new(big.Int).Sub(current, cb.previous)
		if delta.Sign() > 0 {
			ctx.noteCapDenom(cb.denom)
		}
		return increaseDeposit(ctx.session, cb.accountID, Coin{Denom: cb.denom, Amount: delta})
	case balanceDecrease:
		if cb.previous.Cmp(current) < 0 {
			return ErrOverflow
		}
		delta := new(big.Int).Sub(cb.previous, current)
		return decreaseDeposit(ctx.session, cb.accountID, Coin{Denom: cb.denom, Amount: delta})
	}
	return nil
}
