package credit

import "math/big"

// Debt shares are a pro-rata claim on the manager's growing principal owed to
// the Red Bank per denom. The first borrow in a denom seeds shares with a
// fixed inflator so later pro-rata mints keep integer precision.

func mulDiv(a, b, div *big.Int) (*big.Int, error) {
	if div == nil || div.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, div), nil
}

func ceilDiv(a, b *big.Int) (*big.Int, error) {
	if b == nil || b.Sign() == 0 {
		return nil, ErrDivideByZero
	}
	out := new(big.Int)
	rem := new(big.Int)
	out.QuoRem(a, b, rem)
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out, nil
}

// mintDebtShares books a new borrow of amount against the account, querying
// the Red Bank for the underlying debt before the borrow is executed.
func (e *Engine) mintDebtShares(s StateSession, accountID, denom string, amount *big.Int) (*big.Int, error) {
	total, err := s.TotalDebtShares(denom)
	if err != nil {
		return nil, err
	}
	var minted *big.Int
	if total.Sign() == 0 {
		minted = new(big.Int).Mul(amount, big.NewInt(debtSharesPerCoinBorrowed))
	} else {
		underlying, err := e.redBank.UnderlyingDebt(denom)
		if err != nil {
			return nil, err
		}
		minted, err = mulDiv(total, amount, underlying)
		if err != nil {
			return nil, err
		}
	}
	accountShares, err := s.DebtShares(accountID, denom)
	if err != nil {
		return nil, err
	}
	if err := s.PutDebtShares(accountID, denom, new(big.Int).Add(accountShares, minted)); err != nil {
		return nil, err
	}
	if err := s.PutTotalDebtShares(denom, new(big.Int).Add(total, minted)); err != nil {
		return nil, err
	}
	return minted, nil
}

// burnDebtShares retires debt shares worth amount on the account, flooring
// the share conversion and clamping so shares never go negative. It returns
// the burned share count.
func (e *Engine) burnDebtShares(s StateSession, accountID, denom string, amount *big.Int) (*big.Int, error) {
	accountShares, err := s.DebtShares(accountID, denom)
	if err != nil {
		return nil, err
	}
	if accountShares.Sign() == 0 {
		return nil, ErrNoDebt
	}
	total, err := s.TotalDebtShares(denom)
	if err != nil {
		return nil, err
	}
	underlying, err := e.redBank.UnderlyingDebt(denom)
	if err != nil {
		return nil, err
	}
	burned, err := mulDiv(total, amount, underlying)
	if err != nil {
		return nil, err
	}
	if burned.Cmp(accountShares) > 0 {
		burned = new(big.Int).Set(accountShares)
	}
	if err := s.PutDebtShares(accountID, denom, new(big.Int).Sub(accountShares, burned)); err != nil {
		return nil, err
	}
	if err := s.PutTotalDebtShares(denom, new(big.Int).Sub(total, burned)); err != nil {
		return nil, err
	}
	return burned, nil
}

// debtAmount converts an account's shares in a denom to the underlying owed
// amount, rounding up so dust debt is never understated.
func (e *Engine) debtAmount(s StateSession, accountID, denom string) (*big.Int, error) {
	shares, err := s.DebtShares(accountID, denom)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	total, err := s.TotalDebtShares(denom)
	if err != nil {
		return nil, err
	}
	underlying, err := e.redBank.UnderlyingDebt(denom)
	if err != nil {
		return nil, err
	}
	scaled := new(big.Int).Mul(shares, underlying)
	return ceilDiv(scaled, total)
}

// debtAmounts resolves every debt position of the account to underlying
// amounts alongside the raw shares.
func (e *Engine) debtAmounts(s StateSession, accountID string) ([]DebtAmount, error) {
	shares, err := s.AccountDebtShares(accountID)
	if err != nil {
		return nil, err
	}
	out := make([]DebtAmount, 0, len(shares))
	for _, sb := range shares {
		amount, err := e.debtAmount(s, accountID, sb.Denom)
		if err != nil {
			return nil, err
		}
		out = append(out, DebtAmount{Denom: sb.Denom, Shares: sb.Shares, Amount: amount})
	}
	return out, nil
}

// --- lend shares, symmetric to debt shares ---

func (e *Engine) mintLendShares(s StateSession, accountID, denom string, amount *big.Int) (*big.Int, error) {
	total, err := s.TotalLendShares(denom)
	if err != nil {
		return nil, err
	}
	var minted *big.Int
	if total.Sign() == 0 {
		minted = new(big.Int).Mul(amount, big.NewInt(lendSharesPerCoinSupplied))
	} else {
		underlying, err := e.redBank.UnderlyingLent(denom)
		if err != nil {
			return nil, err
		}
		minted, err = mulDiv(total, amount, underlying)
		if err != nil {
			return nil, err
		}
	}
	accountShares, err := s.LendShares(accountID, denom)
	if err != nil {
		return nil, err
	}
	if err := s.PutLendShares(accountID, denom, new(big.Int).Add(accountShares, minted)); err != nil {
		return nil, err
	}
	if err := s.PutTotalLendShares(denom, new(big.Int).Add(total, minted)); err != nil {
		return nil, err
	}
	return minted, nil
}

// burnLendShares retires lend shares worth amount and returns both the burned
// shares and the underlying amount they resolved to.
func (e *Engine) burnLendShares(s StateSession, accountID, denom string, amount *big.Int) (*big.Int, *big.Int, error) {
	accountShares, err := s.LendShares(accountID, denom)
	if err != nil {
		return nil, nil, err
	}
	if accountShares.Sign() == 0 {
		return nil, nil, ErrNoPositionMatch
	}
	total, err := s.TotalLendShares(denom)
	if err != nil {
		return nil, nil, err
	}
	underlying, err := e.redBank.UnderlyingLent(denom)
	if err != nil {
		return nil, nil, err
	}
	burned, err := mulDiv(total, amount, underlying)
	if err != nil {
		return nil, nil, err
	}
	if burned.Cmp(accountShares) > 0 {
		burned = new(big.Int).Set(accountShares)
	}
	reclaimed, err := mulDiv(burned, underlying, total)
	if err != nil {
		return nil, nil, err
	}
	if err := s.PutLendShares(accountID, denom, new(big.Int).Sub(accountShares, burned)); err != nil {
		return nil, nil, err
	}
	if err := s.PutTotalLendShares(denom, new(big.Int).Sub(total, burned)); err != nil {
		return nil, nil, err
	}
	return burned, reclaimed, nil
}

// lendAmount converts an account's lend shares to the underlying supplied
// amount, flooring in the account's disfavour.
func (e *Engine) lendAmount(s StateSession, accountID, denom string) (*big.Int, error) {
	shares, err := s.LendShares(accountID, denom)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	total, err := s.TotalLendShares(denom)
	if err != nil {
		return nil, err
	}
	underlying, err := e.redBank.UnderlyingLent(denom)
	if err != nil {
		return nil, err
	}
	return mulDiv(shares, underlying, total)
}

func (e *Engine) lendAmounts(s StateSession, accountID string) ([]Coin, error) {
	shares, err := s.AccountLendShares(accountID)
	if err != nil {
		return nil, err
	}
	out := make([]Coin, 0, len(shares))
	for _, sb := range shares {
		amount, err := e.lendAmount(s, accountID, sb.Denom)
		if err != nil {
			return nil, err
		}
		out = append(out, Coin{Denom: sb.Denom, Amount: amount})
	}
	return out, nil
}
