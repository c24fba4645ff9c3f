package credit_test

import (
	"errors"
	"math/big"
	"testing"

	"creditmanager/native/credit"
)

// setupLiquidatee builds an account that borrows while collateral is
// expensive; the caller then drops the price to make it liquidatable.
func setupLiquidatee(t *testing.T, env *testEnv, owner string, deposit, borrow int64) string {
	t.Helper()
	env.bank.set(owner, "uosmo", deposit)
	account := env.createAccount(owner, credit.AccountKindDefault)
	if err := env.engine.UpdateCreditAccount(owner, account, []credit.Action{
		credit.Deposit{Coin: credit.NewCoin("uosmo", deposit)},
		credit.Borrow{Coin: credit.NewCoin("udai", borrow)},
		credit.Withdraw{Coin: credit.ActionCoin{Denom: "udai", Amount: credit.BalanceAmount()}},
	}, []credit.Coin{credit.NewCoin("uosmo", deposit)}); err != nil {
		t.Fatalf("liquidatee setup: %v", err)
	}
	return account
}

func TestLiquidationBonusAndSeizure(t *testing.T) {
	env := newTestEnv()
	osmo := env.params.asset("uosmo", "0.8", "0.9")
	osmo.LiquidationBonus = credit.LiquidationBonus{
		StartingLB: dec("0.01"),
		Slope:      dec("2"),
		MinLB:      dec("0.02"),
		MaxLB:      dec("0.10"),
	}
	env.params.asset("udai", "0.8", "0.9")
	env.oracle.setPrice("uosmo", "4")
	env.oracle.setPrice("udai", "1")

	liquidatee := setupLiquidatee(t, env, userAddr, 1_200, 3_100)

	// Collateral crashes; the account is now under water.
	env.oracle.setPrice("uosmo", "1.5")

	env.bank.set(otherAddr, "udai", 150)
	liquidator := env.createAccount(otherAddr, credit.AccountKindDefault)
	if err := env.engine.UpdateCreditAccount(otherAddr, liquidator, []credit.Action{
		credit.Deposit{Coin: credit.NewCoin("udai", 150)},
		credit.Liquidate{
			LiquidateeAccountID: liquidatee,
			DebtCoin:            credit.NewCoin("udai", 100),
			Request:             credit.LiquidationRequest{Kind: credit.LiquidateDeposit, Denom: "uosmo"},
		},
	}, []credit.Coin{credit.NewCoin("udai", 150)}); err != nil {
		t.Fatalf("liquidation: %v", err)
	}

	s := env.session()
	seized, err := s.Deposit(liquidator, "uosmo")
	if err != nil {
		t.Fatalf("liquidator deposit: %v", err)
	}
	// 100 x 1 x 1.10 / 1.5 floored.
	if seized.Cmp(big.NewInt(73)) != 0 {
		t.Fatalf("unexpected seized amount: %s", seized)
	}
	remaining, err := s.Deposit(liquidator, "udai")
	if err != nil {
		t.Fatalf("liquidator udai: %v", err)
	}
	if remaining.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("unexpected refund: %s", remaining)
	}
	liquidateeOsmo, err := s.Deposit(liquidatee, "uosmo")
	if err != nil {
		t.Fatalf("liquidatee deposit: %v", err)
	}
	if liquidateeOsmo.Cmp(big.NewInt(1_127)) != 0 {
		t.Fatalf("unexpected liquidatee collateral: %s", liquidateeOsmo)
	}
	shares, err := s.DebtShares(liquidatee, "udai")
	if err != nil {
		t.Fatalf("liquidatee shares: %v", err)
	}
	if shares.Cmp(big.NewInt(3_000_000_000)) != 0 {
		t.Fatalf("unexpected remaining debt shares: %s", shares)
	}
}

func TestLiquidateHealthyAccountFails(t *testing.T) {
	env := newTestEnv()
	env.params.asset("uosmo", "0.8", "0.9")
	env.params.asset("udai", "0.8", "0.9")
	env.oracle.setPrice("uosmo", "4")
	env.oracle.setPrice("udai", "1")

	liquidatee := setupLiquidatee(t, env, userAddr, 1_200, 1_000)

	env.bank.set(otherAddr, "udai", 100)
	liquidator := env.createAccount(otherAddr, credit.AccountKindDefault)
	err := env.engine.UpdateCreditAccount(otherAddr, liquidator, []credit.Action{
		credit.Deposit{Coin: credit.NewCoin("udai", 100)},
		credit.Liquidate{
			LiquidateeAccountID: liquidatee,
			DebtCoin:            credit.NewCoin("udai", 100),
			Request:             credit.LiquidationRequest{Kind: credit.LiquidateDeposit, Denom: "uosmo"},
		},
	}, []credit.Coin{credit.NewCoin("udai", 100)})
	if !errors.Is(err, credit.ErrNotLiquidatable) {
		t.Fatalf("expected not liquidatable, got %v", err)
	}
}

func TestSelfLiquidationRejected(t *testing.T) {
	env := newTestEnv()
	env.params.asset("uosmo", "0.8", "0.9")
	env.params.asset("udai", "0.8", "0.9")
	env.oracle.setPrice("uosmo", "4")
	env.oracle.setPrice("udai", "1")

	account := setupLiquidatee(t, env, userAddr, 1_200, 3_100)
	env.oracle.setPrice("uosmo", "1.5")

	err := env.engine.UpdateCreditAccount(userAddr, account, []credit.Action{
		credit.Liquidate{
			LiquidateeAccountID: account,
			DebtCoin:            credit.NewCoin("udai", 100),
			Request:             credit.LiquidationRequest{Kind: credit.LiquidateDeposit, Denom: "uosmo"},
		},
	}, nil)
	if !errors.Is(err, credit.ErrSelfLiquidation) {
		t.Fatalf("expected self liquidation error, got %v", err)
	}
}

func TestLiquidateLendTransfersShares(t *testing.T) {
	env := newTestEnv()
	osmo := env.params.asset("uosmo", "0.8", "0.9")
	osmo.LiquidationBonus = credit.LiquidationBonus{
		StartingLB: dec("0.01"),
		Slope:      dec("2"),
		MinLB:      dec("0.02"),
		MaxLB:      dec("0.10"),
	}
	env.params.asset("udai", "0.8", "0.9")
	env.oracle.setPrice("uosmo", "4")
	env.oracle.setPrice("udai", "1")

	env.bank.set(userAddr, "uosmo", 1_200)
	liquidatee := env.createAccount(userAddr, credit.AccountKindDefault)
	if err := env.engine.UpdateCreditAccount(userAddr, liquidatee, []credit.Action{
		credit.Deposit{Coin: credit.NewCoin("uosmo", 1_200)},
		credit.Lend{Coin: credit.ActionCoin{Denom: "uosmo", Amount: credit.BalanceAmount()}},
		credit.Borrow{Coin: credit.NewCoin("udai", 3_100)},
		credit.Withdraw{Coin: credit.ActionCoin{Denom: "udai", Amount: credit.BalanceAmount()}},
	}, []credit.Coin{credit.NewCoin("uosmo", 1_200)}); err != nil {
		t.Fatalf("liquidatee setup: %v", err)
	}
	env.oracle.setPrice("uosmo", "1.5")

	env.bank.set(otherAddr, "udai", 100)
	liquidator := env.createAccount(otherAddr, credit.AccountKindDefault)
	if err := env.engine.UpdateCreditAccount(otherAddr, liquidator, []credit.Action{
		credit.Deposit{Coin: credit.NewCoin("udai", 100)},
		credit.Liquidate{
			LiquidateeAccountID: liquidatee,
			DebtCoin:            credit.NewCoin("udai", 100),
			Request:             credit.LiquidationRequest{Kind: credit.LiquidateLend, Denom: "uosmo"},
		},
	}, []credit.Coin{credit.NewCoin("udai", 100)}); err != nil {
		t.Fatalf("liquidation: %v", err)
	}

	s := env.session()
	liquidatorShares, err := s.LendShares(liquidator, "uosmo")
	if err != nil {
		t.Fatalf("liquidator lend shares: %v", err)
	}
	// 73 coins worth of lend shares at the 1e6 inflator.
	if liquidatorShares.Cmp(big.NewInt(73_000_000)) != 0 {
		t.Fatalf("unexpected transferred shares: %s", liquidatorShares)
	}
	liquidateeShares, err := s.LendShares(liquidatee, "uosmo")
	if err != nil {
		t.Fatalf("liquidatee lend shares: %v", err)
	}
	if liquidateeShares.Cmp(big.NewInt(1_127_000_000)) != 0 {
		t.Fatalf("unexpected remaining shares: %s", liquidateeShares)
	}
	// The Red Bank position is untouched by a lend-share transfer.
	lent, err := env.redBank.UnderlyingLent("uosmo")
	if err != nil {
		t.Fatalf("underlying lent: %v", err)
	}
	if lent.Cmp(big.NewInt(1_200)) != 0 {
		t.Fatalf("unexpected red bank lent: %s", lent)
	}
}

func TestLiquidateVaultTakesProtocolFee(t *testing.T) {
	env := newTestEnv()
	osmo := env.params.asset("uosmo", "0.8", "0.9")
	osmo.LiquidationBonus = credit.LiquidationBonus{
		StartingLB: dec("0.01"),
		Slope:      dec("2"),
		MinLB:      dec("0.02"),
		MaxLB:      dec("0.10"),
	}
	osmo.ProtocolFee = dec("0.1")
	env.params.asset("udai", "0.8", "0.9")
	env.params.vault("vault1", "0.8", "0.9")
	env.oracle.setPrice("uosmo", "4")
	env.oracle.setPrice("udai", "1")
	env.vaults.vaults["vault1"] = newMockVault(env.bank, "uosmo", "vault1/share", 0)

	env.bank.set(userAddr, "uosmo", 1_200)
	liquidatee := env.createAccount(userAddr, credit.AccountKindDefault)
	if err := env.engine.UpdateCreditAccount(userAddr, liquidatee, []credit.Action{
		credit.Deposit{Coin: credit.NewCoin("uosmo", 1_200)},
		credit.EnterVault{
			Vault: "vault1",
			Coin:  credit.ActionCoin{Denom: "uosmo", Amount: credit.BalanceAmount()},
		},
		credit.Borrow{Coin: credit.NewCoin("udai", 2_000)},
		credit.Withdraw{Coin: credit.ActionCoin{Denom: "udai", Amount: credit.BalanceAmount()}},
	}, []credit.Coin{credit.NewCoin("uosmo", 1_200)}); err != nil {
		t.Fatalf("liquidatee setup: %v", err)
	}
	env.oracle.setPrice("uosmo", "1")

	env.bank.set(otherAddr, "udai", 100)
	liquidator := env.createAccount(otherAddr, credit.AccountKindDefault)
	if err := env.engine.UpdateCreditAccount(otherAddr, liquidator, []credit.Action{
		credit.Deposit{Coin: credit.NewCoin("udai", 100)},
		credit.Liquidate{
			LiquidateeAccountID: liquidatee,
			DebtCoin:            credit.NewCoin("udai", 100),
			Request: credit.LiquidationRequest{
				Kind:   credit.LiquidateVault,
				Vault:  "vault1",
				Bucket: credit.VaultBucketUnlocked,
			},
		},
	}, []credit.Coin{credit.NewCoin("udai", 100)}); err != nil {
		t.Fatalf("liquidation: %v", err)
	}

	s := env.session()
	// Seize value 110 uosmo, 10% fee to the collector, remainder to the
	// liquidator's deposits.
	liquidatorOsmo, err := s.Deposit(liquidator, "uosmo")
	if err != nil {
		t.Fatalf("liquidator deposit: %v", err)
	}
	if liquidatorOsmo.Cmp(big.NewInt(99)) != 0 {
		t.Fatalf("unexpected seized deposit: %s", liquidatorOsmo)
	}
	fee, _ := env.bank.Balance(collectorAddr, "uosmo")
	if fee.Cmp(big.NewInt(11)) != 0 {
		t.Fatalf("unexpected protocol fee: %s", fee)
	}
	position, err := s.VaultPosition(liquidatee, "vault1")
	if err != nil {
		t.Fatalf("vault position: %v", err)
	}
	if position == nil || position.Unlocked.Cmp(big.NewInt(1_090)) != 0 {
		t.Fatalf("unexpected remaining vault shares: %+v", position)
	}
}

func TestLiquidateEmptyBucketFails(t *testing.T) {
	env := newTestEnv()
	osmo := env.params.asset("uosmo", "0.8", "0.9")
	osmo.LiquidationBonus = credit.LiquidationBonus{
		StartingLB: dec("0.01"),
		Slope:      dec("2"),
		MinLB:      dec("0.02"),
		MaxLB:      dec("0.10"),
	}
	env.params.asset("udai", "0.8", "0.9")
	env.oracle.setPrice("uosmo", "4")
	env.oracle.setPrice("udai", "1")

	liquidatee := setupLiquidatee(t, env, userAddr, 1_200, 3_100)
	env.oracle.setPrice("uosmo", "1.5")

	env.bank.set(otherAddr, "udai", 100)
	liquidator := env.createAccount(otherAddr, credit.AccountKindDefault)
	err := env.engine.UpdateCreditAccount(otherAddr, liquidator, []credit.Action{
		credit.Deposit{Coin: credit.NewCoin("udai", 100)},
		credit.Liquidate{
			LiquidateeAccountID: liquidatee,
			DebtCoin:            credit.NewCoin("udai", 100),
			Request:             credit.LiquidationRequest{Kind: credit.LiquidateLend, Denom: "uosmo"},
		},
	}, []credit.Coin{credit.NewCoin("udai", 100)})
	if !errors.Is(err, credit.ErrCoinNotAvailable) {
		t.Fatalf("expected coin not available, got %v", err)
	}
}
