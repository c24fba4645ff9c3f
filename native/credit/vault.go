package credit

import (
	"math/big"

	"github.com/shopspring/decimal"
)

func (e *Engine) vaultAdapter(vault string) (Vault, VaultInfo, error) {
	if e.vaults == nil {
		return nil, VaultInfo{}, ErrAdapterNotConfigured
	}
	adapter, ok := e.vaults.Adapter(vault)
	if !ok {
		return nil, VaultInfo{}, MissingParamsError{Vault: vault}
	}
	info, err := adapter.Info()
	if err != nil {
		return nil, VaultInfo{}, err
	}
	return adapter, info, nil
}

func (e *Engine) enterVault(ctx *execContext, action EnterVault) error {
	config, err := e.params.VaultConfig(action.Vault)
	if err != nil {
		return err
	}
	if config == nil || !config.Whitelisted {
		return NotWhitelistedError{Vault: action.Vault}
	}
	adapter, info, err := e.vaultAdapter(action.Vault)
	if err != nil {
		return err
	}
	if action.Coin.Denom != info.BaseDenom {
		return RequirementsNotMetError{Reason: "vault " + action.Vault + " accepts only " + info.BaseDenom}
	}
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
	previous, err := e.bank.Balance(e.address, info.VaultToken)
	if err != nil {
		return err
	}
	if err := adapter.Deposit(coin); err != nil {
		return err
	}
	ctx.pushFront(updateVaultCoinBalance{
		accountID: ctx.accountID,
		vault:     action.Vault,
		previous:  previous,
	})
	return nil
}

// runUpdateVaultCoinBalance books minted vault shares into the position and
// enforces the vault's deposit cap on the projected total.
func (e *Engine) runUpdateVaultCoinBalance(ctx *execContext, cb updateVaultCoinBalance) error {
	adapter, info, err := e.vaultAdapter(cb.vault)
	if err != nil {
		return err
	}
	current, err := e.bank.Balance(e.address, info.VaultToken)
	if err != nil {
		return err
	}
	if current.Cmp(cb.previous) < 0 {
		return ErrOverflow
	}
	minted := new(big.Int).Sub(current, cb.previous)
	position, err := ctx.session.VaultPosition(cb.accountID, cb.vault)
	if err != nil {
		return err
	}
	if position == nil {
		position = &VaultPosition{}
	}
	position.normalize()
	if info.Lockup == 0 {
		position.Unlocked = new(big.Int).Add(position.Unlocked, minted)
	} else {
		position.Locked = new(big.Int).Add(position.Locked, minted)
	}
	if err := ctx.session.PutVaultPosition(cb.accountID, cb.vault, position); err != nil {
		return err
	}
	return e.assertVaultDepositCap(cb.vault, adapter, info)
}

// assertVaultDepositCap projects the base-denom value of every credit manager
// position in the vault and rejects the sequence when it breaches the cap.
func (e *Engine) assertVaultDepositCap(vault string, adapter Vault, info VaultInfo) error {
	config, err := e.params.VaultConfig(vault)
	if err != nil {
		return err
	}
	if config == nil || config.DepositCap == nil {
		return nil
	}
	totalShares, err := e.bank.Balance(e.address, info.VaultToken)
	if err != nil {
		return err
	}
	underlying, err := adapter.PreviewRedeem(totalShares)
	if err != nil {
		return err
	}
	price, err := e.price(info.BaseDenom, PriceKindDefault)
	if err != nil {
		return err
	}
	value := decimal.NewFromBigInt(underlying, 0).Mul(price).Floor().BigInt()
	if value.Cmp(config.DepositCap) > 0 {
		return AboveVaultDepositCapError{Vault: vault, NewValue: value, Maximum: config.DepositCap}
	}
	return nil
}

func (e *Engine) exitVault(ctx *execContext, action ExitVault) error {
	adapter, info, err := e.vaultAdapter(action.Vault)
	if err != nil {
		return err
	}
	if info.Lockup != 0 {
		return RequirementsNotMetError{Reason: "vault " + action.Vault + " requires an unlock request"}
	}
	position, err := ctx.session.VaultPosition(ctx.accountID, action.Vault)
	if err != nil {
		return err
	}
	if position == nil {
		return ErrNoPositionMatch
	}
	position.normalize()
	shares := action.Amount.Resolve(position.Unlocked)
	if shares.Sign() <= 0 {
		return ErrNoAmount
	}
	if shares.Cmp(position.Unlocked) > 0 {
		return ErrInsufficientBalance
	}
	position.Unlocked = new(big.Int).Sub(position.Unlocked, shares)
	if err := ctx.session.PutVaultPosition(ctx.accountID, action.Vault, position); err != nil {
		return err
	}
	previous, err := e.bank.Balance(e.address, info.BaseDenom)
	if err != nil {
		return err
	}
	if err := adapter.Redeem(shares); err != nil {
		return err
	}
	ctx.pushFront(updateCoinBalance{
		accountID: ctx.accountID,
		denom:     info.BaseDenom,
		previous:  previous,
		change:    balanceIncrease,
	})
	return nil
}

func (e *Engine) requestVaultUnlock(ctx *execContext, action RequestVaultUnlock) error {
	adapter, info, err := e.vaultAdapter(action.Vault)
	if err != nil {
		return err
	}
	if info.Lockup == 0 {
		return RequirementsNotMetError{Reason: "vault " + action.Vault + " has no lockup"}
	}
	position, err := ctx.session.VaultPosition(ctx.accountID, action.Vault)
	if err != nil {
		return err
	}
	if position == nil {
		return ErrNoPositionMatch
	}
	position.normalize()
	shares := action.Amount.Resolve(position.Locked)
	if shares.Sign() <= 0 {
		return ErrNoAmount
	}
	if shares.Cmp(position.Locked) > 0 {
		return ErrInsufficientBalance
	}
	underlying, err := adapter.PreviewRedeem(shares)
	if err != nil {
		return err
	}
	id, err := adapter.RequestUnlock(shares)
	if err != nil {
		return err
	}
	position.Locked = new(big.Int).Sub(position.Locked, shares)
	position.Unlocking = append(position.Unlocking, VaultUnlockingPosition{
		ID:        id,
		Coin:      Coin{Denom: info.BaseDenom, Amount: underlying},
		ReleaseAt: e.blockTime + info.Lockup,
	})
	return ctx.session.PutVaultPosition(ctx.accountID, action.Vault, position)
}

// exitVaultUnlocked withdraws a matured unlocking position. The vault
// whitelist is deliberately not consulted so users can always leave a
// de-listed vault.
func (e *Engine) exitVaultUnlocked(ctx *execContext, action ExitVaultUnlocked) error {
	adapter, info, err := e.vaultAdapter(action.Vault)
	if err != nil {
		return err
	}
	position, err := ctx.session.VaultPosition(ctx.accountID, action.Vault)
	if err != nil {
		return err
	}
	if position == nil {
		return ErrNoPositionMatch
	}
	index := -1
	for i, u := range position.Unlocking {
		if u.ID == action.ID {
			index = i
			break
		}
	}
	if index < 0 {
		return ErrNoPositionMatch
	}
	entry := position.Unlocking[index]
	if e.blockTime < entry.ReleaseAt {
		return ErrUnlockNotReady
	}
	previous, err := e.bank.Balance(e.address, info.BaseDenom)
	if err != nil {
		return err
	}
	if err := adapter.WithdrawUnlocked(entry.ID); err != nil {
		return err
	}
	position.Unlocking = append(position.Unlocking[:index], position.Unlocking[index+1:]...)
	if err := ctx.session.PutVaultPosition(ctx.accountID, action.Vault, position); err != nil {
		return err
	}
	ctx.pushFront(updateCoinBalance{
		accountID: ctx.accountID,
		denom:     info.BaseDenom,
		previous:  previous,
		change:    balanceIncrease,
	})
	return nil
}

// vaultPositionValue prices one vault position: vault shares through
// preview_redeem at the base denom price, unlocking entries at their coin
// prices.
func (e *Engine) vaultPositionValue(vault string, position *VaultPosition, kind PriceKind) (VaultPositionValue, error) {
	out := VaultPositionValue{Vault: vault}
	adapter, info, err := e.vaultAdapter(vault)
	if err != nil {
		return out, err
	}
	shares := position.TotalShares()
	if shares.Sign() > 0 {
		underlying, err := adapter.PreviewRedeem(shares)
		if err != nil {
			return out, err
		}
		price, err := e.price(info.BaseDenom, kind)
		if err != nil {
			return out, err
		}
		out.VaultCoinValue = decimal.NewFromBigInt(underlying, 0).Mul(price)
	}
	for _, u := range position.Unlocking {
		price, err := e.price(u.Coin.Denom, kind)
		if err != nil {
			return out, err
		}
		out.UnlockingValue = out.UnlockingValue.Add(decimal.NewFromBigInt(u.Coin.Amount, 0).Mul(price))
	}
	out.TotalValue = out.VaultCoinValue.Add(out.UnlockingValue)
	return out, nil
}
