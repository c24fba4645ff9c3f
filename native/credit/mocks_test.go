package credit_test

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"creditmanager/core/state"
	"creditmanager/native/credit"
	"creditmanager/storage"
)

const (
	managerAddr   = "manager"
	collectorAddr = "collector"
	userAddr      = "user1"
	otherAddr     = "user2"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type mockBank struct {
	balances map[string]map[string]*big.Int
}

func newMockBank() *mockBank {
	return &mockBank{balances: make(map[string]map[string]*big.Int)}
}

func (b *mockBank) set(addr, denom string, amount int64) {
	if b.balances[addr] == nil {
		b.balances[addr] = make(map[string]*big.Int)
	}
	b.balances[addr][denom] = big.NewInt(amount)
}

func (b *mockBank) add(addr, denom string, amount *big.Int) {
	if b.balances[addr] == nil {
		b.balances[addr] = make(map[string]*big.Int)
	}
	current, _ := b.Balance(addr, denom)
	b.balances[addr][denom] = new(big.Int).Add(current, amount)
}

func (b *mockBank) sub(addr, denom string, amount *big.Int) error {
	current, _ := b.Balance(addr, denom)
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("mock bank: %s lacks %s %s", addr, amount, denom)
	}
	b.balances[addr][denom] = new(big.Int).Sub(current, amount)
	return nil
}

func (b *mockBank) Balance(addr, denom string) (*big.Int, error) {
	if b.balances[addr] == nil || b.balances[addr][denom] == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(b.balances[addr][denom]), nil
}

func (b *mockBank) Send(from, to string, coins []credit.Coin) error {
	for _, coin := range coins {
		if err := b.sub(from, coin.Denom, coin.Amount); err != nil {
			return err
		}
		b.add(to, coin.Denom, coin.Amount)
	}
	return nil
}

type mockNFT struct {
	next   int
	owners map[string]string
}

func newMockNFT() *mockNFT {
	return &mockNFT{owners: make(map[string]string)}
}

func (n *mockNFT) Mint(owner string) (string, error) {
	n.next++
	id := fmt.Sprintf("%d", n.next)
	n.owners[id] = owner
	return id, nil
}

func (n *mockNFT) OwnerOf(tokenID string) (string, error) {
	owner, ok := n.owners[tokenID]
	if !ok {
		return "", fmt.Errorf("mock nft: unknown token %s", tokenID)
	}
	return owner, nil
}

func (n *mockNFT) UpdateConfig(map[string]string) error { return nil }

// mockRedBank tracks the manager's aggregate borrow and lend principal per
// denom. Tests simulate interest accrual by bumping debt directly.
type mockRedBank struct {
	bank     *mockBank
	debt     map[string]*big.Int
	lent     map[string]*big.Int
	deposits map[string]*big.Int
}

func newMockRedBank(bank *mockBank) *mockRedBank {
	return &mockRedBank{
		bank:     bank,
		debt:     make(map[string]*big.Int),
		lent:     make(map[string]*big.Int),
		deposits: make(map[string]*big.Int),
	}
}

func (r *mockRedBank) get(m map[string]*big.Int, denom string) *big.Int {
	if m[denom] == nil {
		m[denom] = big.NewInt(0)
	}
	return m[denom]
}

func (r *mockRedBank) accrue(denom string, interest int64) {
	r.get(r.debt, denom).Add(r.get(r.debt, denom), big.NewInt(interest))
}

func (r *mockRedBank) Borrow(denom string, amount *big.Int) error {
	r.get(r.debt, denom).Add(r.get(r.debt, denom), amount)
	r.bank.add(managerAddr, denom, amount)
	return nil
}

func (r *mockRedBank) Repay(denom string, amount *big.Int) error {
	debt := r.get(r.debt, denom)
	if debt.Cmp(amount) < 0 {
		debt.SetInt64(0)
	} else {
		debt.Sub(debt, amount)
	}
	return r.bank.sub(managerAddr, denom, amount)
}

func (r *mockRedBank) Lend(denom string, amount *big.Int) error {
	r.get(r.lent, denom).Add(r.get(r.lent, denom), amount)
	return r.bank.sub(managerAddr, denom, amount)
}

func (r *mockRedBank) Reclaim(denom string, amount *big.Int) error {
	lent := r.get(r.lent, denom)
	if lent.Cmp(amount) < 0 {
		return fmt.Errorf("mock redbank: nothing to reclaim")
	}
	lent.Sub(lent, amount)
	r.bank.add(managerAddr, denom, amount)
	return nil
}

func (r *mockRedBank) UnderlyingDebt(denom string) (*big.Int, error) {
	return new(big.Int).Set(r.get(r.debt, denom)), nil
}

func (r *mockRedBank) UnderlyingLent(denom string) (*big.Int, error) {
	return new(big.Int).Set(r.get(r.lent, denom)), nil
}

func (r *mockRedBank) MarketDeposits(denom string) (*big.Int, error) {
	return new(big.Int).Set(r.get(r.deposits, denom)), nil
}

type mockOracle struct {
	prices map[string]decimal.Decimal
}

func newMockOracle() *mockOracle {
	return &mockOracle{prices: make(map[string]decimal.Decimal)}
}

func (o *mockOracle) setPrice(denom, price string) {
	o.prices[denom] = decimal.RequireFromString(price)
}

func (o *mockOracle) Price(denom string, _ credit.PriceKind) (decimal.Decimal, error) {
	price, ok := o.prices[denom]
	if !ok {
		return decimal.Zero, credit.MissingPriceError{Denom: denom}
	}
	return price, nil
}

// mockSwapper credits the manager with the oracle-fair output amount.
type mockSwapper struct {
	bank   *mockBank
	oracle *mockOracle
}

func (s *mockSwapper) SwapExactIn(coinIn credit.Coin, denomOut string, minReceive *big.Int, _ string) error {
	priceIn := s.oracle.prices[coinIn.Denom]
	priceOut := s.oracle.prices[denomOut]
	out := decimal.NewFromBigInt(coinIn.Amount, 0).Mul(priceIn).Div(priceOut).Floor().BigInt()
	if out.Cmp(minReceive) < 0 {
		return credit.ErrMinReceiveNotMet
	}
	s.bank.add(managerAddr, denomOut, out)
	return s.bank.sub(managerAddr, coinIn.Denom, coinIn.Amount)
}

// mockVault issues shares against deposits at a configurable exchange rate,
// expressed as underlying per one million shares.
type mockVault struct {
	bank       *mockBank
	info       credit.VaultInfo
	rate       *big.Int
	nextID     uint64
	unlockings map[uint64]*big.Int
}

func newMockVault(bank *mockBank, baseDenom, vaultToken string, lockup uint64) *mockVault {
	return &mockVault{
		bank:       bank,
		info:       credit.VaultInfo{BaseDenom: baseDenom, VaultToken: vaultToken, Lockup: lockup},
		rate:       big.NewInt(1_000_000),
		unlockings: make(map[uint64]*big.Int),
	}
}

func (v *mockVault) Info() (credit.VaultInfo, error) { return v.info, nil }

func (v *mockVault) sharesFor(amount *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(1_000_000))
	return out.Quo(out, v.rate)
}

func (v *mockVault) underlyingFor(shares *big.Int) *big.Int {
	out := new(big.Int).Mul(shares, v.rate)
	return out.Quo(out, big.NewInt(1_000_000))
}

func (v *mockVault) Deposit(coin credit.Coin) error {
	minted := v.sharesFor(coin.Amount)
	v.bank.add(managerAddr, v.info.VaultToken, minted)
	return v.bank.sub(managerAddr, coin.Denom, coin.Amount)
}

func (v *mockVault) Redeem(shares *big.Int) error {
	underlying := v.underlyingFor(shares)
	if err := v.bank.sub(managerAddr, v.info.VaultToken, shares); err != nil {
		return err
	}
	v.bank.add(managerAddr, v.info.BaseDenom, underlying)
	return nil
}

func (v *mockVault) RequestUnlock(shares *big.Int) (uint64, error) {
	v.nextID++
	v.unlockings[v.nextID] = v.underlyingFor(shares)
	if err := v.bank.sub(managerAddr, v.info.VaultToken, shares); err != nil {
		return 0, err
	}
	return v.nextID, nil
}

func (v *mockVault) WithdrawUnlocked(id uint64) error {
	amount, ok := v.unlockings[id]
	if !ok {
		return fmt.Errorf("mock vault: unknown unlock %d", id)
	}
	delete(v.unlockings, id)
	v.bank.add(managerAddr, v.info.BaseDenom, amount)
	return nil
}

func (v *mockVault) PreviewRedeem(shares *big.Int) (*big.Int, error) {
	if shares == nil {
		return big.NewInt(0), nil
	}
	return v.underlyingFor(shares), nil
}

type mockVaultRegistry struct {
	vaults map[string]credit.Vault
}

func (r *mockVaultRegistry) Adapter(vault string) (credit.Vault, bool) {
	v, ok := r.vaults[vault]
	return v, ok
}

type mockZapper struct {
	bank       *mockBank
	provideOut *big.Int
	withdraws  []credit.Coin
}

func (z *mockZapper) EstimateProvideLiquidity([]credit.Coin, string) (*big.Int, error) {
	return new(big.Int).Set(z.provideOut), nil
}

func (z *mockZapper) ProvideLiquidity(coinsIn []credit.Coin, lpDenom string, _ *big.Int) error {
	for _, coin := range coinsIn {
		if err := z.bank.sub(managerAddr, coin.Denom, coin.Amount); err != nil {
			return err
		}
	}
	z.bank.add(managerAddr, lpDenom, z.provideOut)
	return nil
}

func (z *mockZapper) EstimateWithdrawLiquidity(credit.Coin) ([]credit.Coin, error) {
	out := make([]credit.Coin, len(z.withdraws))
	for i, coin := range z.withdraws {
		out[i] = coin.Clone()
	}
	return out, nil
}

func (z *mockZapper) WithdrawLiquidity(lpCoin credit.Coin, _ []credit.Coin) error {
	if err := z.bank.sub(managerAddr, lpCoin.Denom, lpCoin.Amount); err != nil {
		return err
	}
	for _, coin := range z.withdraws {
		z.bank.add(managerAddr, coin.Denom, coin.Amount)
	}
	return nil
}

type mockIncentives struct {
	rewards []credit.Coin
	changes int
}

func (i *mockIncentives) BalanceChange(string, string, *big.Int) error {
	i.changes++
	return nil
}

func (i *mockIncentives) ClaimRewards(string) ([]credit.Coin, error) {
	out := i.rewards
	i.rewards = nil
	return out, nil
}

type mockParams struct {
	assets       map[string]*credit.AssetParams
	vaultConfigs map[string]*credit.VaultConfig
	closeFactor  decimal.Decimal
	targetHF     decimal.Decimal
}

func newMockParams() *mockParams {
	return &mockParams{
		assets:       make(map[string]*credit.AssetParams),
		vaultConfigs: make(map[string]*credit.VaultConfig),
		closeFactor:  decimal.RequireFromString("0.5"),
		targetHF:     decimal.RequireFromString("1.2"),
	}
}

func (p *mockParams) asset(denom, maxLTV, liqThreshold string) *credit.AssetParams {
	params := &credit.AssetParams{
		Denom:                denom,
		MaxLTV:               decimal.RequireFromString(maxLTV),
		LiquidationThreshold: decimal.RequireFromString(liqThreshold),
		Whitelisted:          true,
	}
	p.assets[denom] = params
	return params
}

func (p *mockParams) vault(addr, maxLTV, liqThreshold string) *credit.VaultConfig {
	config := &credit.VaultConfig{
		Vault:                addr,
		MaxLTV:               decimal.RequireFromString(maxLTV),
		LiquidationThreshold: decimal.RequireFromString(liqThreshold),
		Whitelisted:          true,
	}
	p.vaultConfigs[addr] = config
	return config
}

func (p *mockParams) AssetParams(denom string) (*credit.AssetParams, error) {
	return p.assets[denom], nil
}

func (p *mockParams) VaultConfig(vault string) (*credit.VaultConfig, error) {
	return p.vaultConfigs[vault], nil
}

func (p *mockParams) TargetHealthFactor() (decimal.Decimal, error) {
	return p.targetHF, nil
}

func (p *mockParams) CloseFactor() (decimal.Decimal, error) {
	return p.closeFactor, nil
}

// testEnv bundles an engine wired to mocks and a real state manager over an
// in-memory database.
type testEnv struct {
	engine     *credit.Engine
	bank       *mockBank
	nft        *mockNFT
	redBank    *mockRedBank
	oracle     *mockOracle
	zapper     *mockZapper
	incentives *mockIncentives
	params     *mockParams
	vaults     *mockVaultRegistry
	manager    *state.Manager
}

func newTestEnv() *testEnv {
	bank := newMockBank()
	oracle := newMockOracle()
	env := &testEnv{
		bank:       bank,
		nft:        newMockNFT(),
		redBank:    newMockRedBank(bank),
		oracle:     oracle,
		zapper:     &mockZapper{bank: bank},
		incentives: &mockIncentives{},
		params:     newMockParams(),
		vaults:     &mockVaultRegistry{vaults: make(map[string]credit.Vault)},
	}
	env.manager = state.NewManager(storage.NewMemDB())
	env.engine = credit.NewEngine(credit.EngineConfig{
		Bank:             bank,
		AccountNFT:       env.nft,
		RedBank:          env.redBank,
		Oracle:           oracle,
		Swapper:          &mockSwapper{bank: bank, oracle: oracle},
		Zapper:           env.zapper,
		Vaults:           env.vaults,
		Incentives:       env.incentives,
		Params:           env.params,
		Address:          managerAddr,
		Owner:            "admin",
		RewardsCollector: collectorAddr,
	})
	env.engine.SetState(env.manager)
	return env
}

func (env *testEnv) createAccount(owner string, kind credit.AccountKind) string {
	id, err := env.engine.CreateCreditAccount(owner, kind)
	if err != nil {
		panic(err)
	}
	return id
}

// session opens a fresh read session on the underlying state.
func (env *testEnv) session() credit.StateSession {
	return env.manager.Begin()
}
