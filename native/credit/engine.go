package credit

import (
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"creditmanager/native/common"
)

const moduleName = "credit"

// Engine is the credit manager core. It owns no coins itself; every balance is
// held under the manager's bank address and attributed to accounts through
// session state. All entry points are driven by an external caller identity
// resolved by the transport layer.
type Engine struct {
	state EngineState

	bank       Bank
	nft        AccountNFT
	redBank    RedBank
	oracle     Oracle
	swapper    Swapper
	zapper     Zapper
	vaults     VaultRegistry
	incentives Incentives
	params     ParamsRegistry

	address          string
	owner            string
	pendingOwner     string
	rewardsCollector string
	blockTime        uint64

	pauses common.PauseView
	logger *slog.Logger

	reentrancy atomic.Bool
}

// EngineConfig wires the engine's adapters and addresses.
type EngineConfig struct {
	Bank       Bank
	AccountNFT AccountNFT
	RedBank    RedBank
	Oracle     Oracle
	Swapper    Swapper
	Zapper     Zapper
	Vaults     VaultRegistry
	Incentives Incentives
	Params     ParamsRegistry

	// Address is the manager's own bank address holding all custodied coins.
	Address          string
	Owner            string
	RewardsCollector string
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		bank:             cfg.Bank,
		nft:              cfg.AccountNFT,
		redBank:          cfg.RedBank,
		oracle:           cfg.Oracle,
		swapper:          cfg.Swapper,
		zapper:           cfg.Zapper,
		vaults:           cfg.Vaults,
		incentives:       cfg.Incentives,
		params:           cfg.Params,
		address:          cfg.Address,
		owner:            cfg.Owner,
		rewardsCollector: cfg.RewardsCollector,
		logger:           slog.Default(),
	}
}

func (e *Engine) SetState(state EngineState) { e.state = state }

func (e *Engine) SetBlockTime(unix uint64) { e.blockTime = unix }

func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// price wraps the oracle and treats a missing or zero price as an error so a
// stale feed can never value collateral at zero silently.
func (e *Engine) price(denom string, kind PriceKind) (decimal.Decimal, error) {
	price, err := e.oracle.Price(denom, kind)
	if err != nil {
		return decimal.Zero, err
	}
	if price.Sign() <= 0 {
		return decimal.Zero, MissingPriceError{Denom: denom}
	}
	return price, nil
}

// execContext carries the per-sequence mutable state: the open session, the
// resolved identities, the remaining callback queue and the attached funds not
// yet consumed by Deposit actions.
type execContext struct {
	session   StateSession
	caller    string
	accountID string
	queue     []callback
	funds     map[string]*big.Int
	capDenoms map[string]struct{}
}

// noteCapDenom records a denom whose custodied balance grew during the
// sequence so the terminal deposit cap assertion covers it.
func (c *execContext) noteCapDenom(denom string) {
	c.capDenoms[denom] = struct{}{}
}

// pushFront schedules follow-up callbacks before the remaining queue,
// preserving the order they are given in.
func (c *execContext) pushFront(cbs ...callback) {
	c.queue = append(cbs, c.queue...)
}

func (c *execContext) popFront() (callback, bool) {
	if len(c.queue) == 0 {
		return nil, false
	}
	cb := c.queue[0]
	c.queue = c.queue[1:]
	return cb, true
}

// CreateCreditAccount mints a fresh account token to the caller and records
// its kind. The returned account ID is the NFT token ID.
func (e *Engine) CreateCreditAccount(caller string, kind AccountKind) (string, error) {
	if e.state == nil {
		return "", ErrNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return "", err
	}
	switch kind {
	case AccountKindDefault, AccountKindHighLevered, AccountKindFundManager:
	default:
		return "", RequirementsNotMetError{Reason: fmt.Sprintf("unknown account kind %q", kind)}
	}
	accountID, err := e.nft.Mint(caller)
	if err != nil {
		return "", err
	}
	session := e.state.Begin()
	if err := session.PutAccountKind(accountID, kind); err != nil {
		return "", err
	}
	if err := session.Commit(); err != nil {
		return "", err
	}
	e.logger.Info("credit: account created", "account", accountID, "owner", caller, "kind", string(kind))
	return accountID, nil
}

// UpdateCreditAccount runs an action sequence atomically against one account.
// Attached funds must be consumed exactly by the sequence's Deposit actions.
// Nothing persists unless every action and every terminal assertion passes.
func (e *Engine) UpdateCreditAccount(caller, accountID string, actions []Action, funds []Coin) error {
	if e.state == nil {
		return ErrNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if len(actions) == 0 {
		return RequirementsNotMetError{Reason: "no actions"}
	}
	if !e.reentrancy.CompareAndSwap(false, true) {
		return ErrReentrancyGuard
	}
	guardArmed := true
	defer func() {
		if guardArmed {
			e.reentrancy.Store(false)
		}
	}()

	owner, err := e.nft.OwnerOf(accountID)
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotTokenOwner
	}

	fundsLeft := make(map[string]*big.Int, len(funds))
	for _, coin := range funds {
		if !coin.IsPositive() {
			return ErrNoAmount
		}
		remaining, ok := fundsLeft[coin.Denom]
		if !ok {
			remaining = big.NewInt(0)
			fundsLeft[coin.Denom] = remaining
		}
		remaining.Add(remaining, coin.Amount)
	}
	if len(funds) > 0 {
		if err := e.bank.Send(caller, e.address, funds); err != nil {
			return err
		}
	}

	session := e.state.Begin()
	ctx := &execContext{
		session:   session,
		caller:    caller,
		accountID: accountID,
		funds:     fundsLeft,
		capDenoms: make(map[string]struct{}),
	}

	previous, err := e.healthState(session, accountID)
	if err != nil {
		return err
	}

	for _, action := range actions {
		ctx.queue = append(ctx.queue, actionCallback{action: action})
		switch a := action.(type) {
		case Deposit:
			ctx.noteCapDenom(a.Coin.Denom)
		case Borrow:
			ctx.noteCapDenom(a.Coin.Denom)
		case SwapExactIn:
			ctx.noteCapDenom(a.DenomOut)
		case ProvideLiquidity:
			ctx.noteCapDenom(a.DenomOut)
		}
	}
	ctx.queue = append(ctx.queue,
		assertDepositCaps{},
		assertAccountReqs{accountID: accountID},
		assertMaxLTV{accountID: accountID, previous: previous},
		removeReentrancyGuard{},
	)

	for {
		cb, ok := ctx.popFront()
		if !ok {
			break
		}
		if err := e.runCallback(ctx, cb); err != nil {
			return err
		}
		if _, cleared := cb.(removeReentrancyGuard); cleared {
			guardArmed = false
		}
	}

	for denom, remaining := range fundsLeft {
		if remaining.Sign() != 0 {
			e.logger.Warn("credit: unconsumed funds", "denom", denom, "amount", remaining.String())
			return ErrFundsMismatch
		}
	}
	if err := session.Commit(); err != nil {
		return err
	}
	e.logger.Info("credit: account updated", "account", accountID, "actions", len(actions))
	return nil
}

func (e *Engine) runCallback(ctx *execContext, cb callback) error {
	switch c := cb.(type) {
	case actionCallback:
		return e.runAction(ctx, c.action)
	case updateCoinBalance:
		return e.runUpdateCoinBalance(ctx, c)
	case updateVaultCoinBalance:
		return e.runUpdateVaultCoinBalance(ctx, c)
	case assertDepositCaps:
		return e.runAssertDepositCaps(ctx, c)
	case assertAccountReqs:
		return e.runAssertAccountReqs(ctx, c)
	case assertMaxLTV:
		return e.runAssertMaxLTV(ctx, c)
	case removeReentrancyGuard:
		e.reentrancy.Store(false)
		return nil
	default:
		return fmt.Errorf("credit engine: unknown callback %T", cb)
	}
}

func (e *Engine) runAction(ctx *execContext, action Action) error {
	switch a := action.(type) {
	case Deposit:
		return e.deposit(ctx, a)
	case Withdraw:
		return e.withdraw(ctx, a)
	case Borrow:
		return e.borrow(ctx, a)
	case Lend:
		return e.lend(ctx, a)
	case Reclaim:
		return e.reclaim(ctx, a)
	case Repay:
		return e.repay(ctx, a)
	case EnterVault:
		return e.enterVault(ctx, a)
	case ExitVault:
		return e.exitVault(ctx, a)
	case RequestVaultUnlock:
		return e.requestVaultUnlock(ctx, a)
	case ExitVaultUnlocked:
		return e.exitVaultUnlocked(ctx, a)
	case SwapExactIn:
		return e.swapExactIn(ctx, a)
	case ProvideLiquidity:
		return e.provideLiquidity(ctx, a)
	case WithdrawLiquidity:
		return e.withdrawLiquidity(ctx, a)
	case StakeLP:
		return e.stakeLP(ctx, a)
	case UnstakeLP:
		return e.unstakeLP(ctx, a)
	case ClaimRewards:
		return e.claimRewards(ctx)
	case Liquidate:
		return e.liquidate(ctx, a)
	default:
		return fmt.Errorf("credit engine: unknown action %T", action)
	}
}

// runAssertDepositCaps checks the protocol-wide deposit cap of every denom
// whose custodied balance grew during the sequence, whether through a Deposit,
// a borrow, swap or zap output, vault proceeds or claimed rewards. The
// observed total is the manager's custodied balance plus the Red Bank market
// principal.
func (e *Engine) runAssertDepositCaps(ctx *execContext, _ assertDepositCaps) error {
	denoms := make([]string, 0, len(ctx.capDenoms))
	for denom := range ctx.capDenoms {
		denoms = append(denoms, denom)
	}
	sort.Strings(denoms)
	for _, denom := range denoms {
		params, err := e.params.AssetParams(denom)
		if err != nil {
			return err
		}
		if params == nil || params.DepositCap == nil {
			continue
		}
		held, err := e.bank.Balance(e.address, denom)
		if err != nil {
			return err
		}
		market, err := e.redBank.MarketDeposits(denom)
		if err != nil {
			return err
		}
		total := new(big.Int).Add(held, market)
		if total.Cmp(params.DepositCap) > 0 {
			return AboveDepositCapError{Denom: denom, NewValue: total, Maximum: params.DepositCap}
		}
	}
	return nil
}

// runAssertAccountReqs enforces the structural rules of the account kind.
// High-levered accounts may owe at most one denom and that denom must carry
// HLS parameters.
func (e *Engine) runAssertAccountReqs(ctx *execContext, cb assertAccountReqs) error {
	kind, ok, err := ctx.session.AccountKind(cb.accountID)
	if err != nil {
		return err
	}
	if !ok || kind != AccountKindHighLevered {
		return nil
	}
	debts, err := ctx.session.AccountDebtShares(cb.accountID)
	if err != nil {
		return err
	}
	if len(debts) > 1 {
		return HLSError{Reason: "high-levered accounts may borrow a single denom"}
	}
	if len(debts) == 1 {
		params, err := e.params.AssetParams(debts[0].Denom)
		if err != nil {
			return err
		}
		if params == nil || params.HLS == nil {
			return HLSError{Reason: "denom " + debts[0].Denom + " has no hls parameters"}
		}
	}
	return nil
}

// runAssertMaxLTV is the terminal health gate. Healthy outcomes always pass.
// An account that entered the sequence unhealthy may stay unhealthy only if
// the sequence left its max-LTV health factor no worse than before.
func (e *Engine) runAssertMaxLTV(ctx *execContext, cb assertMaxLTV) error {
	values, err := e.healthValues(ctx.session, cb.accountID, PriceKindDefault)
	if err != nil {
		return err
	}
	if !values.AboveMaxLTV {
		return nil
	}
	if cb.previous.Healthy() {
		return ErrAboveMaxLTV
	}
	if values.MaxLTVHealthFactor != nil && cb.previous.MaxLTVHealthFactor != nil &&
		values.MaxLTVHealthFactor.GreaterThanOrEqual(*cb.previous.MaxLTVHealthFactor) {
		return nil
	}
	return ErrAboveMaxLTV
}

// RepayFromWallet lets any wallet pay down an account's debt directly, without
// owning the account and without a full action sequence.
func (e *Engine) RepayFromWallet(caller, accountID string, coin Coin) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !coin.IsPositive() {
		return nil, ErrNoAmount
	}
	session := e.state.Begin()
	owed, err := e.debtAmount(session, accountID, coin.Denom)
	if err != nil {
		return nil, err
	}
	if owed.Sign() == 0 {
		return nil, ErrNoDebt
	}
	amount := new(big.Int).Set(coin.Amount)
	if amount.Cmp(owed) > 0 {
		amount = owed
	}
	if err := e.bank.Send(caller, e.address, []Coin{{Denom: coin.Denom, Amount: amount}}); err != nil {
		return nil, err
	}
	if _, err := e.burnDebtShares(session, accountID, coin.Denom, amount); err != nil {
		return nil, err
	}
	if err := e.redBank.Repay(coin.Denom, amount); err != nil {
		return nil, err
	}
	if err := session.Commit(); err != nil {
		return nil, err
	}
	e.logger.Info("credit: wallet repay", "account", accountID, "denom", coin.Denom, "amount", amount.String())
	return amount, nil
}

// UpdateOwner starts the two-step ownership transfer.
func (e *Engine) UpdateOwner(caller, newOwner string) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if newOwner == "" {
		return InvalidConfigError{Reason: "empty owner"}
	}
	e.pendingOwner = newOwner
	return nil
}

// AcceptOwnership completes the transfer; only the proposed owner may call it.
func (e *Engine) AcceptOwnership(caller string) error {
	if e.pendingOwner == "" || caller != e.pendingOwner {
		return ErrUnauthorized
	}
	e.owner = e.pendingOwner
	e.pendingOwner = ""
	e.logger.Info("credit: ownership transferred", "owner", e.owner)
	return nil
}

// UpdateConfig replaces the rewards collector address.
func (e *Engine) UpdateConfig(caller, rewardsCollector string) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	if rewardsCollector == "" {
		return InvalidConfigError{Reason: "empty rewards collector"}
	}
	e.rewardsCollector = rewardsCollector
	return nil
}

// UpdateNftConfig forwards a config update to the account NFT registry.
func (e *Engine) UpdateNftConfig(caller string, params map[string]string) error {
	if caller != e.owner {
		return ErrUnauthorized
	}
	return e.nft.UpdateConfig(params)
}

// Owner returns the current owner address.
func (e *Engine) Owner() string { return e.owner }

// RewardsCollector returns the configured protocol fee recipient.
func (e *Engine) RewardsCollector() string { return e.rewardsCollector }

// positions aggregates the account's full position set from session state.
func (e *Engine) positions(s StateSession, accountID string) (Positions, error) {
	kind, ok, err := s.AccountKind(accountID)
	if err != nil {
		return Positions{}, err
	}
	if !ok {
		kind = AccountKindDefault
	}
	deposits, err := s.Deposits(accountID)
	if err != nil {
		return Positions{}, err
	}
	debts, err := e.debtAmounts(s, accountID)
	if err != nil {
		return Positions{}, err
	}
	lends, err := e.lendAmounts(s, accountID)
	if err != nil {
		return Positions{}, err
	}
	vaults, err := s.VaultPositions(accountID)
	if err != nil {
		return Positions{}, err
	}
	staked, err := s.StakedLPs(accountID)
	if err != nil {
		return Positions{}, err
	}
	return Positions{
		AccountID: accountID,
		Kind:      kind,
		Deposits:  deposits,
		Debts:     debts,
		Lends:     lends,
		Vaults:    vaults,
		StakedLPs: staked,
	}, nil
}

// Positions is the public positions query.
func (e *Engine) Positions(accountID string) (Positions, error) {
	if e.state == nil {
		return Positions{}, ErrNilState
	}
	return e.positions(e.state.Begin(), accountID)
}

// Health is the public health query.
func (e *Engine) Health(accountID string) (HealthValues, error) {
	if e.state == nil {
		return HealthValues{}, ErrNilState
	}
	return e.healthValues(e.state.Begin(), accountID, PriceKindDefault)
}

// VaultPositionValue prices one account's position in a single vault.
func (e *Engine) VaultPositionValue(accountID, vault string) (VaultPositionValue, error) {
	if e.state == nil {
		return VaultPositionValue{}, ErrNilState
	}
	session := e.state.Begin()
	position, err := session.VaultPosition(accountID, vault)
	if err != nil {
		return VaultPositionValue{}, err
	}
	if position == nil {
		return VaultPositionValue{}, ErrNoPositionMatch
	}
	return e.vaultPositionValue(vault, position, PriceKindDefault)
}

// AllCoinBalances pages the global deposit index ordered by account then
// denom, exclusive of the cursor.
func (e *Engine) AllCoinBalances(startAfterAccount, startAfterDenom string, limit uint32) ([]CoinBalance, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Begin().AllCoinBalances(startAfterAccount, startAfterDenom, limit)
}

// TotalDebtShares returns the share total of one debt denom.
func (e *Engine) TotalDebtShares(denom string) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Begin().TotalDebtShares(denom)
}

// AllTotalDebtShares pages every denom's debt share total, exclusive of the
// cursor.
func (e *Engine) AllTotalDebtShares(startAfter string, limit uint32) ([]SharesBalance, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	return e.state.Begin().AllTotalDebtShares(startAfter, limit)
}

// EstimateMaxWithdraw estimates the largest health-preserving withdrawal of a
// denom from the account.
func (e *Engine) EstimateMaxWithdraw(accountID, denom string) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	in, err := e.healthInput(e.state.Begin(), accountID, PriceKindDefault)
	if err != nil {
		return nil, err
	}
	if _, ok := in.AssetParams[denom]; !ok {
		params, err := e.params.AssetParams(denom)
		if err != nil {
			return nil, err
		}
		in.AssetParams[denom] = params
		if params != nil {
			price, err := e.price(denom, PriceKindDefault)
			if err != nil {
				return nil, err
			}
			in.Prices[denom] = price
		}
	}
	return in.MaxWithdrawAmount(denom)
}

// EstimateMaxSwap estimates the largest health-preserving exact-in swap
// between two denoms at the given slippage.
func (e *Engine) EstimateMaxSwap(accountID, denomIn, denomOut string, slippage decimal.Decimal) (*big.Int, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	in, err := e.healthInput(e.state.Begin(), accountID, PriceKindDefault)
	if err != nil {
		return nil, err
	}
	for _, denom := range []string{denomIn, denomOut} {
		if _, ok := in.AssetParams[denom]; ok {
			continue
		}
		params, err := e.params.AssetParams(denom)
		if err != nil {
			return nil, err
		}
		in.AssetParams[denom] = params
		if params != nil {
			price, err := e.price(denom, PriceKindDefault)
			if err != nil {
				return nil, err
			}
			in.Prices[denom] = price
		}
	}
	return in.MaxSwapAmount(denomIn, denomOut, slippage)
}
