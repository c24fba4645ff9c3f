package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"creditmanager/native/credit"
	"creditmanager/observability/metrics"
)

type coinParam struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// actionCoinParam is a coin whose amount may be the literal string or the
// account-balance marker.
type actionCoinParam struct {
	Denom   string `json:"denom"`
	Amount  string `json:"amount,omitempty"`
	Balance bool   `json:"balance,omitempty"`
}

type actionAmountParam struct {
	Amount  string `json:"amount,omitempty"`
	Balance bool   `json:"balance,omitempty"`
}

type liquidationRequestParam struct {
	Kind   string `json:"kind"`
	Denom  string `json:"denom,omitempty"`
	Vault  string `json:"vault,omitempty"`
	Bucket string `json:"bucket,omitempty"`
}

type actionParam struct {
	Type string `json:"type"`

	Coin      *actionCoinParam   `json:"coin,omitempty"`
	CoinIn    *actionCoinParam   `json:"coinIn,omitempty"`
	CoinsIn   []actionCoinParam  `json:"coinsIn,omitempty"`
	LPToken   *actionCoinParam   `json:"lpToken,omitempty"`
	Amount    *actionAmountParam `json:"amount,omitempty"`
	Vault     string             `json:"vault,omitempty"`
	DenomOut  string             `json:"denomOut,omitempty"`
	Slippage  string             `json:"slippage,omitempty"`
	Route     string             `json:"route,omitempty"`
	Recipient string             `json:"recipient,omitempty"`
	ID        uint64             `json:"id,omitempty"`

	RecipientAccountID  string                   `json:"recipientAccountId,omitempty"`
	LiquidateeAccountID string                   `json:"liquidateeAccountId,omitempty"`
	DebtCoin            *coinParam               `json:"debtCoin,omitempty"`
	Request             *liquidationRequestParam `json:"request,omitempty"`
}

// parseAmount accepts a decimal string and rejects anything that does not fit
// an unsigned 256-bit integer.
func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, errors.New("amount required")
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, err
	}
	return amount.ToBig(), nil
}

func (p coinParam) toCoin() (credit.Coin, error) {
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return credit.Coin{}, err
	}
	return credit.Coin{Denom: p.Denom, Amount: amount}, nil
}

func (p actionCoinParam) toActionCoin() (credit.ActionCoin, error) {
	out := credit.ActionCoin{Denom: p.Denom}
	if p.Balance {
		out.Amount = credit.BalanceAmount()
		return out, nil
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return credit.ActionCoin{}, err
	}
	out.Amount = credit.ExactAmount(amount)
	return out, nil
}

func (p actionAmountParam) toActionAmount() (credit.ActionAmount, error) {
	if p.Balance {
		return credit.BalanceAmount(), nil
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return credit.ActionAmount{}, err
	}
	return credit.ExactAmount(amount), nil
}

func parseSlippage(value string) (decimal.Decimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

func (p actionParam) toAction() (credit.Action, error) {
	switch p.Type {
	case "deposit":
		if p.Coin == nil {
			return nil, errors.New("deposit requires coin")
		}
		coin, err := coinParam{Denom: p.Coin.Denom, Amount: p.Coin.Amount}.toCoin()
		if err != nil {
			return nil, err
		}
		return credit.Deposit{Coin: coin}, nil
	case "withdraw":
		if p.Coin == nil {
			return nil, errors.New("withdraw requires coin")
		}
		coin, err := p.Coin.toActionCoin()
		if err != nil {
			return nil, err
		}
		return credit.Withdraw{Coin: coin, Recipient: p.Recipient}, nil
	case "borrow":
		if p.Coin == nil {
			return nil, errors.New("borrow requires coin")
		}
		coin, err := coinParam{Denom: p.Coin.Denom, Amount: p.Coin.Amount}.toCoin()
		if err != nil {
			return nil, err
		}
		return credit.Borrow{Coin: coin}, nil
	case "lend":
		if p.Coin == nil {
			return nil, errors.New("lend requires coin")
		}
		coin, err := p.Coin.toActionCoin()
		if err != nil {
			return nil, err
		}
		return credit.Lend{Coin: coin}, nil
	case "reclaim":
		if p.Coin == nil {
			return nil, errors.New("reclaim requires coin")
		}
		coin, err := p.Coin.toActionCoin()
		if err != nil {
			return nil, err
		}
		return credit.Reclaim{Coin: coin}, nil
	case "repay":
		if p.Coin == nil {
			return nil, errors.New("repay requires coin")
		}
		coin, err := p.Coin.toActionCoin()
		if err != nil {
			return nil, err
		}
		return credit.Repay{RecipientAccountID: p.RecipientAccountID, Coin: coin}, nil
	case "enter_vault":
		if p.Coin == nil {
			return nil, errors.New("enter_vault requires coin")
		}
		coin, err := p.Coin.toActionCoin()
		if err != nil {
			return nil, err
		}
		return credit.EnterVault{Vault: p.Vault, Coin: coin}, nil
	case "exit_vault":
		if p.Amount == nil {
			return nil, errors.New("exit_vault requires amount")
		}
		amount, err := p.Amount.toActionAmount()
		if err != nil {
			return nil, err
		}
		return credit.ExitVault{Vault: p.Vault, Amount: amount}, nil
	case "request_vault_unlock":
		if p.Amount == nil {
			return nil, errors.New("request_vault_unlock requires amount")
		}
		amount, err := p.Amount.toActionAmount()
		if err != nil {
			return nil, err
		}
		return credit.RequestVaultUnlock{Vault: p.Vault, Amount: amount}, nil
	case "exit_vault_unlocked":
		return credit.ExitVaultUnlocked{Vault: p.Vault, ID: p.ID}, nil
	case "swap_exact_in":
		if p.CoinIn == nil {
			return nil, errors.New("swap_exact_in requires coinIn")
		}
		coinIn, err := p.CoinIn.toActionCoin()
		if err != nil {
			return nil, err
		}
		slippage, err := parseSlippage(p.Slippage)
		if err != nil {
			return nil, err
		}
		return credit.SwapExactIn{CoinIn: coinIn, DenomOut: p.DenomOut, Slippage: slippage, Route: p.Route}, nil
	case "provide_liquidity":
		if len(p.CoinsIn) == 0 {
			return nil, errors.New("provide_liquidity requires coinsIn")
		}
		coinsIn := make([]credit.ActionCoin, 0, len(p.CoinsIn))
		for _, c := range p.CoinsIn {
			coin, err := c.toActionCoin()
			if err != nil {
				return nil, err
			}
			coinsIn = append(coinsIn, coin)
		}
		slippage, err := parseSlippage(p.Slippage)
		if err != nil {
			return nil, err
		}
		return credit.ProvideLiquidity{CoinsIn: coinsIn, DenomOut: p.DenomOut, Slippage: slippage}, nil
	case "withdraw_liquidity":
		if p.LPToken == nil {
			return nil, errors.New("withdraw_liquidity requires lpToken")
		}
		lpToken, err := p.LPToken.toActionCoin()
		if err != nil {
			return nil, err
		}
		slippage, err := parseSlippage(p.Slippage)
		if err != nil {
			return nil, err
		}
		return credit.WithdrawLiquidity{LPToken: lpToken, Slippage: slippage}, nil
	case "stake_lp":
		if p.Coin == nil {
			return nil, errors.New("stake_lp requires coin")
		}
		coin, err := p.Coin.toActionCoin()
		if err != nil {
			return nil, err
		}
		return credit.StakeLP{Coin: coin}, nil
	case "unstake_lp":
		if p.Coin == nil {
			return nil, errors.New("unstake_lp requires coin")
		}
		coin, err := p.Coin.toActionCoin()
		if err != nil {
			return nil, err
		}
		return credit.UnstakeLP{Coin: coin}, nil
	case "claim_rewards":
		return credit.ClaimRewards{}, nil
	case "liquidate":
		if p.DebtCoin == nil || p.Request == nil {
			return nil, errors.New("liquidate requires debtCoin and request")
		}
		debtCoin, err := p.DebtCoin.toCoin()
		if err != nil {
			return nil, err
		}
		return credit.Liquidate{
			LiquidateeAccountID: p.LiquidateeAccountID,
			DebtCoin:            debtCoin,
			Request: credit.LiquidationRequest{
				Kind:   credit.LiquidationRequestKind(p.Request.Kind),
				Denom:  p.Request.Denom,
				Vault:  p.Request.Vault,
				Bucket: credit.VaultBucket(p.Request.Bucket),
			},
		}, nil
	default:
		return nil, errors.New("unknown action type " + p.Type)
	}
}

// engineError maps engine failures onto JSON-RPC error codes.
func engineError(err error) (int, int) {
	var (
		requirements credit.RequirementsNotMetError
		invalid      credit.InvalidConfigError
		hls          credit.HLSError
	)
	switch {
	case errors.Is(err, credit.ErrUnauthorized), errors.Is(err, credit.ErrNotTokenOwner):
		return http.StatusForbidden, codeUnauthorized
	case errors.As(err, &requirements), errors.As(err, &invalid), errors.As(err, &hls),
		errors.Is(err, credit.ErrNoAmount), errors.Is(err, credit.ErrFundsMismatch):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusUnprocessableEntity, codeServerError
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errors.New("expected a single parameter object")
	}
	return json.Unmarshal(req.Params[0], out)
}

// --- account lifecycle ---

type createAccountParams struct {
	Caller string `json:"caller"`
	Kind   string `json:"kind,omitempty"`
}

type createAccountResult struct {
	AccountID string `json:"accountId"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input createAccountParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	kind := credit.AccountKind(input.Kind)
	if kind == "" {
		kind = credit.AccountKindDefault
	}
	accountID, err := s.engine.CreateCreditAccount(input.Caller, kind)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	metrics.AccountsCreated.Inc()
	writeResult(w, req.ID, createAccountResult{AccountID: accountID})
}

type updateAccountParams struct {
	Caller    string        `json:"caller"`
	AccountID string        `json:"accountId"`
	Actions   []actionParam `json:"actions"`
	Funds     []coinParam   `json:"funds,omitempty"`
}

type updateAccountResult struct {
	AccountID string `json:"accountId"`
	Executed  int    `json:"executed"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input updateAccountParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	actions := make([]credit.Action, 0, len(input.Actions))
	for _, raw := range input.Actions {
		action, err := raw.toAction()
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid action", err.Error())
			return
		}
		actions = append(actions, action)
	}
	funds := make([]credit.Coin, 0, len(input.Funds))
	for _, raw := range input.Funds {
		coin, err := raw.toCoin()
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid funds coin", err.Error())
			return
		}
		funds = append(funds, coin)
	}
	if err := s.engine.UpdateCreditAccount(input.Caller, input.AccountID, actions, funds); err != nil {
		metrics.AccountUpdates.WithLabelValues("rejected").Inc()
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	metrics.AccountUpdates.WithLabelValues("committed").Inc()
	writeResult(w, req.ID, updateAccountResult{AccountID: input.AccountID, Executed: len(actions)})
}

type repayFromWalletParams struct {
	Caller    string `json:"caller"`
	AccountID string `json:"accountId"`
	Denom     string `json:"denom"`
	Amount    string `json:"amount"`
}

type repayFromWalletResult struct {
	Repaid *big.Int `json:"repaid"`
}

func (s *Server) handleRepayFromWallet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input repayFromWalletParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	amount, err := parseAmount(input.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	repaid, err := s.engine.RepayFromWallet(input.Caller, input.AccountID, credit.Coin{Denom: input.Denom, Amount: amount})
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, repayFromWalletResult{Repaid: repaid})
}

// --- queries ---

type accountParams struct {
	AccountID string `json:"accountId"`
}

type coinResult struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

type debtResult struct {
	Denom  string   `json:"denom"`
	Shares *big.Int `json:"shares"`
	Amount *big.Int `json:"amount"`
}

type unlockingResult struct {
	ID        uint64   `json:"id"`
	Denom     string   `json:"denom"`
	Amount    *big.Int `json:"amount"`
	ReleaseAt uint64   `json:"releaseAt"`
}

type vaultPositionResult struct {
	Vault     string            `json:"vault"`
	Unlocked  *big.Int          `json:"unlocked"`
	Locked    *big.Int          `json:"locked"`
	Unlocking []unlockingResult `json:"unlocking,omitempty"`
}

type positionsResult struct {
	AccountID string                `json:"accountId"`
	Kind      string                `json:"kind"`
	Deposits  []coinResult          `json:"deposits"`
	Debts     []debtResult          `json:"debts"`
	Lends     []coinResult          `json:"lends"`
	Vaults    []vaultPositionResult `json:"vaults"`
	StakedLPs []coinResult          `json:"stakedLps"`
}

func coinResults(coins []credit.Coin) []coinResult {
	out := make([]coinResult, 0, len(coins))
	for _, c := range coins {
		out = append(out, coinResult{Denom: c.Denom, Amount: c.Amount})
	}
	return out
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input accountParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	positions, err := s.engine.Positions(input.AccountID)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	result := positionsResult{
		AccountID: positions.AccountID,
		Kind:      string(positions.Kind),
		Deposits:  coinResults(positions.Deposits),
		Lends:     coinResults(positions.Lends),
		StakedLPs: coinResults(positions.StakedLPs),
		Debts:     make([]debtResult, 0, len(positions.Debts)),
		Vaults:    make([]vaultPositionResult, 0, len(positions.Vaults)),
	}
	for _, d := range positions.Debts {
		result.Debts = append(result.Debts, debtResult{Denom: d.Denom, Shares: d.Shares, Amount: d.Amount})
	}
	for _, v := range positions.Vaults {
		item := vaultPositionResult{Vault: v.Vault, Unlocked: v.Position.Unlocked, Locked: v.Position.Locked}
		for _, u := range v.Position.Unlocking {
			item.Unlocking = append(item.Unlocking, unlockingResult{
				ID:        u.ID,
				Denom:     u.Coin.Denom,
				Amount:    u.Coin.Amount,
				ReleaseAt: u.ReleaseAt,
			})
		}
		result.Vaults = append(result.Vaults, item)
	}
	writeResult(w, req.ID, result)
}

type healthResult struct {
	TotalDebtValue                 decimal.Decimal  `json:"totalDebtValue"`
	TotalCollateralValue           decimal.Decimal  `json:"totalCollateralValue"`
	MaxLTVAdjustedCollateral       decimal.Decimal  `json:"maxLtvAdjustedCollateral"`
	LiqThresholdAdjustedCollateral decimal.Decimal  `json:"liquidationThresholdAdjustedCollateral"`
	MaxLTVHealthFactor             *decimal.Decimal `json:"maxLtvHealthFactor"`
	LiquidationHealthFactor        *decimal.Decimal `json:"liquidationHealthFactor"`
	AboveMaxLTV                    bool             `json:"aboveMaxLtv"`
	Liquidatable                   bool             `json:"liquidatable"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input accountParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	health, err := s.engine.Health(input.AccountID)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, healthResult{
		TotalDebtValue:                 health.TotalDebtValue,
		TotalCollateralValue:           health.TotalCollateralValue,
		MaxLTVAdjustedCollateral:       health.MaxLTVAdjustedCollateral,
		LiqThresholdAdjustedCollateral: health.LiqThresholdAdjustedCollateral,
		MaxLTVHealthFactor:             health.MaxLTVHealthFactor,
		LiquidationHealthFactor:        health.LiquidationHealthFactor,
		AboveMaxLTV:                    health.AboveMaxLTV,
		Liquidatable:                   health.Liquidatable,
	})
}

type vaultPositionValueParams struct {
	AccountID string `json:"accountId"`
	Vault     string `json:"vault"`
}

type vaultPositionValueResult struct {
	Vault          string          `json:"vault"`
	VaultCoinValue decimal.Decimal `json:"vaultCoinValue"`
	UnlockingValue decimal.Decimal `json:"unlockingValue"`
	TotalValue     decimal.Decimal `json:"totalValue"`
}

func (s *Server) handleVaultPositionValue(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input vaultPositionValueParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	value, err := s.engine.VaultPositionValue(input.AccountID, input.Vault)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, vaultPositionValueResult{
		Vault:          value.Vault,
		VaultCoinValue: value.VaultCoinValue,
		UnlockingValue: value.UnlockingValue,
		TotalValue:     value.TotalValue,
	})
}

type allCoinBalancesParams struct {
	StartAfterAccount string `json:"startAfterAccount,omitempty"`
	StartAfterDenom   string `json:"startAfterDenom,omitempty"`
	Limit             uint32 `json:"limit,omitempty"`
}

type coinBalanceResult struct {
	AccountID string   `json:"accountId"`
	Denom     string   `json:"denom"`
	Amount    *big.Int `json:"amount"`
}

func (s *Server) handleAllCoinBalances(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	input := allCoinBalancesParams{}
	if len(req.Params) > 0 {
		if err := decodeParams(req, &input); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
			return
		}
	}
	balances, err := s.engine.AllCoinBalances(input.StartAfterAccount, input.StartAfterDenom, input.Limit)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	result := make([]coinBalanceResult, 0, len(balances))
	for _, b := range balances {
		result = append(result, coinBalanceResult{AccountID: b.AccountID, Denom: b.Denom, Amount: b.Amount})
	}
	writeResult(w, req.ID, result)
}

type denomParams struct {
	Denom string `json:"denom"`
}

type sharesResult struct {
	Denom  string   `json:"denom"`
	Shares *big.Int `json:"shares"`
}

func (s *Server) handleTotalDebtShares(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input denomParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	shares, err := s.engine.TotalDebtShares(input.Denom)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, sharesResult{Denom: input.Denom, Shares: shares})
}

type allTotalDebtSharesParams struct {
	StartAfter string `json:"startAfter,omitempty"`
	Limit      uint32 `json:"limit,omitempty"`
}

func (s *Server) handleAllTotalDebtShares(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	input := allTotalDebtSharesParams{}
	if len(req.Params) > 0 {
		if err := decodeParams(req, &input); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
			return
		}
	}
	ledger, err := s.engine.AllTotalDebtShares(input.StartAfter, input.Limit)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	result := make([]sharesResult, 0, len(ledger))
	for _, row := range ledger {
		result = append(result, sharesResult{Denom: row.Denom, Shares: row.Shares})
	}
	writeResult(w, req.ID, result)
}

type estimateWithdrawParams struct {
	AccountID string `json:"accountId"`
	Denom     string `json:"denom"`
}

type amountResult struct {
	Amount *big.Int `json:"amount"`
}

func (s *Server) handleEstimateMaxWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input estimateWithdrawParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	amount, err := s.engine.EstimateMaxWithdraw(input.AccountID, input.Denom)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount})
}

type estimateSwapParams struct {
	AccountID string `json:"accountId"`
	DenomIn   string `json:"denomIn"`
	DenomOut  string `json:"denomOut"`
	Slippage  string `json:"slippage,omitempty"`
}

func (s *Server) handleEstimateMaxSwap(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input estimateSwapParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	slippage, err := parseSlippage(input.Slippage)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid slippage", err.Error())
		return
	}
	amount, err := s.engine.EstimateMaxSwap(input.AccountID, input.DenomIn, input.DenomOut, slippage)
	if err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount})
}

type configResult struct {
	Owner            string `json:"owner"`
	RewardsCollector string `json:"rewardsCollector"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) != 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "no parameters expected", nil)
		return
	}
	writeResult(w, req.ID, configResult{
		Owner:            s.engine.Owner(),
		RewardsCollector: s.engine.RewardsCollector(),
	})
}

// --- privileged methods ---

type updateOwnerParams struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

func (s *Server) handleUpdateOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input updateOwnerParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	if err := s.engine.UpdateOwner(input.Caller, input.NewOwner); err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

type callerParams struct {
	Caller string `json:"caller"`
}

func (s *Server) handleAcceptOwnership(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input callerParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	if err := s.engine.AcceptOwnership(input.Caller); err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

type updateConfigParams struct {
	Caller           string `json:"caller"`
	RewardsCollector string `json:"rewardsCollector"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input updateConfigParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	if err := s.engine.UpdateConfig(input.Caller, input.RewardsCollector); err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

type updateNftConfigParams struct {
	Caller string            `json:"caller"`
	Params map[string]string `json:"params"`
}

func (s *Server) handleUpdateNftConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input updateNftConfigParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	if err := s.engine.UpdateNftConfig(input.Caller, input.Params); err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

type setAssetParams struct {
	Denom                string                `json:"denom"`
	MaxLTV               string                `json:"maxLtv"`
	LiquidationThreshold string                `json:"liquidationThreshold"`
	Whitelisted          bool                  `json:"whitelisted"`
	DepositCap           string                `json:"depositCap,omitempty"`
	ProtocolFee          string                `json:"protocolFee,omitempty"`
	LiquidationBonus     *liquidationBonusBody `json:"liquidationBonus,omitempty"`
	HLS                  *hlsBody              `json:"hls,omitempty"`
}

type liquidationBonusBody struct {
	StartingLB string `json:"startingLb"`
	Slope      string `json:"slope"`
	MinLB      string `json:"minLb"`
	MaxLB      string `json:"maxLb"`
}

type hlsBody struct {
	MaxLTV               string            `json:"maxLtv"`
	LiquidationThreshold string            `json:"liquidationThreshold"`
	Correlations         []correlationBody `json:"correlations,omitempty"`
}

type correlationBody struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func parseDecimalField(field, value string) (decimal.Decimal, error) {
	out, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, errors.New("invalid " + field)
	}
	return out, nil
}

func (b *hlsBody) toHLS() (*credit.HLSParams, error) {
	maxLTV, err := parseDecimalField("hls.maxLtv", b.MaxLTV)
	if err != nil {
		return nil, err
	}
	liqThreshold, err := parseDecimalField("hls.liquidationThreshold", b.LiquidationThreshold)
	if err != nil {
		return nil, err
	}
	hls := &credit.HLSParams{MaxLTV: maxLTV, LiquidationThreshold: liqThreshold}
	for _, c := range b.Correlations {
		hls.Correlations = append(hls.Correlations, credit.Correlation{
			Type:  credit.CorrelationType(c.Type),
			Value: c.Value,
		})
	}
	return hls, nil
}

func (s *Server) handleSetAssetParams(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input setAssetParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	maxLTV, err := parseDecimalField("maxLtv", input.MaxLTV)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	liqThreshold, err := parseDecimalField("liquidationThreshold", input.LiquidationThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	asset := &credit.AssetParams{
		Denom:                input.Denom,
		MaxLTV:               maxLTV,
		LiquidationThreshold: liqThreshold,
		Whitelisted:          input.Whitelisted,
	}
	if input.DepositCap != "" {
		capAmount, err := parseAmount(input.DepositCap)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid depositCap", err.Error())
			return
		}
		asset.DepositCap = capAmount
	}
	if input.ProtocolFee != "" {
		fee, err := parseDecimalField("protocolFee", input.ProtocolFee)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		asset.ProtocolFee = fee
	}
	if input.LiquidationBonus != nil {
		bonus := credit.LiquidationBonus{}
		if bonus.StartingLB, err = parseDecimalField("startingLb", input.LiquidationBonus.StartingLB); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		if bonus.Slope, err = parseDecimalField("slope", input.LiquidationBonus.Slope); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		if bonus.MinLB, err = parseDecimalField("minLb", input.LiquidationBonus.MinLB); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		if bonus.MaxLB, err = parseDecimalField("maxLb", input.LiquidationBonus.MaxLB); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		asset.LiquidationBonus = bonus
	}
	if input.HLS != nil {
		hls, err := input.HLS.toHLS()
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		asset.HLS = hls
	}
	if err := s.registry.SetAssetParams(asset); err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

type setVaultParams struct {
	Vault                string   `json:"vault"`
	MaxLTV               string   `json:"maxLtv"`
	LiquidationThreshold string   `json:"liquidationThreshold"`
	Whitelisted          bool     `json:"whitelisted"`
	DepositCap           string   `json:"depositCap,omitempty"`
	HLS                  *hlsBody `json:"hls,omitempty"`
}

func (s *Server) handleSetVaultConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input setVaultParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	maxLTV, err := parseDecimalField("maxLtv", input.MaxLTV)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	liqThreshold, err := parseDecimalField("liquidationThreshold", input.LiquidationThreshold)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	config := &credit.VaultConfig{
		Vault:                input.Vault,
		MaxLTV:               maxLTV,
		LiquidationThreshold: liqThreshold,
		Whitelisted:          input.Whitelisted,
	}
	if input.DepositCap != "" {
		capAmount, err := parseAmount(input.DepositCap)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid depositCap", err.Error())
			return
		}
		config.DepositCap = capAmount
	}
	if input.HLS != nil {
		hls, err := input.HLS.toHLS()
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		config.HLS = hls
	}
	if err := s.registry.SetVaultConfig(config); err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

type decimalParams struct {
	Value string `json:"value"`
}

func (s *Server) handleSetCloseFactor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input decimalParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	value, err := parseDecimalField("value", input.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.registry.SetCloseFactor(value); err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetTargetHealthFactor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input decimalParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	value, err := parseDecimalField("value", input.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.registry.SetTargetHealthFactor(value); err != nil {
		status, code := engineError(err)
		writeError(w, status, req.ID, code, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, true)
}

type setPausedParams struct {
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

func (s *Server) handleSetPaused(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var input setPausedParams
	if err := decodeParams(req, &input); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	s.registry.SetPaused(input.Module, input.Paused)
	writeResult(w, req.ID, true)
}
