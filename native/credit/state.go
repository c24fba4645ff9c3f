package credit

import "math/big"

// EngineState opens atomic sessions against the persisted credit state. One
// session backs one user-initiated sequence; nothing a session writes is
// visible until Commit, and dropping the session discards every mutation.
type EngineState interface {
	Begin() StateSession
}

// StateSession is the persistence surface the engine mutates during a
// callback chain. Amount getters return a zero big.Int when the entry is
// absent; amount putters delete the entry when the value reaches zero.
type StateSession interface {
	AccountKind(accountID string) (AccountKind, bool, error)
	PutAccountKind(accountID string, kind AccountKind) error

	Deposit(accountID, denom string) (*big.Int, error)
	PutDeposit(accountID, denom string, amount *big.Int) error
	Deposits(accountID string) ([]Coin, error)
	AllCoinBalances(startAfterAccount, startAfterDenom string, limit uint32) ([]CoinBalance, error)

	DebtShares(accountID, denom string) (*big.Int, error)
	PutDebtShares(accountID, denom string, shares *big.Int) error
	AccountDebtShares(accountID string) ([]SharesBalance, error)
	TotalDebtShares(denom string) (*big.Int, error)
	PutTotalDebtShares(denom string, shares *big.Int) error
	AllTotalDebtShares(startAfter string, limit uint32) ([]SharesBalance, error)

	LendShares(accountID, denom string) (*big.Int, error)
	PutLendShares(accountID, denom string, shares *big.Int) error
	AccountLendShares(accountID string) ([]SharesBalance, error)
	TotalLendShares(denom string) (*big.Int, error)
	PutTotalLendShares(denom string, shares *big.Int) error

	VaultPosition(accountID, vault string) (*VaultPosition, error)
	PutVaultPosition(accountID, vault string, position *VaultPosition) error
	VaultPositions(accountID string) ([]VaultPositionItem, error)

	StakedLP(accountID, denom string) (*big.Int, error)
	PutStakedLP(accountID, denom string, amount *big.Int) error
	StakedLPs(accountID string) ([]Coin, error)

	Commit() error
}
