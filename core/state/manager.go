package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"creditmanager/native/credit"
	"creditmanager/storage"
)

// Manager persists credit manager state in an ordered key-value store using
// RLP-encoded values. It implements both credit.EngineState and
// credit.StateSession: Begin returns a Manager bound to a write overlay, and
// Commit flushes that overlay back to the base database.
type Manager struct {
	db      storage.Database
	overlay *storage.Overlay
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens an atomic session. Mutations stay in the overlay until Commit.
func (m *Manager) Begin() credit.StateSession {
	overlay := storage.NewOverlay(m.db)
	return &Manager{db: overlay, overlay: overlay}
}

// Commit flushes the session overlay. On a root manager it is a no-op.
func (m *Manager) Commit() error {
	if m.overlay == nil {
		return nil
	}
	return m.overlay.Commit()
}

// --- account kind ---

func (m *Manager) AccountKind(accountID string) (credit.AccountKind, bool, error) {
	data, err := m.db.Get(joinKey(kindPrefix, accountID))
	if err != nil {
		return "", false, err
	}
	if len(data) == 0 {
		return "", false, nil
	}
	var kind string
	if err := rlp.DecodeBytes(data, &kind); err != nil {
		return "", false, err
	}
	return credit.AccountKind(kind), true, nil
}

func (m *Manager) PutAccountKind(accountID string, kind credit.AccountKind) error {
	encoded, err := rlp.EncodeToBytes(string(kind))
	if err != nil {
		return err
	}
	return m.db.Put(joinKey(kindPrefix, accountID), encoded)
}

// --- amounts keyed by (account, denom) ---

func (m *Manager) getAmount(prefix []byte, accountID, denom string) (*big.Int, error) {
	data, err := m.db.Get(joinKey(prefix, accountID, denom))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) putAmount(prefix []byte, accountID, denom string, amount *big.Int) error {
	key := joinKey(prefix, accountID, denom)
	if amount == nil || amount.Sign() == 0 {
		return m.db.Delete(key)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) accountAmounts(prefix []byte, accountID string) ([]credit.Coin, error) {
	scanPrefix := append(joinKey(prefix, accountID), keySep)
	var coins []credit.Coin
	var scanErr error
	err := m.db.Iterate(scanPrefix, func(key, value []byte) bool {
		amount := new(big.Int)
		if err := rlp.DecodeBytes(value, amount); err != nil {
			scanErr = err
			return false
		}
		coins = append(coins, credit.Coin{Denom: string(key[len(scanPrefix):]), Amount: amount})
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return coins, nil
}

// --- deposits ---

func (m *Manager) Deposit(accountID, denom string) (*big.Int, error) {
	return m.getAmount(depositPrefix, accountID, denom)
}

func (m *Manager) PutDeposit(accountID, denom string, amount *big.Int) error {
	return m.putAmount(depositPrefix, accountID, denom, amount)
}

func (m *Manager) Deposits(accountID string) ([]credit.Coin, error) {
	return m.accountAmounts(depositPrefix, accountID)
}

// AllCoinBalances pages through every (account, denom) deposit row in
// ascending key order, exclusive of the start_after cursor.
func (m *Manager) AllCoinBalances(startAfterAccount, startAfterDenom string, limit uint32) ([]credit.CoinBalance, error) {
	limit = clampLimit(limit)
	var cursor []byte
	if startAfterAccount != "" {
		cursor = joinKey(depositPrefix, startAfterAccount, startAfterDenom)
	}
	var rows []credit.CoinBalance
	var scanErr error
	err := m.db.Iterate(depositPrefix, func(key, value []byte) bool {
		if cursor != nil && string(key) <= string(cursor) {
			return true
		}
		parts := splitKey(depositPrefix, key)
		if len(parts) != 2 {
			return true
		}
		amount := new(big.Int)
		if err := rlp.DecodeBytes(value, amount); err != nil {
			scanErr = err
			return false
		}
		rows = append(rows, credit.CoinBalance{AccountID: parts[0], Denom: parts[1], Amount: amount})
		return uint32(len(rows)) < limit
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return rows, nil
}

// --- debt shares ---

func (m *Manager) DebtShares(accountID, denom string) (*big.Int, error) {
	return m.getAmount(debtPrefix, accountID, denom)
}

func (m *Manager) PutDebtShares(accountID, denom string, shares *big.Int) error {
	return m.putAmount(debtPrefix, accountID, denom, shares)
}

func (m *Manager) AccountDebtShares(accountID string) ([]credit.SharesBalance, error) {
	coins, err := m.accountAmounts(debtPrefix, accountID)
	if err != nil {
		return nil, err
	}
	return toShares(coins), nil
}

func (m *Manager) TotalDebtShares(denom string) (*big.Int, error) {
	return m.getTotal(debtTotalPrefix, denom)
}

func (m *Manager) PutTotalDebtShares(denom string, shares *big.Int) error {
	return m.putTotal(debtTotalPrefix, denom, shares)
}

// AllTotalDebtShares pages through the per-denom share totals in ascending
// denom order, exclusive of start_after.
func (m *Manager) AllTotalDebtShares(startAfter string, limit uint32) ([]credit.SharesBalance, error) {
	limit = clampLimit(limit)
	var rows []credit.SharesBalance
	var scanErr error
	err := m.db.Iterate(debtTotalPrefix, func(key, value []byte) bool {
		denom := string(key[len(debtTotalPrefix):])
		if startAfter != "" && denom <= startAfter {
			return true
		}
		amount := new(big.Int)
		if err := rlp.DecodeBytes(value, amount); err != nil {
			scanErr = err
			return false
		}
		rows = append(rows, credit.SharesBalance{Denom: denom, Shares: amount})
		return uint32(len(rows)) < limit
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return rows, nil
}

// --- lend shares ---

func (m *Manager) LendShares(accountID, denom string) (*big.Int, error) {
	return m.getAmount(lendPrefix, accountID, denom)
}

func (m *Manager) PutLendShares(accountID, denom string, shares *big.Int) error {
	return m.putAmount(lendPrefix, accountID, denom, shares)
}

func (m *Manager) AccountLendShares(accountID string) ([]credit.SharesBalance, error) {
	coins, err := m.accountAmounts(lendPrefix, accountID)
	if err != nil {
		return nil, err
	}
	return toShares(coins), nil
}

func (m *Manager) TotalLendShares(denom string) (*big.Int, error) {
	return m.getTotal(lendTotalPrefix, denom)
}

func (m *Manager) PutTotalLendShares(denom string, shares *big.Int) error {
	return m.putTotal(lendTotalPrefix, denom, shares)
}

// --- vault positions ---

type storedUnlockingPosition struct {
	ID        uint64
	Denom     string
	Amount    *big.Int
	ReleaseAt uint64
}

type storedVaultPosition struct {
	Unlocked  *big.Int
	Locked    *big.Int
	Unlocking []storedUnlockingPosition
}

func (m *Manager) VaultPosition(accountID, vault string) (*credit.VaultPosition, error) {
	data, err := m.db.Get(joinKey(vaultPrefix, accountID, vault))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var stored storedVaultPosition
	if err := rlp.DecodeBytes(data, &stored); err != nil {
		return nil, err
	}
	return fromStoredVault(&stored), nil
}

func (m *Manager) PutVaultPosition(accountID, vault string, position *credit.VaultPosition) error {
	key := joinKey(vaultPrefix, accountID, vault)
	if position == nil || position.IsEmpty() {
		return m.db.Delete(key)
	}
	encoded, err := rlp.EncodeToBytes(toStoredVault(position))
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) VaultPositions(accountID string) ([]credit.VaultPositionItem, error) {
	scanPrefix := append(joinKey(vaultPrefix, accountID), keySep)
	var items []credit.VaultPositionItem
	var scanErr error
	err := m.db.Iterate(scanPrefix, func(key, value []byte) bool {
		var stored storedVaultPosition
		if err := rlp.DecodeBytes(value, &stored); err != nil {
			scanErr = err
			return false
		}
		items = append(items, credit.VaultPositionItem{
			Vault:    string(key[len(scanPrefix):]),
			Position: *fromStoredVault(&stored),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return items, nil
}

// --- staked LP ---

func (m *Manager) StakedLP(accountID, denom string) (*big.Int, error) {
	return m.getAmount(stakedLPPrefix, accountID, denom)
}

func (m *Manager) PutStakedLP(accountID, denom string, amount *big.Int) error {
	return m.putAmount(stakedLPPrefix, accountID, denom, amount)
}

func (m *Manager) StakedLPs(accountID string) ([]credit.Coin, error) {
	return m.accountAmounts(stakedLPPrefix, accountID)
}

// --- helpers ---

func (m *Manager) getTotal(prefix []byte, denom string) (*big.Int, error) {
	data, err := m.db.Get(joinKey(prefix, denom))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) putTotal(prefix []byte, denom string, amount *big.Int) error {
	key := joinKey(prefix, denom)
	if amount == nil || amount.Sign() == 0 {
		return m.db.Delete(key)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func toShares(coins []credit.Coin) []credit.SharesBalance {
	out := make([]credit.SharesBalance, 0, len(coins))
	for _, c := range coins {
		out = append(out, credit.SharesBalance{Denom: c.Denom, Shares: c.Amount})
	}
	return out
}

func toStoredVault(position *credit.VaultPosition) *storedVaultPosition {
	stored := &storedVaultPosition{
		Unlocked: position.Unlocked,
		Locked:   position.Locked,
	}
	if stored.Unlocked == nil {
		stored.Unlocked = big.NewInt(0)
	}
	if stored.Locked == nil {
		stored.Locked = big.NewInt(0)
	}
	for _, u := range position.Unlocking {
		amount := u.Coin.Amount
		if amount == nil {
			amount = big.NewInt(0)
		}
		stored.Unlocking = append(stored.Unlocking, storedUnlockingPosition{
			ID:        u.ID,
			Denom:     u.Coin.Denom,
			Amount:    amount,
			ReleaseAt: u.ReleaseAt,
		})
	}
	return stored
}

func fromStoredVault(stored *storedVaultPosition) *credit.VaultPosition {
	position := &credit.VaultPosition{
		Unlocked: stored.Unlocked,
		Locked:   stored.Locked,
	}
	for _, u := range stored.Unlocking {
		position.Unlocking = append(position.Unlocking, credit.VaultUnlockingPosition{
			ID:        u.ID,
			Coin:      credit.Coin{Denom: u.Denom, Amount: u.Amount},
			ReleaseAt: u.ReleaseAt,
		})
	}
	return position
}

func clampLimit(limit uint32) uint32 {
	const (
		defaultLimit = 10
		maxLimit     = 30
	)
	if limit == 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
