package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/swaplabs/swapd/pkg/storage"
)

// VaultAuthority is the capability the escrow engine presents to move funds
// out of a vault it controls. The salt is issued when the vault is registered
// and recorded on the owning order; no other context can reproduce it.
type VaultAuthority struct {
	Vault common.Address `json:"vault"`
	Salt  uint8          `json:"salt"`
}

// Leg is one balance movement inside an atomic swap. A nil VaultAuth means
// the leg runs under the From account's own authority; a non-nil VaultAuth
// runs under the engine's delegated authority for exactly that vault.
type Leg struct {
	Kind      AssetKind
	From      common.Address
	To        common.Address
	Amount    uint64
	VaultAuth *VaultAuthority
}

// Ledger moves native and token balances between accounts. All mutation goes
// through ExecuteSwap, which validates every leg before applying any, so a
// failed operation leaves no partial transfer behind.
// Uses in-memory cache + Pebble persistence for durability.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[common.Address]*Account
	mint     string
	store    *storage.PebbleStore
	log      *zap.SugaredLogger
}

// NewLedger opens a ledger over the shared store and warms the account cache.
func NewLedger(store *storage.PebbleStore, mint string, log *zap.SugaredLogger) (*Ledger, error) {
	l := &Ledger{
		accounts: make(map[common.Address]*Account),
		mint:     mint,
		store:    store,
		log:      log,
	}

	err := store.Scan(storage.AccountPrefix(), func(_, val []byte) error {
		var acc Account
		if err := json.Unmarshal(val, &acc); err != nil {
			return fmt.Errorf("failed to unmarshal account: %w", err)
		}
		l.accounts[acc.Address] = &acc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to warm account cache: %w", err)
	}

	return l, nil
}

// Mint identifies the fungible token this ledger tracks.
func (l *Ledger) Mint() string { return l.mint }

// Account returns a snapshot copy of an account, or ok=false if absent.
func (l *Ledger) Account(addr common.Address) (Account, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[addr]
	if !ok {
		return Account{}, false
	}
	return *acc.clone(), true
}

// Balance returns the account's balance of the given kind; missing accounts
// and missing token sub-accounts read as zero.
func (l *Ledger) Balance(addr common.Address, kind AssetKind) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[addr]
	if !ok {
		return 0
	}
	return acc.BalanceOf(kind)
}

// CreateAccount registers an empty account.
func (l *Ledger) CreateAccount(addr common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr.Hex())
	}
	acc := NewAccount(addr)
	if err := l.persist(acc); err != nil {
		return err
	}
	l.accounts[addr] = acc
	return nil
}

// OpenTokenAccount attaches a token sub-account for the given mint,
// creating the account if needed. Reopening with the same mint is a no-op;
// reopening with a different mint is rejected.
func (l *Ledger) OpenTokenAccount(addr common.Address, mint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[addr]
	if !ok {
		acc = NewAccount(addr)
	}
	if acc.Token != nil {
		if acc.Token.Mint == mint {
			return nil
		}
		return fmt.Errorf("%w: account %s holds %s", ErrMintMismatch, addr.Hex(), acc.Token.Mint)
	}
	acc.Token = &TokenAccount{Mint: mint}
	if err := l.persist(acc); err != nil {
		return err
	}
	l.accounts[addr] = acc
	return nil
}

// Deposit credits an account from outside the ledger (genesis funding or an
// inbound bridge deposit). Token deposits require an open sub-account for
// the tracked mint.
func (l *Ledger) Deposit(kind AssetKind, addr common.Address, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[addr]
	if !ok {
		if kind == Token {
			return fmt.Errorf("%w: %s", ErrMissingTokenAccount, addr.Hex())
		}
		acc = NewAccount(addr)
	}
	staged := acc.clone()
	if err := l.credit(staged, kind, amount); err != nil {
		return err
	}
	if err := l.persist(staged); err != nil {
		return err
	}
	l.accounts[addr] = staged
	return nil
}

// Transfer moves one amount under the From account's own authority.
func (l *Ledger) Transfer(kind AssetKind, from, to common.Address, amount uint64) error {
	return l.ExecuteSwap(Leg{Kind: kind, From: from, To: to, Amount: amount})
}

// VaultTransfer moves funds out of a vault under the engine's delegated
// authority. The capability is scoped to exactly one vault.
func (l *Ledger) VaultTransfer(auth VaultAuthority, kind AssetKind, to common.Address, amount uint64) error {
	return l.ExecuteSwap(Leg{Kind: kind, From: auth.Vault, To: to, Amount: amount, VaultAuth: &auth})
}

// ExecuteSwap applies all legs atomically: every leg is validated against
// staged balances before anything is written, and the staged state commits
// through a single Pebble batch. Either every leg lands or none do.
func (l *Ledger) ExecuteSwap(legs ...Leg) error {
	if len(legs) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[common.Address]*Account)
	lookup := func(addr common.Address) (*Account, bool) {
		if acc, ok := staged[addr]; ok {
			return acc, true
		}
		acc, ok := l.accounts[addr]
		if !ok {
			return nil, false
		}
		c := acc.clone()
		staged[addr] = c
		return c, true
	}

	for i := range legs {
		leg := legs[i]
		if !leg.Kind.Valid() {
			return ErrInvalidAssetKind
		}
		if leg.Amount == 0 {
			return ErrZeroAmount
		}

		from, ok := lookup(leg.From)
		if !ok {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, leg.From.Hex())
		}
		if err := checkAuthority(from, leg.VaultAuth); err != nil {
			return err
		}

		to, ok := lookup(leg.To)
		if !ok {
			if leg.Kind == Token {
				return fmt.Errorf("%w: %s", ErrMissingTokenAccount, leg.To.Hex())
			}
			// Native credits create the destination, like a first-time
			// balance transfer on chain.
			to = NewAccount(leg.To)
			staged[leg.To] = to
		}

		if err := l.debit(from, leg.Kind, leg.Amount); err != nil {
			return err
		}
		if err := l.credit(to, leg.Kind, leg.Amount); err != nil {
			return err
		}
	}

	batch := l.store.NewBatch()
	defer batch.Close()
	for addr, acc := range staged {
		data, err := json.Marshal(acc)
		if err != nil {
			return fmt.Errorf("failed to marshal account %s: %w", addr.Hex(), err)
		}
		if err := batch.Set(storage.AccountKey(addr), data); err != nil {
			return err
		}
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("failed to commit swap: %w", err)
	}

	for addr, acc := range staged {
		l.accounts[addr] = acc
	}
	return nil
}

// RegisterVault creates a vault account under the engine's exclusive control
// and issues its capability. Token vaults get a sub-account for the tracked
// mint so the escrowed kind always matches the vault's configuration.
func (l *Ledger) RegisterVault(vault common.Address, salt uint8, kind AssetKind) (VaultAuthority, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[vault]; ok {
		return VaultAuthority{}, fmt.Errorf("%w: %s", ErrAccountExists, vault.Hex())
	}
	acc := NewAccount(vault)
	acc.VaultSalt = &salt
	if kind == Token {
		acc.Token = &TokenAccount{Mint: l.mint}
	}
	if err := l.persist(acc); err != nil {
		return VaultAuthority{}, err
	}
	l.accounts[vault] = acc

	l.log.Debugw("vault_registered", "vault", vault.Hex(), "kind", kind.String())
	return VaultAuthority{Vault: vault, Salt: salt}, nil
}

// CloseVault tears a vault down after its order reaches a terminal state.
// Any remaining native balance (the order record's creation deposit) is
// refunded to refundTo; a token remainder means the caller skipped a leg and
// is rejected. Returns the refunded native amount.
func (l *Ledger) CloseVault(auth VaultAuthority, refundTo common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[auth.Vault]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, auth.Vault.Hex())
	}
	if err := checkAuthority(acc, &auth); err != nil {
		return 0, err
	}
	if acc.Token != nil && acc.Token.Balance != 0 {
		return 0, fmt.Errorf("%w: %s holds %d token units", ErrVaultNotEmpty, auth.Vault.Hex(), acc.Token.Balance)
	}

	refund := acc.NativeBalance

	dest, ok := l.accounts[refundTo]
	if !ok {
		dest = NewAccount(refundTo)
	}
	stagedDest := dest.clone()
	if refund > 0 {
		if err := l.credit(stagedDest, Native, refund); err != nil {
			return 0, err
		}
	}

	batch := l.store.NewBatch()
	defer batch.Close()
	data, err := json.Marshal(stagedDest)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal account %s: %w", refundTo.Hex(), err)
	}
	if err := batch.Set(storage.AccountKey(refundTo), data); err != nil {
		return 0, err
	}
	if err := batch.Delete(storage.AccountKey(auth.Vault)); err != nil {
		return 0, err
	}
	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit vault close: %w", err)
	}

	l.accounts[refundTo] = stagedDest
	delete(l.accounts, auth.Vault)

	l.log.Debugw("vault_closed", "vault", auth.Vault.Hex(), "native_refund", refund)
	return refund, nil
}

// checkAuthority enforces the vault capability discipline: vault accounts
// move funds only under a matching delegated authority, regular accounts
// only under their own.
func checkAuthority(from *Account, auth *VaultAuthority) error {
	if from.VaultSalt == nil {
		if auth != nil {
			return fmt.Errorf("%w: %s is not a vault", ErrVaultAuthority, from.Address.Hex())
		}
		return nil
	}
	if auth == nil {
		return fmt.Errorf("%w: %s requires delegated authority", ErrVaultAuthority, from.Address.Hex())
	}
	if auth.Vault != from.Address || auth.Salt != *from.VaultSalt {
		return fmt.Errorf("%w: capability does not match %s", ErrVaultAuthority, from.Address.Hex())
	}
	return nil
}

func (l *Ledger) debit(acc *Account, kind AssetKind, amount uint64) error {
	switch kind {
	case Native:
		if acc.NativeBalance < amount {
			return fmt.Errorf("%w: %s has %d native, needs %d", ErrInsufficientFunds, acc.Address.Hex(), acc.NativeBalance, amount)
		}
		acc.NativeBalance -= amount
	case Token:
		if acc.Token == nil {
			return fmt.Errorf("%w: %s", ErrMissingTokenAccount, acc.Address.Hex())
		}
		if acc.Token.Mint != l.mint {
			return fmt.Errorf("%w: account %s holds %s, engine tracks %s", ErrMintMismatch, acc.Address.Hex(), acc.Token.Mint, l.mint)
		}
		if acc.Token.Balance < amount {
			return fmt.Errorf("%w: %s has %d %s, needs %d", ErrInsufficientFunds, acc.Address.Hex(), acc.Token.Balance, l.mint, amount)
		}
		acc.Token.Balance -= amount
	default:
		return ErrInvalidAssetKind
	}
	return nil
}

func (l *Ledger) credit(acc *Account, kind AssetKind, amount uint64) error {
	switch kind {
	case Native:
		if acc.NativeBalance > math.MaxUint64-amount {
			return fmt.Errorf("%w: native credit on %s", ErrArithmeticOverflow, acc.Address.Hex())
		}
		acc.NativeBalance += amount
	case Token:
		if acc.Token == nil {
			return fmt.Errorf("%w: %s", ErrMissingTokenAccount, acc.Address.Hex())
		}
		if acc.Token.Mint != l.mint {
			return fmt.Errorf("%w: account %s holds %s, engine tracks %s", ErrMintMismatch, acc.Address.Hex(), acc.Token.Mint, l.mint)
		}
		if acc.Token.Balance > math.MaxUint64-amount {
			return fmt.Errorf("%w: token credit on %s", ErrArithmeticOverflow, acc.Address.Hex())
		}
		acc.Token.Balance += amount
	default:
		return ErrInvalidAssetKind
	}
	return nil
}

func (l *Ledger) persist(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := l.store.Set(storage.AccountKey(acc.Address), data); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}
