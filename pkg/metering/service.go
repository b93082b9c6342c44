package metering

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/swaplabs/swapd/pkg/events"
	"github.com/swaplabs/swapd/pkg/storage"
)

var (
	// ErrAccountNotFound is returned for operations on an uninitialized owner.
	ErrAccountNotFound = errors.New("metering: account not initialized")

	// ErrAccountExists is returned when initializing an owner twice.
	ErrAccountExists = errors.New("metering: account already initialized")

	// ErrInvalidAmount rejects zero deposits.
	ErrInvalidAmount = errors.New("metering: amount must be positive")

	// ErrInsufficientBalance is returned when a charge exceeds the balance.
	ErrInsufficientBalance = errors.New("metering: insufficient balance")

	// ErrNoBalance is returned when withdrawing an empty account.
	ErrNoBalance = errors.New("metering: no balance to withdraw")

	// ErrOverflow guards the balance counters.
	ErrOverflow = errors.New("metering: arithmetic overflow")
)

// Service is the metered balance ledger: deposit, charge-for-usage,
// withdraw, record-event. Balance arithmetic is constant-time and guarded
// by ownership of the account; there is no state machine here.
type Service struct {
	mu       sync.RWMutex
	accounts map[common.Address]*Account
	treasury common.Address
	store    *storage.PebbleStore
	events   events.Log
	log      *zap.SugaredLogger
}

func NewService(store *storage.PebbleStore, treasury common.Address, ev events.Log, log *zap.SugaredLogger) (*Service, error) {
	s := &Service{
		accounts: make(map[common.Address]*Account),
		treasury: treasury,
		store:    store,
		events:   ev,
		log:      log,
	}

	err := store.Scan(storage.MeterPrefix(), func(_, val []byte) error {
		var acc Account
		if err := json.Unmarshal(val, &acc); err != nil {
			return fmt.Errorf("failed to unmarshal meter account: %w", err)
		}
		s.accounts[acc.Owner] = &acc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to warm meter cache: %w", err)
	}

	return s, nil
}

// Account returns a snapshot copy of an owner's metered balance.
func (s *Service) Account(owner common.Address) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[owner]
	if !ok {
		return Account{}, false
	}
	return *acc.clone(), true
}

// Initialize registers a zero-balance account for the owner.
func (s *Service) Initialize(owner common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[owner]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, owner.Hex())
	}
	acc := NewAccount(owner)
	if err := s.persist(acc); err != nil {
		return err
	}
	s.accounts[owner] = acc
	return nil
}

// Deposit credits the owner's metered balance.
func (s *Service) Deposit(owner common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[owner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, owner.Hex())
	}
	if acc.Balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: deposit on %s", ErrOverflow, owner.Hex())
	}

	staged := acc.clone()
	staged.Balance += amount
	if err := s.persist(staged); err != nil {
		return err
	}
	s.accounts[owner] = staged

	s.events.Append(events.MeterDeposited{Owner: owner, Amount: amount, NewBalance: staged.Balance})
	s.log.Infow("meter_deposit", "owner", owner.Hex(), "amount", amount, "balance", staged.Balance)
	return nil
}

// Charge debits one usage charge from the owner's balance toward the
// treasury. Fails whole if the balance cannot cover the cost.
func (s *Service) Charge(owner common.Address, cost uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[owner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, owner.Hex())
	}
	if acc.Balance < cost {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, owner.Hex(), acc.Balance, cost)
	}
	if acc.TotalSpent > math.MaxUint64-cost {
		return fmt.Errorf("%w: total spent on %s", ErrOverflow, owner.Hex())
	}

	staged := acc.clone()
	staged.Balance -= cost
	staged.TotalSpent += cost
	if err := s.persist(staged); err != nil {
		return err
	}
	s.accounts[owner] = staged

	s.events.Append(events.MeterCharged{Owner: owner, Cost: cost, RemainingBalance: staged.Balance})
	s.log.Infow("meter_charge", "owner", owner.Hex(), "cost", cost, "treasury", s.treasury.Hex(), "balance", staged.Balance)
	return nil
}

// Withdraw drains the owner's full remaining balance and returns it.
func (s *Service) Withdraw(owner common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[owner]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, owner.Hex())
	}
	if acc.Balance == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoBalance, owner.Hex())
	}

	staged := acc.clone()
	amount := staged.Balance
	staged.Balance = 0
	if err := s.persist(staged); err != nil {
		return 0, err
	}
	s.accounts[owner] = staged

	s.events.Append(events.MeterWithdrawn{Owner: owner, Amount: amount})
	s.log.Infow("meter_withdraw", "owner", owner.Hex(), "amount", amount)
	return amount, nil
}

// RecordEvent counts one labelled usage event against the owner.
func (s *Service) RecordEvent(owner common.Address, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[owner]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, owner.Hex())
	}
	if acc.MatchCount == math.MaxUint64 {
		return fmt.Errorf("%w: match count on %s", ErrOverflow, owner.Hex())
	}

	staged := acc.clone()
	staged.MatchCount++
	if err := s.persist(staged); err != nil {
		return err
	}
	s.accounts[owner] = staged

	s.events.Append(events.UsageRecorded{Owner: owner, Label: label, TotalEvents: staged.MatchCount})
	return nil
}

func (s *Service) persist(acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("failed to marshal meter account: %w", err)
	}
	if err := s.store.Set(storage.MeterKey(acc.Owner), data); err != nil {
		return fmt.Errorf("failed to save meter account: %w", err)
	}
	return nil
}
