package escrow

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/swaplabs/swapd/pkg/storage"
)

// OrderStore owns the persisted order records: creation, the single
// fill-flag mutation, and destruction.
// Uses in-memory cache + Pebble persistence for durability.
type OrderStore struct {
	mu     sync.RWMutex
	orders map[common.Address]*Order
	store  *storage.PebbleStore
}

// NewOrderStore opens the store and warms the cache with all live orders.
func NewOrderStore(store *storage.PebbleStore) (*OrderStore, error) {
	s := &OrderStore{
		orders: make(map[common.Address]*Order),
		store:  store,
	}

	err := store.Scan(storage.OrderPrefix(), func(_, val []byte) error {
		var o Order
		if err := json.Unmarshal(val, &o); err != nil {
			return fmt.Errorf("failed to unmarshal order: %w", err)
		}
		s.orders[o.Address] = &o
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to warm order cache: %w", err)
	}

	return s, nil
}

// Get returns a snapshot copy of a live order.
func (s *OrderStore) Get(addr common.Address) (*Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[addr]
	if !ok {
		return nil, false
	}
	return o.clone(), true
}

// Put persists a newly created order. The derived address is the key, so a
// live order at the same identity rejects the write.
func (s *OrderStore) Put(o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.Address]; ok {
		return fmt.Errorf("%w: %s", ErrOrderExists, o.Address.Hex())
	}
	if err := s.persist(o); err != nil {
		return err
	}
	s.orders[o.Address] = o.clone()
	return nil
}

// MarkFilled flips the fill flag, exactly once.
func (s *OrderStore) MarkFilled(addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[addr]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, addr.Hex())
	}
	if o.Filled {
		return fmt.Errorf("%w: %s", ErrOrderAlreadyFilled, addr.Hex())
	}
	o.Filled = true
	if err := s.persist(o); err != nil {
		o.Filled = false
		return err
	}
	return nil
}

// Delete destroys an order record. The deposit refund is the engine's job;
// the store only reclaims the record.
func (s *OrderStore) Delete(addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, addr.Hex())
	}
	if err := s.store.Delete(storage.OrderKey(addr)); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	delete(s.orders, addr)
	return nil
}

// List returns a snapshot of all live orders.
func (s *OrderStore) List() []*Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.clone())
	}
	return out
}

// Count returns the number of live orders.
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func (s *OrderStore) persist(o *Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.store.Set(storage.OrderKey(o.Address), data); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}
