package escrow

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/swaplabs/swapd/params"
	"github.com/swaplabs/swapd/pkg/events"
	"github.com/swaplabs/swapd/pkg/ledger"
	"github.com/swaplabs/swapd/pkg/util"
)

// Engine runs the order state machine: Open -> {Filled | Cancelled}.
// Expiration is not a state; it is a guard evaluated only when fill runs.
//
// Operations on the same order serialize on a per-identity lock, so of two
// racing settlements exactly one commits and the other observes the
// destroyed order. Operations on distinct orders run in parallel; the engine
// holds no global lock, no timers, and no background sweeps.
type Engine struct {
	cfg    params.Engine
	ledger *ledger.Ledger
	orders *OrderStore
	events events.Log
	clock  util.TickSource
	log    *zap.SugaredLogger

	// Striped by order address; same order always maps to the same stripe.
	locks [64]sync.Mutex
}

func NewEngine(cfg params.Engine, l *ledger.Ledger, orders *OrderStore, ev events.Log, clock util.TickSource, log *zap.SugaredLogger) *Engine {
	return &Engine{
		cfg:    cfg,
		ledger: l,
		orders: orders,
		events: ev,
		clock:  clock,
		log:    log,
	}
}

func (e *Engine) lockFor(addr common.Address) *sync.Mutex {
	return &e.locks[addr[common.AddressLength-1]&63]
}

// Order returns a snapshot of a live order.
func (e *Engine) Order(addr common.Address) (*Order, bool) {
	return e.orders.Get(addr)
}

// Orders returns a snapshot of all live orders.
func (e *Engine) Orders() []*Order {
	return e.orders.List()
}

// Create validates and opens a new order: the maker's escrowed asset moves
// into the vault and the creation deposit backs the order record, in one
// atomic unit. Any failure leaves no funds moved and no record written.
func (e *Engine) Create(maker common.Address, amount uint64, direction Direction, expirationTick uint64, counterRecipient *common.Address) (*Order, error) {
	if amount < e.cfg.MinOrderAmount {
		return nil, fmt.Errorf("%w: %d < %d", ErrAmountBelowMinimum, amount, e.cfg.MinOrderAmount)
	}
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, direction)
	}

	now := e.clock.CurrentTick()
	if expirationTick <= now {
		return nil, fmt.Errorf("%w: expiration %d, current tick %d", ErrExpirationInPast, expirationTick, now)
	}
	if expirationTick-now > e.cfg.MaxExpiryWindow {
		return nil, fmt.Errorf("%w: expiration %d exceeds tick %d by more than %d", ErrExpirationTooFar, expirationTick, now, e.cfg.MaxExpiryWindow)
	}

	orderAddr := DeriveOrderAddress(maker, amount)
	vaultAddr := DeriveVaultAddress(maker, amount)
	salt := DeriveAuthoritySalt(maker, amount)

	mu := e.lockFor(orderAddr)
	mu.Lock()
	defer mu.Unlock()

	if _, ok := e.orders.Get(orderAddr); ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderExists, orderAddr.Hex())
	}

	// The order record account holds the creation deposit; the vault holds
	// the escrowed asset. Both are engine-controlled.
	recordAuth, err := e.ledger.RegisterVault(orderAddr, salt, ledger.Native)
	if err != nil {
		return nil, fmt.Errorf("order record account: %w", err)
	}
	vaultAuth, err := e.ledger.RegisterVault(vaultAddr, salt, direction.Escrowed())
	if err != nil {
		e.discardVault(recordAuth, maker)
		return nil, fmt.Errorf("escrow vault account: %w", err)
	}

	legs := []ledger.Leg{
		{Kind: direction.Escrowed(), From: maker, To: vaultAddr, Amount: amount},
	}
	if e.cfg.OrderDeposit > 0 {
		legs = append(legs, ledger.Leg{Kind: ledger.Native, From: maker, To: orderAddr, Amount: e.cfg.OrderDeposit})
	}
	if err := e.ledger.ExecuteSwap(legs...); err != nil {
		e.discardVault(vaultAuth, maker)
		e.discardVault(recordAuth, maker)
		return nil, err
	}

	order := &Order{
		Address:          orderAddr,
		Maker:            maker,
		Amount:           amount,
		Direction:        direction,
		ExpirationTick:   expirationTick,
		AuthoritySalt:    salt,
		CreatedTick:      now,
		Deposit:          e.cfg.OrderDeposit,
		CounterRecipient: counterRecipient,
	}
	if err := e.orders.Put(order); err != nil {
		e.unwindCreate(order)
		return nil, err
	}

	e.events.Append(events.OrderCreated{
		Order:            orderAddr,
		Maker:            maker,
		Amount:           amount,
		Direction:        direction.String(),
		ExpirationTick:   expirationTick,
		CounterRecipient: counterRecipient,
	})
	e.log.Infow("order_created",
		"order", orderAddr.Hex(),
		"maker", maker.Hex(),
		"amount", amount,
		"direction", direction.String(),
		"expiration_tick", expirationTick)

	return order.clone(), nil
}

// Fill settles an order: the taker delivers the counter-asset to the maker
// directly, the vault releases the escrowed asset to the taker, and the
// order is destroyed with its deposit refunded to the maker. Both transfer
// legs land atomically or not at all.
func (e *Engine) Fill(orderAddr, taker common.Address) (*Order, error) {
	mu := e.lockFor(orderAddr)
	mu.Lock()
	defer mu.Unlock()

	o, ok := e.orders.Get(orderAddr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderAddr.Hex())
	}
	if o.Filled {
		return nil, fmt.Errorf("%w: %s", ErrOrderAlreadyFilled, orderAddr.Hex())
	}
	if now := e.clock.CurrentTick(); now > o.ExpirationTick {
		return nil, fmt.Errorf("%w: expiration %d, current tick %d", ErrOrderExpired, o.ExpirationTick, now)
	}

	vaultAuth := o.VaultAuthority()
	err := e.ledger.ExecuteSwap(
		// (a) taker pays the maker the wanted asset, directly.
		ledger.Leg{Kind: o.Direction.Wanted(), From: taker, To: o.Maker, Amount: o.Amount},
		// (b) the vault releases the escrowed asset to the taker.
		ledger.Leg{Kind: o.Direction.Escrowed(), From: vaultAuth.Vault, To: taker, Amount: o.Amount, VaultAuth: &vaultAuth},
	)
	if err != nil {
		return nil, err
	}

	// The swap has committed; the record mutation cannot veto it. Failures
	// from here on are logged like the ones in destroy.
	if err := e.orders.MarkFilled(orderAddr); err != nil {
		e.log.Errorw("order_mark_filled_failed", "order", orderAddr.Hex(), "err", err)
	}
	o.Filled = true
	e.destroy(o)

	e.events.Append(events.OrderFilled{
		Order:     orderAddr,
		Maker:     o.Maker,
		Taker:     taker,
		Amount:    o.Amount,
		Direction: o.Direction.String(),
	})
	e.log.Infow("order_filled",
		"order", orderAddr.Hex(),
		"maker", o.Maker.Hex(),
		"taker", taker.Hex(),
		"amount", o.Amount,
		"direction", o.Direction.String())

	return o, nil
}

// Cancel unwinds an unfilled order: only the maker may call it, and there is
// deliberately no expiration check. An expired order is fillable by nobody
// but stays cancellable by its maker indefinitely.
func (e *Engine) Cancel(orderAddr, caller common.Address) (*Order, error) {
	mu := e.lockFor(orderAddr)
	mu.Lock()
	defer mu.Unlock()

	o, ok := e.orders.Get(orderAddr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderAddr.Hex())
	}
	if caller != o.Maker {
		return nil, fmt.Errorf("%w: caller %s", ErrUnauthorized, caller.Hex())
	}
	if o.Filled {
		return nil, fmt.Errorf("%w: %s", ErrOrderAlreadyFilled, orderAddr.Hex())
	}

	vaultAuth := o.VaultAuthority()
	if err := e.ledger.VaultTransfer(vaultAuth, o.Direction.Escrowed(), o.Maker, o.Amount); err != nil {
		return nil, err
	}

	e.destroy(o)

	e.events.Append(events.OrderCancelled{
		Order:     orderAddr,
		Maker:     o.Maker,
		Amount:    o.Amount,
		Direction: o.Direction.String(),
	})
	e.log.Infow("order_cancelled",
		"order", orderAddr.Hex(),
		"maker", o.Maker.Hex(),
		"amount", o.Amount,
		"direction", o.Direction.String())

	return o, nil
}

// destroy reclaims a settled order: the record is deleted and both
// engine-controlled accounts close, refunding the deposit to the maker.
// Failures here are logged, not returned: the trade itself has committed.
func (e *Engine) destroy(o *Order) {
	if err := e.orders.Delete(o.Address); err != nil {
		e.log.Errorw("order_delete_failed", "order", o.Address.Hex(), "err", err)
	}
	if _, err := e.ledger.CloseVault(o.VaultAuthority(), o.Maker); err != nil {
		e.log.Errorw("vault_close_failed", "order", o.Address.Hex(), "err", err)
	}
	if _, err := e.ledger.CloseVault(o.RecordAuthority(), o.Maker); err != nil {
		e.log.Errorw("record_close_failed", "order", o.Address.Hex(), "err", err)
	}
}

// discardVault closes an empty, just-registered vault after a failed create.
func (e *Engine) discardVault(auth ledger.VaultAuthority, refundTo common.Address) {
	if _, err := e.ledger.CloseVault(auth, refundTo); err != nil {
		e.log.Errorw("vault_discard_failed", "vault", auth.Vault.Hex(), "err", err)
	}
}

// unwindCreate reverses a funded create whose record write failed: escrowed
// funds return to the maker and both engine accounts close.
func (e *Engine) unwindCreate(o *Order) {
	if err := e.ledger.VaultTransfer(o.VaultAuthority(), o.Direction.Escrowed(), o.Maker, o.Amount); err != nil {
		e.log.Errorw("create_unwind_failed", "order", o.Address.Hex(), "err", err)
	}
	e.discardVault(o.VaultAuthority(), o.Maker)
	e.discardVault(o.RecordAuthority(), o.Maker)
}
