package events

import "github.com/ethereum/go-ethereum/common"

// Event is anything the engine or its collaborators announce to off-engine
// consumers (indexers, relayers). The engine only ever appends; nothing in
// settlement logic reads events back.
type Event interface {
	Kind() string
}

// OrderCreated is emitted once per successful order creation.
type OrderCreated struct {
	Order          common.Address `json:"order"`
	Maker          common.Address `json:"maker"`
	Amount         uint64         `json:"amount"`
	Direction      string         `json:"direction"`
	ExpirationTick uint64         `json:"expirationTick"`

	// CounterRecipient is the maker's receiving identity on the peer
	// network, echoed for relayers. The engine never interprets it.
	CounterRecipient *common.Address `json:"counterRecipient,omitempty"`
}

func (OrderCreated) Kind() string { return "order_created" }

// OrderFilled is emitted once when a taker settles an order.
type OrderFilled struct {
	Order     common.Address `json:"order"`
	Maker     common.Address `json:"maker"`
	Taker     common.Address `json:"taker"`
	Amount    uint64         `json:"amount"`
	Direction string         `json:"direction"`
}

func (OrderFilled) Kind() string { return "order_filled" }

// OrderCancelled is emitted once when a maker unwinds an unfilled order.
type OrderCancelled struct {
	Order     common.Address `json:"order"`
	Maker     common.Address `json:"maker"`
	Amount    uint64         `json:"amount"`
	Direction string         `json:"direction"`
}

func (OrderCancelled) Kind() string { return "order_cancelled" }

// MeterDeposited is emitted by the metering service on deposit.
type MeterDeposited struct {
	Owner      common.Address `json:"owner"`
	Amount     uint64         `json:"amount"`
	NewBalance uint64         `json:"newBalance"`
}

func (MeterDeposited) Kind() string { return "meter_deposited" }

// MeterCharged is emitted when a usage charge is taken.
type MeterCharged struct {
	Owner            common.Address `json:"owner"`
	Cost             uint64         `json:"cost"`
	RemainingBalance uint64         `json:"remainingBalance"`
}

func (MeterCharged) Kind() string { return "meter_charged" }

// MeterWithdrawn is emitted when an owner drains their metered balance.
type MeterWithdrawn struct {
	Owner  common.Address `json:"owner"`
	Amount uint64         `json:"amount"`
}

func (MeterWithdrawn) Kind() string { return "meter_withdrawn" }

// UsageRecorded is emitted when the metering service records a labelled
// usage event for an owner.
type UsageRecorded struct {
	Owner       common.Address `json:"owner"`
	Label       string         `json:"label"`
	TotalEvents uint64         `json:"totalEvents"`
}

func (UsageRecorded) Kind() string { return "usage_recorded" }
