package api

// CreateOrderRequest opens a new escrow order for the maker.
type CreateOrderRequest struct {
	Maker            string `json:"maker"`
	Amount           uint64 `json:"amount"`
	Direction        string `json:"direction"`
	ExpirationTick   uint64 `json:"expirationTick"`
	CounterRecipient string `json:"counterRecipient,omitempty"`
}

// FillOrderRequest settles an open order on behalf of the taker.
type FillOrderRequest struct {
	Taker string `json:"taker"`
}

// CancelOrderRequest unwinds an open order. Caller must be the maker.
type CancelOrderRequest struct {
	Caller string `json:"caller"`
}

// OrderResponse is the wire form of an order record.
type OrderResponse struct {
	Address          string `json:"address"`
	Maker            string `json:"maker"`
	Amount           uint64 `json:"amount"`
	Direction        string `json:"direction"`
	ExpirationTick   uint64 `json:"expirationTick"`
	CreatedTick      uint64 `json:"createdTick"`
	Deposit          uint64 `json:"deposit"`
	Filled           bool   `json:"filled"`
	Vault            string `json:"vault"`
	CounterRecipient string `json:"counterRecipient,omitempty"`
}

// AccountResponse is the wire form of a ledger account.
type AccountResponse struct {
	Address       string `json:"address"`
	NativeBalance uint64 `json:"nativeBalance"`
	TokenMint     string `json:"tokenMint,omitempty"`
	TokenBalance  uint64 `json:"tokenBalance,omitempty"`
	Vault         bool   `json:"vault"`
}

// DepositRequest credits a ledger account or a metered balance.
type DepositRequest struct {
	Kind   string `json:"kind,omitempty"`
	Amount uint64 `json:"amount"`
}

// ChargeRequest debits a usage charge from a metered balance.
type ChargeRequest struct {
	Cost uint64 `json:"cost"`
}

// RecordEventRequest counts one labelled usage event.
type RecordEventRequest struct {
	Label string `json:"label"`
}

// MeterResponse is the wire form of a metered balance account.
type MeterResponse struct {
	Owner      string `json:"owner"`
	Balance    uint64 `json:"balance"`
	TotalSpent uint64 `json:"totalSpent"`
	MatchCount uint64 `json:"matchCount"`
}

// WithdrawResponse reports the amount drained by a full withdrawal.
type WithdrawResponse struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports liveness plus coarse engine state.
type HealthResponse struct {
	Status      string `json:"status"`
	CurrentTick uint64 `json:"currentTick"`
	OpenOrders  int    `json:"openOrders"`
}

// WSSubscribeRequest manages a client's channel subscriptions. Channels are
// "orders", "orders:<maker hex>" and "metering".
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// WSMessage wraps a broadcast event with its kind.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
