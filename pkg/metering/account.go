package metering

import "github.com/ethereum/go-ethereum/common"

// Account is a per-owner metered balance used to pay for batch usage.
// It never touches escrow state; the two systems only share a process.
type Account struct {
	Owner      common.Address `json:"owner"`
	Balance    uint64         `json:"balance"`
	TotalSpent uint64         `json:"totalSpent"`
	MatchCount uint64         `json:"matchCount"`
	Active     bool           `json:"active"`
}

func NewAccount(owner common.Address) *Account {
	return &Account{Owner: owner}
}

func (a *Account) clone() *Account {
	c := *a
	return &c
}
