package escrow

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/swaplabs/swapd/pkg/ledger"
)

// Order is one pending escrow trade. Its address is derived from
// (maker, amount) and doubles as the storage key; the record is destroyed
// when fill or cancel settles it.
type Order struct {
	Address        common.Address `json:"address"`
	Maker          common.Address `json:"maker"`
	Amount         uint64         `json:"amount"`
	Direction      Direction      `json:"direction"`
	ExpirationTick uint64         `json:"expirationTick"`
	Filled         bool           `json:"filled"`

	// AuthoritySalt lets the engine sign as the vault's exclusive
	// authority for exactly this order.
	AuthoritySalt uint8 `json:"authoritySalt"`

	// CreatedTick is the tick the order was accepted at.
	CreatedTick uint64 `json:"createdTick"`

	// Deposit is the creation deposit held at the order address,
	// refunded to the maker on fill or cancel.
	Deposit uint64 `json:"deposit"`

	// CounterRecipient is the maker's receiving identity on the peer
	// network for cross-network trades. Recorded and echoed in events,
	// never interpreted by the engine.
	CounterRecipient *common.Address `json:"counterRecipient,omitempty"`
}

// VaultAddress returns the derived identity of the order's escrow vault.
func (o *Order) VaultAddress() common.Address {
	return DeriveVaultAddress(o.Maker, o.Amount)
}

// VaultAuthority returns the capability for the escrow vault.
func (o *Order) VaultAuthority() ledger.VaultAuthority {
	return ledger.VaultAuthority{Vault: o.VaultAddress(), Salt: o.AuthoritySalt}
}

// RecordAuthority returns the capability for the order record account,
// which holds the creation deposit.
func (o *Order) RecordAuthority() ledger.VaultAuthority {
	return ledger.VaultAuthority{Vault: o.Address, Salt: o.AuthoritySalt}
}

func (o *Order) clone() *Order {
	c := *o
	if o.CounterRecipient != nil {
		addr := *o.CounterRecipient
		c.CounterRecipient = &addr
	}
	return &c
}
