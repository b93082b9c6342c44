package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind selects which of the two tracked asset classes a transfer moves.
type AssetKind uint8

const (
	// Native is the chain's base balance unit. Every account holds one.
	Native AssetKind = iota
	// Token is the single ledger-tracked fungible token. Accounts hold it
	// only after opening a token sub-account for the configured mint.
	Token
)

func (k AssetKind) String() string {
	switch k {
	case Native:
		return "native"
	case Token:
		return "token"
	default:
		return "unknown"
	}
}

func (k AssetKind) Valid() bool {
	return k == Native || k == Token
}

// TokenAccount tracks an account's balance of one fungible token mint
type TokenAccount struct {
	Mint    string `json:"mint"`
	Balance uint64 `json:"balance"`
}

// Account is a ledger entry addressed by a 20-byte identity. The native
// balance always exists; the token sub-account is optional and mint-tagged.
type Account struct {
	Address       common.Address `json:"address"`
	NativeBalance uint64         `json:"nativeBalance"`
	Token         *TokenAccount  `json:"token,omitempty"`

	// VaultSalt marks the account as an engine-controlled vault. When set,
	// outgoing transfers require a VaultAuthority carrying the same salt;
	// the account's own authority is void.
	VaultSalt *uint8 `json:"vaultSalt,omitempty"`
}

func NewAccount(addr common.Address) *Account {
	return &Account{Address: addr}
}

// BalanceOf returns the account's balance of the given kind.
// A missing token sub-account reads as zero.
func (a *Account) BalanceOf(kind AssetKind) uint64 {
	switch kind {
	case Native:
		return a.NativeBalance
	case Token:
		if a.Token == nil {
			return 0
		}
		return a.Token.Balance
	default:
		return 0
	}
}

func (a *Account) clone() *Account {
	c := *a
	if a.Token != nil {
		tok := *a.Token
		c.Token = &tok
	}
	if a.VaultSalt != nil {
		salt := *a.VaultSalt
		c.VaultSalt = &salt
	}
	return &c
}

// Validate checks account invariants
func (a *Account) Validate() error {
	if a.Token != nil && a.Token.Mint == "" {
		return fmt.Errorf("token sub-account with empty mint on %s", a.Address.Hex())
	}
	return nil
}
