package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when a debited account does not exist.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrAccountExists is returned when creating an account that already exists.
	ErrAccountExists = errors.New("ledger: account already exists")

	// ErrMissingTokenAccount is returned when a token leg touches an account
	// with no token sub-account for the configured mint.
	ErrMissingTokenAccount = errors.New("ledger: missing token account")

	// ErrMintMismatch is returned when an account's token sub-account is
	// configured for a different mint than the engine tracks.
	ErrMintMismatch = errors.New("ledger: token mint mismatch")

	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrArithmeticOverflow is returned when a credit would overflow uint64.
	ErrArithmeticOverflow = errors.New("ledger: arithmetic overflow")

	// ErrInvalidAssetKind is returned for a kind outside the two-variant set.
	ErrInvalidAssetKind = errors.New("ledger: invalid asset kind")

	// ErrVaultAuthority is returned when a vault-authorized leg carries a
	// capability that does not match the vault's registered authority.
	ErrVaultAuthority = errors.New("ledger: vault authority rejected")

	// ErrVaultNotEmpty is returned when closing a vault that still holds tokens.
	ErrVaultNotEmpty = errors.New("ledger: vault not empty")

	// ErrZeroAmount is returned for transfers of nothing.
	ErrZeroAmount = errors.New("ledger: amount must be positive")
)
