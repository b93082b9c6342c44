package escrow

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Derivation tags. The order record and its vault are sibling identities
// computed from the same (maker, amount) inputs.
const (
	tagOrder     = "order"
	tagEscrow    = "escrow"
	tagAuthority = "authority"
)

// deriveAddress computes keccak256(tag || maker || amount_le) and takes the
// last 20 bytes, the same shape as an address derived from a public key.
func deriveAddress(tag string, maker common.Address, amount uint64) common.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(tag))
	h.Write(maker.Bytes())
	var amt [8]byte
	binary.LittleEndian.PutUint64(amt[:], amount)
	h.Write(amt[:])
	sum := h.Sum(nil)
	return common.BytesToAddress(sum[12:])
}

// DeriveOrderAddress returns the deterministic identity of an order record.
//
// The derivation uses only (maker, amount), so a maker can hold at most one
// live order of a given size: a second create for the same pair lands on the
// same address and is rejected while the first is live. This is a known,
// deliberate property of the scheme, not an accident.
func DeriveOrderAddress(maker common.Address, amount uint64) common.Address {
	return deriveAddress(tagOrder, maker, amount)
}

// DeriveVaultAddress returns the identity of the vault that holds the
// escrowed asset for (maker, amount).
func DeriveVaultAddress(maker common.Address, amount uint64) common.Address {
	return deriveAddress(tagEscrow, maker, amount)
}

// DeriveAuthoritySalt returns the 8-bit capability salt stored on the order.
// The engine presents it to the ledger to sign as the vault's exclusive
// authority; it is recomputable only from the order's own inputs.
func DeriveAuthoritySalt(maker common.Address, amount uint64) uint8 {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(tagAuthority))
	h.Write(maker.Bytes())
	var amt [8]byte
	binary.LittleEndian.PutUint64(amt[:], amount)
	h.Write(amt[:])
	sum := h.Sum(nil)
	return sum[len(sum)-1]
}
