package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema
// Design principles:
// 1. Prefix-based for range scans (warm caches at startup)
// 2. Lexicographic ordering for the append-only event journal
// 3. Account address as primary key for ownership

const (
	prefixAccount = "acc:"   // ledger account state
	prefixOrder   = "ord:"   // escrow order records
	prefixMeter   = "meter:" // metering service balances
	prefixEvent   = "evt:"   // event journal
	prefixMeta    = "meta:"  // node metadata (clock genesis)
)

// AccountKey returns the key for a ledger account.
// Format: "acc:{address}"
func AccountKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixAccount, addr.Hex()))
}

// AccountPrefix covers all ledger accounts.
func AccountPrefix() []byte { return []byte(prefixAccount) }

// OrderKey returns the key for an escrow order record.
// The order's derived address is its identity, so it is also the key.
// Format: "ord:{orderAddress}"
func OrderKey(orderAddr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixOrder, orderAddr.Hex()))
}

// OrderPrefix covers all order records.
func OrderPrefix() []byte { return []byte(prefixOrder) }

// MeterKey returns the key for a metering account.
// Format: "meter:{owner}"
func MeterKey(owner common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixMeter, owner.Hex()))
}

// MeterPrefix covers all metering accounts.
func MeterPrefix() []byte { return []byte(prefixMeter) }

// EventKey returns the journal key for an event sequence number.
// The sequence is big-endian so journal order equals key order.
// Format: "evt:{seq}"
func EventKey(seq uint64) []byte {
	key := make([]byte, len(prefixEvent)+8)
	copy(key, prefixEvent)
	binary.BigEndian.PutUint64(key[len(prefixEvent):], seq)
	return key
}

// EventPrefix covers the whole event journal.
func EventPrefix() []byte { return []byte(prefixEvent) }

// GenesisKey holds the tick clock's genesis timestamp. Written once on
// first boot so the logical clock survives restarts.
func GenesisKey() []byte { return []byte(prefixMeta + "genesis") }

// KeyUpperBound returns the exclusive upper bound for a prefix scan.
func KeyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
