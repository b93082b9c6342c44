package escrow

import (
	"encoding/json"
	"fmt"

	"github.com/swaplabs/swapd/pkg/ledger"
)

// Direction selects which asset kind the maker escrows and which the filler
// must deliver. It is a closed two-variant type; every use site switches
// exhaustively rather than range-checking an integer.
type Direction uint8

const (
	// SellToken: maker escrows the tracked token, wants native in return.
	// Wire value 0.
	SellToken Direction = iota
	// SellNative: maker escrows native units, wants the token in return.
	// Wire value 1.
	SellNative
)

func (d Direction) Valid() bool {
	switch d {
	case SellToken, SellNative:
		return true
	default:
		return false
	}
}

// Escrowed returns the asset kind the maker locks in the vault.
func (d Direction) Escrowed() ledger.AssetKind {
	switch d {
	case SellToken:
		return ledger.Token
	case SellNative:
		return ledger.Native
	default:
		panic(fmt.Sprintf("invalid direction %d", d))
	}
}

// Wanted returns the asset kind the taker must deliver to the maker.
func (d Direction) Wanted() ledger.AssetKind {
	switch d {
	case SellToken:
		return ledger.Native
	case SellNative:
		return ledger.Token
	default:
		panic(fmt.Sprintf("invalid direction %d", d))
	}
}

func (d Direction) String() string {
	switch d {
	case SellToken:
		return "sell_token"
	case SellNative:
		return "sell_native"
	default:
		return "invalid"
	}
}

// ParseDirection accepts the wire encoding (0/1) and the symbolic names.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "0", "sell_token":
		return SellToken, nil
	case "1", "sell_native":
		return SellNative, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
}

func (d Direction) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, d)
	}
	return json.Marshal(d.String())
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDirection(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
