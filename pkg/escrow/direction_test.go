package escrow

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/swaplabs/swapd/pkg/ledger"
)

func TestDirectionAssetPairing(t *testing.T) {
	if SellToken.Escrowed() != ledger.Token || SellToken.Wanted() != ledger.Native {
		t.Error("sell_token pairing wrong")
	}
	if SellNative.Escrowed() != ledger.Native || SellNative.Wanted() != ledger.Token {
		t.Error("sell_native pairing wrong")
	}
}

func TestParseDirection(t *testing.T) {
	cases := []struct {
		in   string
		want Direction
	}{
		{"0", SellToken},
		{"sell_token", SellToken},
		{"1", SellNative},
		{"sell_native", SellNative},
	}
	for _, c := range cases {
		got, err := ParseDirection(c.in)
		if err != nil {
			t.Errorf("ParseDirection(%q) failed: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseDirection(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseDirection("2"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("err = %v, want ErrInvalidDirection", err)
	}
	if _, err := ParseDirection("buy"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("err = %v, want ErrInvalidDirection", err)
	}
}

func TestDirectionJSON(t *testing.T) {
	data, err := json.Marshal(SellNative)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `"sell_native"` {
		t.Errorf("marshal = %s, want \"sell_native\"", data)
	}

	var d Direction
	if err := json.Unmarshal([]byte(`"sell_token"`), &d); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if d != SellToken {
		t.Errorf("unmarshal = %v, want SellToken", d)
	}

	if err := json.Unmarshal([]byte(`"sideways"`), &d); err == nil {
		t.Error("unmarshal accepted an invalid direction")
	}
	if _, err := json.Marshal(Direction(9)); err == nil {
		t.Error("marshal accepted an invalid direction")
	}
}
