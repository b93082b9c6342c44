package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var owner = common.HexToAddress("0xAA00000000000000000000000000000000000000")

func TestMemoryLogSequencesAppends(t *testing.T) {
	l := NewMemoryLog()

	l.Append(MeterDeposited{Owner: owner, Amount: 100, NewBalance: 100})
	l.Append(MeterCharged{Owner: owner, Cost: 40, RemainingBalance: 60})
	l.Append(MeterDeposited{Owner: owner, Amount: 10, NewBalance: 70})

	entries := l.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Seq != uint64(i) {
			t.Errorf("entry %d has seq %d", i, e.Seq)
		}
		if e.ID == "" {
			t.Errorf("entry %d missing id", i)
		}
	}

	deposits := l.ByKind("meter_deposited")
	if len(deposits) != 2 {
		t.Errorf("meter_deposited = %d, want 2", len(deposits))
	}
}

func TestFileLogWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	l, err := NewFileLog(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	l.Append(MeterDeposited{Owner: owner, Amount: 100, NewBalance: 100})
	l.Append(MeterWithdrawn{Owner: owner, Amount: 100})
	if err := l.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer f.Close()

	var kinds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry struct {
			Seq  uint64 `json:"seq"`
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("bad journal line: %v", err)
		}
		kinds = append(kinds, entry.Kind)
	}
	if len(kinds) != 2 || kinds[0] != "meter_deposited" || kinds[1] != "meter_withdrawn" {
		t.Errorf("journal kinds = %v", kinds)
	}
}

func TestTeeFansOut(t *testing.T) {
	a := NewMemoryLog()
	b := NewMemoryLog()

	Tee{a, b}.Append(MeterWithdrawn{Owner: owner, Amount: 5})

	if len(a.Entries()) != 1 || len(b.Entries()) != 1 {
		t.Error("tee did not reach every sink")
	}
}
