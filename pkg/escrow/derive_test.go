package escrow

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDerivationIsDeterministic(t *testing.T) {
	m := common.HexToAddress("0xAA00000000000000000000000000000000000000")

	if DeriveOrderAddress(m, 1_000_000) != DeriveOrderAddress(m, 1_000_000) {
		t.Error("order address not stable across calls")
	}
	if DeriveVaultAddress(m, 1_000_000) != DeriveVaultAddress(m, 1_000_000) {
		t.Error("vault address not stable across calls")
	}
	if DeriveAuthoritySalt(m, 1_000_000) != DeriveAuthoritySalt(m, 1_000_000) {
		t.Error("authority salt not stable across calls")
	}
}

func TestDerivationTagsProduceDistinctIdentities(t *testing.T) {
	m := common.HexToAddress("0xAA00000000000000000000000000000000000000")

	if DeriveOrderAddress(m, 1_000_000) == DeriveVaultAddress(m, 1_000_000) {
		t.Error("order and vault addresses collide for the same inputs")
	}
}

func TestDerivationVariesWithInputs(t *testing.T) {
	m1 := common.HexToAddress("0xAA00000000000000000000000000000000000000")
	m2 := common.HexToAddress("0xBB00000000000000000000000000000000000000")

	if DeriveOrderAddress(m1, 1_000_000) == DeriveOrderAddress(m2, 1_000_000) {
		t.Error("different makers derive the same order address")
	}
	if DeriveOrderAddress(m1, 1_000_000) == DeriveOrderAddress(m1, 1_000_001) {
		t.Error("different amounts derive the same order address")
	}
}

func TestOrderAccessorsMatchDerivation(t *testing.T) {
	m := common.HexToAddress("0xAA00000000000000000000000000000000000000")
	o := &Order{
		Address:       DeriveOrderAddress(m, 42_000_000),
		Maker:         m,
		Amount:        42_000_000,
		AuthoritySalt: DeriveAuthoritySalt(m, 42_000_000),
	}

	if o.VaultAddress() != DeriveVaultAddress(m, 42_000_000) {
		t.Error("VaultAddress does not re-derive from order fields")
	}
	if auth := o.VaultAuthority(); auth.Vault != o.VaultAddress() || auth.Salt != o.AuthoritySalt {
		t.Error("VaultAuthority fields inconsistent")
	}
	if auth := o.RecordAuthority(); auth.Vault != o.Address || auth.Salt != o.AuthoritySalt {
		t.Error("RecordAuthority fields inconsistent")
	}
}
