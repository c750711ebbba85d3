package signer

import (
	"errors"
	"testing"
)

const (
	testHexKey   = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

func TestFromSeed_DevURI(t *testing.T) {
	s, err := FromSeed("//Alice")
	if err != nil {
		t.Fatalf("FromSeed failed: %v", err)
	}
	if s.Address() != "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY" {
		t.Errorf("unexpected address %s", s.Address())
	}
	if s.PublicKey() != "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d" {
		t.Errorf("unexpected public key %s", s.PublicKey())
	}
}

func TestFromSeed_HexKey(t *testing.T) {
	a, err := FromSeed(testHexKey)
	if err != nil {
		t.Fatalf("FromSeed failed: %v", err)
	}
	b, err := FromSeed(testHexKey)
	if err != nil {
		t.Fatalf("FromSeed failed: %v", err)
	}
	if a.Address() == "" || a.Address() != b.Address() {
		t.Errorf("hex secret derivation is not stable: %q vs %q", a.Address(), b.Address())
	}
}

func TestFromSeed_Mnemonic(t *testing.T) {
	a, err := FromSeed(testMnemonic)
	if err != nil {
		t.Fatalf("FromSeed failed: %v", err)
	}
	b, err := FromSeed(testMnemonic)
	if err != nil {
		t.Fatalf("FromSeed failed: %v", err)
	}
	if a.Address() != b.Address() {
		t.Errorf("mnemonic derivation is not stable: %s vs %s", a.Address(), b.Address())
	}

	derived, err := FromSeed(testMnemonic + "//relayer")
	if err != nil {
		t.Fatalf("FromSeed with derivation path failed: %v", err)
	}
	if derived.Address() == a.Address() {
		t.Error("derivation path should change the account")
	}
}

func TestFromSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{"bad hex", "0xnothex"},
		{"short hex", "0x4c08"},
		{"bad checksum", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromSeed(tt.seed); !errors.Is(err, ErrInvalidSeed) {
				t.Errorf("expected ErrInvalidSeed, got %v", err)
			}
		})
	}

	if _, err := FromSeed("  "); !errors.Is(err, ErrEmptySeed) {
		t.Errorf("expected ErrEmptySeed, got %v", err)
	}
}

func TestKeyringPair_IsACopy(t *testing.T) {
	s, err := FromSeed("//Bob")
	if err != nil {
		t.Fatal(err)
	}
	pair := s.KeyringPair()
	pair.Address = "changed"
	if s.Address() == "changed" {
		t.Error("KeyringPair must not expose the signer's state")
	}
}
