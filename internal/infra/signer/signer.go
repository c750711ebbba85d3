// Package signer derives the sr25519 relayer account that signs target extrinsics.
package signer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SS58Network is the generic Substrate address format.
const SS58Network uint16 = 42

var (
	// ErrEmptySeed is returned when no account seed is configured.
	ErrEmptySeed = errors.New("account seed is empty")
	// ErrInvalidSeed is returned for a seed that is neither a key, a mnemonic nor a dev uri.
	ErrInvalidSeed = errors.New("invalid account seed")
)

// Signer holds the relayer account key pair.
type Signer struct {
	pair signature.KeyringPair
}

// FromSeed accepts a 0x-prefixed 32 byte mini secret, a BIP-39 mnemonic or a
// development uri such as //Alice. Mnemonics and secrets may carry a
// derivation path ("//hard/soft") and a password ("///password").
func FromSeed(seed string) (*Signer, error) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return nil, ErrEmptySeed
	}

	secret, _, _ := strings.Cut(seed, "/")
	secret = strings.TrimSpace(secret)
	switch {
	case secret == "":
		// dev uri on the well-known development phrase
	case strings.HasPrefix(secret, "0x"):
		raw, err := hexutil.Decode(secret)
		if err != nil {
			return nil, fmt.Errorf("%w: hex secret: %w", ErrInvalidSeed, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("%w: hex secret is %d bytes, want 32", ErrInvalidSeed, len(raw))
		}
	default:
		if !bip39.IsMnemonicValid(secret) {
			return nil, fmt.Errorf("%w: mnemonic checksum or word list mismatch", ErrInvalidSeed)
		}
	}

	pair, err := signature.KeyringPairFromSecret(seed, SS58Network)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	return &Signer{pair: pair}, nil
}

// KeyringPair returns the pair used to sign extrinsics.
func (s *Signer) KeyringPair() *signature.KeyringPair {
	pair := s.pair
	return &pair
}

// Address is the SS58 address of the account.
func (s *Signer) Address() string {
	return s.pair.Address
}

// PublicKey is the hex encoded sr25519 public key.
func (s *Signer) PublicKey() string {
	return hexutil.Encode(s.pair.PublicKey)
}
