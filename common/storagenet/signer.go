package storagenet

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs data items with a secp256k1 key using Ethereum personal-sign.
type Signer struct {
	key     *ecdsa.PrivateKey
	owner   []byte
	address common.Address
}

// NewSigner parses a hex private key, with or without a 0x prefix.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		owner:   crypto.FromECDSAPub(&key.PublicKey),
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Owner returns the 65-byte uncompressed public key.
func (s *Signer) Owner() []byte {
	return s.owner
}

// Address returns the account address in 0x-prefixed hex.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// Key exposes the private key to the funding transfer.
func (s *Signer) Key() *ecdsa.PrivateKey {
	return s.key
}

// Sign returns a 65-byte r||s||v signature over the EIP-191 hash of message,
// with v in {27, 28}.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
