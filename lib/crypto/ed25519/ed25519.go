// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package ed25519

import (
	ed25519 "crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/crypto"

	bip39 "github.com/cosmos/go-bip39"
)

// PublicKeyLength is the expected public key length.
const PublicKeyLength = ed25519.PublicKeySize

// SignatureLength is the expected signature length.
const SignatureLength = ed25519.SignatureSize

var errInvalidKeyLength = errors.New("cannot create public key: input is not 32 bytes")

// Keypair is an ed25519 public-private keypair.
type Keypair struct {
	public  *PublicKey
	private *PrivateKey
}

// PublicKey is an ed25519 public key.
type PublicKey ed25519.PublicKey

// PrivateKey is an ed25519 private key.
type PrivateKey ed25519.PrivateKey

// GenerateKeypair returns a new ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	pubKey := PublicKey(pub)
	privKey := PrivateKey(priv)
	return &Keypair{
		public:  &pubKey,
		private: &privKey,
	}, nil
}

// NewKeypair returns an ed25519 Keypair given an ed25519 private key.
func NewKeypair(priv ed25519.PrivateKey) *Keypair {
	pubKey := PublicKey(priv.Public().(ed25519.PublicKey))
	privKey := PrivateKey(priv)
	return &Keypair{
		public:  &pubKey,
		private: &privKey,
	}
}

// NewKeypairFromSeed generates an ed25519 keypair from a 32 byte seed.
// The same seed always yields the same keypair.
func NewKeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("cannot generate key from seed: seed is not %d bytes long", ed25519.SeedSize)
	}
	return NewKeypair(ed25519.NewKeyFromSeed(seed)), nil
}

// NewKeypairFromMnemonic returns a keypair derived from a bip39 mnemonic.
func NewKeypairFromMnemonic(mnemonic, password string) (*Keypair, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, password)
	if err != nil {
		return nil, fmt.Errorf("generating seed from mnemonic: %w", err)
	}
	return NewKeypairFromSeed(seed[:ed25519.SeedSize])
}

// NewPublicKey returns an ed25519 public key from the input bytes.
func NewPublicKey(in []byte) (*PublicKey, error) {
	if len(in) != PublicKeyLength {
		return nil, errInvalidKeyLength
	}

	pub := PublicKey(ed25519.PublicKey(in))
	return &pub, nil
}

// Verify checks the signature against the message and public key.
func Verify(pub *PublicKey, msg, sig []byte) (bool, error) {
	return pub.Verify(msg, sig)
}

// Type returns the ed25519 scheme identifier.
func (kp *Keypair) Type() crypto.KeyType { return crypto.Ed25519Type }

// Sign signs the message using the keypair's private key.
func (kp *Keypair) Sign(msg []byte) ([]byte, error) {
	return kp.private.Sign(msg)
}

// Public returns the keypair's public key.
func (kp *Keypair) Public() crypto.PublicKey {
	return kp.public
}

// Private returns the keypair's private key.
func (kp *Keypair) Private() crypto.PrivateKey {
	return kp.private
}

// Verify checks the signature against the message.
func (k *PublicKey) Verify(msg, sig []byte) (bool, error) {
	if len(sig) != SignatureLength {
		return false, fmt.Errorf("%w: signature is not %d bytes",
			crypto.ErrSignatureVerificationFailed, SignatureLength)
	}
	return ed25519.Verify(ed25519.PublicKey(*k), msg, sig), nil
}

// Encode returns the raw public key bytes.
func (k *PublicKey) Encode() []byte {
	return []byte(ed25519.PublicKey(*k))
}

// Decode sets the public key from the input bytes.
func (k *PublicKey) Decode(in []byte) error {
	if len(in) != PublicKeyLength {
		return errInvalidKeyLength
	}
	*k = PublicKey(ed25519.PublicKey(in))
	return nil
}

// Hex returns the 0x-prefixed hex representation of the public key.
func (k *PublicKey) Hex() string {
	return common.BytesToHex(k.Encode())
}

// Sign signs the message using the private key.
func (k *PrivateKey) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(ed25519.PrivateKey(*k), msg), nil
}

// Public returns the public key corresponding to this private key.
func (k *PrivateKey) Public() (crypto.PublicKey, error) {
	kp := NewKeypair(ed25519.PrivateKey(*k))
	return kp.Public(), nil
}

// Encode returns the raw private key bytes.
func (k *PrivateKey) Encode() []byte {
	return []byte(ed25519.PrivateKey(*k))
}

// Decode sets the private key from the input bytes.
func (k *PrivateKey) Decode(in []byte) error {
	if len(in) != ed25519.PrivateKeySize {
		return fmt.Errorf("cannot create private key: input is not %d bytes", ed25519.PrivateKeySize)
	}
	*k = PrivateKey(ed25519.PrivateKey(in))
	return nil
}
