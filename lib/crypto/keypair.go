// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package crypto

import "errors"

// ErrSignatureVerificationFailed is returned when a signature does not
// verify against the claimed public key.
var ErrSignatureVerificationFailed = errors.New("signature verification failed")

// KeyType is the scheme identifier of a keypair.
type KeyType = string

// Ed25519Type is the ed25519 scheme identifier.
const Ed25519Type KeyType = "ed25519"

// Keypair is a public/private signing pair.
type Keypair interface {
	Type() KeyType
	Sign(msg []byte) ([]byte, error)
	Public() PublicKey
	Private() PrivateKey
}

// PublicKey is the verifying half of a keypair. Raw key material is only
// exposed as its canonical encoding.
type PublicKey interface {
	Verify(msg, sig []byte) (bool, error)
	Encode() []byte
	Decode([]byte) error
	Hex() string
}

// PrivateKey is the signing half of a keypair.
type PrivateKey interface {
	Sign(msg []byte) ([]byte, error)
	Public() (PublicKey, error)
	Encode() []byte
	Decode([]byte) error
}
