// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package keystore

import (
	"errors"
	"sync"

	"github.com/emberchain/ember/lib/crypto"
)

var (
	// ErrInvalidKeystoreName is returned when looking up an undefined keystore.
	ErrInvalidKeystoreName = errors.New("invalid keystore name")

	// ErrKeyTypeMismatch is returned when inserting a keypair of the wrong
	// scheme into a typed keystore.
	ErrKeyTypeMismatch = errors.New("keypair type does not match keystore type")
)

// Name identifies a keystore's role.
type Name string

var (
	// AuthName is the block-authoring keystore.
	AuthName Name = "auth"
	// FinName is the finality-voting keystore.
	FinName Name = "fin"
)

// Keystore provides scoped access to signing keys. Raw private key material
// never leaves the keystore; callers obtain Keypair handles and sign through
// them.
type Keystore interface {
	Name() Name
	Type() crypto.KeyType
	Insert(kp crypto.Keypair) error
	Keypairs() []crypto.Keypair
	GetKeypair(pub crypto.PublicKey) crypto.Keypair
	PublicKeys() []crypto.PublicKey
	Size() int
}

// BasicKeystore is an in-memory keystore specialised to one key scheme.
type BasicKeystore struct {
	name Name
	typ  crypto.KeyType

	mu   sync.RWMutex
	keys map[string]crypto.Keypair // hex public key -> keypair
}

// NewBasicKeystore creates a BasicKeystore for the given name and scheme.
func NewBasicKeystore(name Name, typ crypto.KeyType) *BasicKeystore {
	return &BasicKeystore{
		name: name,
		typ:  typ,
		keys: make(map[string]crypto.Keypair),
	}
}

// Name returns the keystore's name.
func (ks *BasicKeystore) Name() Name {
	return ks.name
}

// Type returns the keystore's key scheme.
func (ks *BasicKeystore) Type() crypto.KeyType {
	return ks.typ
}

// Insert adds a keypair to the keystore.
func (ks *BasicKeystore) Insert(kp crypto.Keypair) error {
	if kp.Type() != ks.typ {
		return ErrKeyTypeMismatch
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.keys[kp.Public().Hex()] = kp
	return nil
}

// Keypairs returns all keypairs in the keystore.
func (ks *BasicKeystore) Keypairs() []crypto.Keypair {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	kps := make([]crypto.Keypair, 0, len(ks.keys))
	for _, kp := range ks.keys {
		kps = append(kps, kp)
	}
	return kps
}

// GetKeypair returns the keypair for the given public key, or nil.
func (ks *BasicKeystore) GetKeypair(pub crypto.PublicKey) crypto.Keypair {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.keys[pub.Hex()]
}

// PublicKeys returns the public keys of all keypairs in the keystore.
func (ks *BasicKeystore) PublicKeys() []crypto.PublicKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	pubs := make([]crypto.PublicKey, 0, len(ks.keys))
	for _, kp := range ks.keys {
		pubs = append(pubs, kp.Public())
	}
	return pubs
}

// Size returns the number of keypairs in the keystore.
func (ks *BasicKeystore) Size() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys)
}

// GlobalKeystore holds the keystores used by the node.
type GlobalKeystore struct {
	Auth Keystore
	Fin  Keystore
}

// NewGlobalKeystore returns a new GlobalKeystore.
func NewGlobalKeystore() *GlobalKeystore {
	return &GlobalKeystore{
		Auth: NewBasicKeystore(AuthName, crypto.Ed25519Type),
		Fin:  NewBasicKeystore(FinName, crypto.Ed25519Type),
	}
}

// GetKeystore returns a keystore given its name.
func (k *GlobalKeystore) GetKeystore(name []byte) (Keystore, error) {
	switch Name(name) {
	case AuthName:
		return k.Auth, nil
	case FinName:
		return k.Fin, nil
	default:
		return nil, ErrInvalidKeystoreName
	}
}
