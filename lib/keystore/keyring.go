// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package keystore

import (
	"fmt"

	"github.com/emberchain/ember/lib/crypto"
	"github.com/emberchain/ember/lib/crypto/ed25519"
)

// Well-known development accounts. Seeds are the blake2b-independent fixed
// strings used by the dev chain spec; never use these outside development.
var devAccounts = []string{
	"alice", "bob", "charlie", "dave", "eve", "ferdie",
}

// Keyring holds the well-known development keypairs.
type Keyring struct {
	KeyAlice   *ed25519.Keypair
	KeyBob     *ed25519.Keypair
	KeyCharlie *ed25519.Keypair
	KeyDave    *ed25519.Keypair
	KeyEve     *ed25519.Keypair
	KeyFerdie  *ed25519.Keypair

	Keys []*ed25519.Keypair
}

// NewKeyring returns an initialised development keyring. Key derivation is
// deterministic so every dev node computes the same authority keys.
func NewKeyring() (*Keyring, error) {
	kr := new(Keyring)
	kr.Keys = make([]*ed25519.Keypair, len(devAccounts))

	for i, name := range devAccounts {
		seed := make([]byte, 32)
		copy(seed, fmt.Sprintf("//%s", name))

		kp, err := ed25519.NewKeypairFromSeed(seed)
		if err != nil {
			return nil, fmt.Errorf("deriving dev key %q: %w", name, err)
		}
		kr.Keys[i] = kp
	}

	kr.KeyAlice = kr.Keys[0]
	kr.KeyBob = kr.Keys[1]
	kr.KeyCharlie = kr.Keys[2]
	kr.KeyDave = kr.Keys[3]
	kr.KeyEve = kr.Keys[4]
	kr.KeyFerdie = kr.Keys[5]
	return kr, nil
}

// Alice returns alice's keypair.
func (kr *Keyring) Alice() crypto.Keypair { return kr.KeyAlice }

// Bob returns bob's keypair.
func (kr *Keyring) Bob() crypto.Keypair { return kr.KeyBob }

// Charlie returns charlie's keypair.
func (kr *Keyring) Charlie() crypto.Keypair { return kr.KeyCharlie }

// LoadKeyring inserts the named dev account's keypair into both the
// authoring and finality keystores.
func LoadKeyring(key string, ks *GlobalKeystore) error {
	kr, err := NewKeyring()
	if err != nil {
		return err
	}

	for i, name := range devAccounts {
		if name != key {
			continue
		}

		if err := ks.Auth.Insert(kr.Keys[i]); err != nil {
			return err
		}
		return ks.Fin.Insert(kr.Keys[i])
	}

	return fmt.Errorf("%w: %q", ErrInvalidKeystoreName, key)
}

// LoadMnemonic derives a keypair from a bip39 mnemonic phrase and inserts
// it into both the authoring and finality keystores.
func LoadMnemonic(mnemonic string, ks *GlobalKeystore) error {
	kp, err := ed25519.NewKeypairFromMnemonic(mnemonic, "")
	if err != nil {
		return fmt.Errorf("deriving key from mnemonic: %w", err)
	}

	if err := ks.Auth.Insert(kp); err != nil {
		return err
	}
	return ks.Fin.Insert(kp)
}
