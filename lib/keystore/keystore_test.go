// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package keystore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/lib/crypto"
	"github.com/emberchain/ember/lib/crypto/ed25519"
)

func TestBasicKeystore_InsertAndGet(t *testing.T) {
	ks := NewBasicKeystore(AuthName, crypto.Ed25519Type)
	require.Equal(t, AuthName, ks.Name())
	require.Equal(t, crypto.Ed25519Type, ks.Type())
	require.Equal(t, 0, ks.Size())

	kp, err := ed25519.GenerateKeypair()
	require.NoError(t, err)
	require.NoError(t, ks.Insert(kp))

	require.Equal(t, 1, ks.Size())
	require.Equal(t, kp, ks.GetKeypair(kp.Public()))
	require.Len(t, ks.Keypairs(), 1)
	require.Len(t, ks.PublicKeys(), 1)
}

func TestBasicKeystore_GetMissing(t *testing.T) {
	ks := NewBasicKeystore(AuthName, crypto.Ed25519Type)

	kp, err := ed25519.GenerateKeypair()
	require.NoError(t, err)
	require.Nil(t, ks.GetKeypair(kp.Public()))
}

func TestGlobalKeystore_GetKeystore(t *testing.T) {
	gks := NewGlobalKeystore()

	ks, err := gks.GetKeystore([]byte("auth"))
	require.NoError(t, err)
	require.Equal(t, AuthName, ks.Name())

	ks, err = gks.GetKeystore([]byte("fin"))
	require.NoError(t, err)
	require.Equal(t, FinName, ks.Name())

	_, err = gks.GetKeystore([]byte("nope"))
	require.ErrorIs(t, err, ErrInvalidKeystoreName)
}

func TestKeyring_Deterministic(t *testing.T) {
	a, err := NewKeyring()
	require.NoError(t, err)
	b, err := NewKeyring()
	require.NoError(t, err)

	require.Len(t, a.Keys, 6)
	for i := range a.Keys {
		require.Equal(t, a.Keys[i].Public().Hex(), b.Keys[i].Public().Hex())
	}
	require.NotEqual(t, a.Alice().Public().Hex(), a.Bob().Public().Hex())
}

func TestLoadKeyring(t *testing.T) {
	gks := NewGlobalKeystore()
	require.NoError(t, LoadKeyring("alice", gks))

	require.Equal(t, 1, gks.Auth.Size())
	require.Equal(t, 1, gks.Fin.Size())

	kr, err := NewKeyring()
	require.NoError(t, err)
	require.Equal(t, kr.Alice().Public().Hex(), gks.Auth.Keypairs()[0].Public().Hex())
}

func TestLoadKeyring_UnknownAccount(t *testing.T) {
	gks := NewGlobalKeystore()
	require.ErrorIs(t, LoadKeyring("mallory", gks), ErrInvalidKeystoreName)
}

func TestLoadMnemonic(t *testing.T) {
	const mnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"

	gks := NewGlobalKeystore()
	require.NoError(t, LoadMnemonic(mnemonic, gks))
	require.Equal(t, 1, gks.Auth.Size())
	require.Equal(t, 1, gks.Fin.Size())

	// derivation is deterministic
	other := NewGlobalKeystore()
	require.NoError(t, LoadMnemonic(mnemonic, other))
	require.Equal(t,
		gks.Auth.Keypairs()[0].Public().Hex(),
		other.Auth.Keypairs()[0].Public().Hex())
}

func TestLoadMnemonic_Invalid(t *testing.T) {
	gks := NewGlobalKeystore()
	err := LoadMnemonic("not a valid mnemonic phrase", gks)
	require.Error(t, err)
	require.Equal(t, 0, gks.Auth.Size())
}
