// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package ed25519

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	msg := []byte("vote for block 7")
	sig, err := kp.Sign(msg)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)

	pub, ok := kp.Public().(*PublicKey)
	require.True(t, ok)

	ok, err = pub.Verify(msg, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = pub.Verify([]byte("different message"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewKeypairFromSeed(t *testing.T) {
	seed := make([]byte, 32)
	seed[0] = 0x07

	a, err := NewKeypairFromSeed(seed)
	require.NoError(t, err)
	b, err := NewKeypairFromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, a.Public().Encode(), b.Public().Encode())

	_, err = NewKeypairFromSeed([]byte{0x01})
	require.Error(t, err)
}

func TestPublicKeyEncodeDecode(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)

	enc := kp.Public().Encode()
	require.Len(t, enc, PublicKeyLength)

	pub, err := NewPublicKey(enc)
	require.NoError(t, err)
	require.Equal(t, enc, pub.Encode())
	require.Equal(t, kp.Public().Hex(), pub.Hex())

	_, err = NewPublicKey([]byte{0x01})
	require.ErrorIs(t, err, errInvalidKeyLength)
}
