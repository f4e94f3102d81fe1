// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlake2bHash(t *testing.T) {
	a, err := Blake2bHash([]byte("ember"))
	require.NoError(t, err)
	require.False(t, a.IsEmpty())

	b := MustBlake2bHash([]byte("ember"))
	require.True(t, a.Equal(b))
	require.NotEqual(t, a, MustBlake2bHash([]byte("Ember")))
}

func TestHash_HexRoundTrip(t *testing.T) {
	hash := MustBlake2bHash([]byte("ember"))

	parsed, err := HexToHash(hash.String())
	require.NoError(t, err)
	require.Equal(t, hash, parsed)

	_, err = HexToHash("0xzz")
	require.Error(t, err)
	_, err = HexToHash("0x0102")
	require.Error(t, err)
}

func TestHash_Cmp(t *testing.T) {
	low := Hash{0x01}
	high := Hash{0x02}

	require.Equal(t, -1, low.Cmp(high))
	require.Equal(t, 1, high.Cmp(low))
	require.Equal(t, 0, low.Cmp(low))
}

func TestHash_JSON(t *testing.T) {
	hash := MustBlake2bHash([]byte("ember"))

	enc, err := json.Marshal(hash)
	require.NoError(t, err)

	var decoded Hash
	require.NoError(t, json.Unmarshal(enc, &decoded))
	require.Equal(t, hash, decoded)
}

func TestHexToBytes(t *testing.T) {
	data := []byte{0xde, 0xad, 0xbe, 0xef}
	require.Equal(t, "0xdeadbeef", BytesToHex(data))

	decoded, err := HexToBytes("0xdeadbeef")
	require.NoError(t, err)
	require.Equal(t, data, decoded)

	_, err = HexToBytes("deadbeef")
	require.Error(t, err)
}
