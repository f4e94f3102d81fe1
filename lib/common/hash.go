// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package common

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"

	"golang.org/x/crypto/blake2b"
)

// Hash is a 32-byte blake2b digest used to identify blocks, extrinsics
// and chain spec state entries.
type Hash [32]byte

// NewHash casts a byte slice to a Hash, truncating or zero-padding to 32 bytes.
func NewHash(in []byte) (res Hash) {
	copy(res[:], in)
	return res
}

// Blake2bHash returns the blake2b-256 digest of the input.
func Blake2bHash(in []byte) (Hash, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Hash{}, err
	}

	if _, err = h.Write(in); err != nil {
		return Hash{}, err
	}

	return NewHash(h.Sum(nil)), nil
}

// MustBlake2bHash hashes the input and panics on error. blake2b.New256 with
// a nil key cannot fail, so this is safe for in-process hashing.
func MustBlake2bHash(in []byte) Hash {
	h, err := Blake2bHash(in)
	if err != nil {
		panic(err)
	}
	return h
}

// ToBytes returns the hash as a byte slice.
func (h Hash) ToBytes() []byte {
	b := [32]byte(h)
	return b[:]
}

// IsEmpty returns true if the hash is the zero value.
func (h Hash) IsEmpty() bool {
	return h == Hash{}
}

// Equal compares two hashes.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h[:], other[:])
}

// Cmp compares two hashes lexicographically; used as a deterministic
// tie-break between equal-weight chains.
func (h Hash) Cmp(other Hash) int {
	return bytes.Compare(h[:], other[:])
}

// String returns the 0x-prefixed hex representation of the hash.
func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

// Short returns an abbreviated form for logging.
func (h Hash) Short() string {
	const nBytes = 4
	return fmt.Sprintf("0x%x...%x", h[:nBytes], h[len(h)-nBytes:])
}

// MarshalJSON encodes the hash as a 0x-prefixed hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a 0x-prefixed hex string into the hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	dec, err := HexToHash(s)
	if err != nil {
		return err
	}

	*h = dec
	return nil
}

// HexToHash turns a 0x-prefixed hex string into a Hash.
func HexToHash(in string) (Hash, error) {
	b, err := HexToBytes(in)
	if err != nil {
		return Hash{}, err
	}

	if len(b) != 32 {
		return Hash{}, fmt.Errorf("%w: got %d bytes", ErrHashLength, len(b))
	}

	return NewHash(b), nil
}

// MustHexToHash turns a 0x-prefixed hex string into a Hash, panicking on
// malformed input. Only for hardcoded values.
func MustHexToHash(in string) Hash {
	h, err := HexToHash(in)
	if err != nil {
		panic(err)
	}
	return h
}

// HexToBytes turns a 0x-prefixed hex string into a byte slice.
func HexToBytes(in string) ([]byte, error) {
	if len(in) < 2 || in[:2] != "0x" {
		return nil, ErrNoPrefix
	}

	return hex.DecodeString(in[2:])
}

// HashValidator exposes Hash fields to the validator package as their hex
// string form.
func HashValidator(field reflect.Value) interface{} {
	if h, ok := field.Interface().(Hash); ok {
		return h.String()
	}
	return nil
}

// BytesToHex turns a byte slice into a 0x-prefixed hex string.
func BytesToHex(in []byte) string {
	return fmt.Sprintf("0x%x", in)
}
