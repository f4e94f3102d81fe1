// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"github.com/emberchain/ember/lib/common"
)

// Extrinsic is an opaque transaction body. Its interpretation belongs to the
// active runtime variant; the node only hashes and transports it.
type Extrinsic []byte

// NewExtrinsic creates a new Extrinsic given a byte slice.
func NewExtrinsic(e []byte) Extrinsic {
	return Extrinsic(e)
}

// Hash returns the blake2b hash of the extrinsic.
func (e Extrinsic) Hash() common.Hash {
	return common.MustBlake2bHash(e)
}

// String returns the 0x-prefixed hex representation.
func (e Extrinsic) String() string {
	return common.BytesToHex(e)
}

// Body is the extrinsics portion of a block.
type Body []Extrinsic

// NewBody returns a Body from a slice of extrinsics.
func NewBody(exts []Extrinsic) *Body {
	body := Body(exts)
	return &body
}

// Extrinsics returns the body's extrinsics.
func (b *Body) Extrinsics() []Extrinsic {
	if b == nil {
		return nil
	}
	return []Extrinsic(*b)
}

// HasExtrinsic returns true if the body contains the target extrinsic.
func (b *Body) HasExtrinsic(target Extrinsic) bool {
	targetHash := target.Hash()
	for _, ext := range b.Extrinsics() {
		if ext.Hash() == targetHash {
			return true
		}
	}
	return false
}
