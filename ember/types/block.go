// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"encoding/json"

	"github.com/emberchain/ember/lib/common"
)

// Block is a header and body pair.
type Block struct {
	Header Header `json:"header"`
	Body   Body   `json:"body"`
}

// NewBlock returns a new Block.
func NewBlock(header Header, body Body) Block {
	return Block{
		Header: header,
		Body:   body,
	}
}

// Encode returns the JSON encoding of the block, used for gossip transport.
func (b *Block) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBlock decodes a gossiped block.
func DecodeBlock(in []byte) (*Block, error) {
	block := new(Block)
	if err := json.Unmarshal(in, block); err != nil {
		return nil, err
	}
	return block, nil
}

// Hash returns the block's header hash.
func (b *Block) Hash() common.Hash {
	return b.Header.Hash()
}

// DeepCopy returns a copy of the block.
func (b *Block) DeepCopy() Block {
	body := make(Body, len(b.Body))
	copy(body, b.Body)
	return Block{
		Header: *b.Header.DeepCopy(),
		Body:   body,
	}
}

// ExtrinsicsRoot computes the root commitment over a body. It hashes the
// concatenation of the extrinsic hashes; the runtime's own trie commitment
// is out of scope here.
func ExtrinsicsRoot(body Body) common.Hash {
	buf := make([]byte, 0, len(body)*32)
	for _, ext := range body {
		h := ext.Hash()
		buf = append(buf, h.ToBytes()...)
	}
	return common.MustBlake2bHash(buf)
}
