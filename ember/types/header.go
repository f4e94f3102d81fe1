// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/emberchain/ember/lib/common"
)

// SealDigest carries the authoring authority's signature over the header.
type SealDigest struct {
	AuthorityIndex uint32 `json:"authorityIndex"`
	Signature      []byte `json:"signature"`
}

// RelayAnchor commits a collated block to a relay-chain head. Only present
// on blocks built in collator mode; the relay chain supplies ordering and
// finality for the anchored block.
type RelayAnchor struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

// EpochChange announces a new authority set taking effect at the next epoch.
// It is observed by the orchestrator when the carrying block is imported.
type EpochChange struct {
	Epoch       uint64       `json:"epoch"`
	Authorities []*Authority `json:"authorities"`
}

// Header is a block header.
type Header struct {
	ParentHash     common.Hash  `json:"parentHash"`
	Number         uint64       `json:"number"`
	StateRoot      common.Hash  `json:"stateRoot"`
	ExtrinsicsRoot common.Hash  `json:"extrinsicsRoot"`
	Slot           uint64       `json:"slot"`
	Seal           *SealDigest  `json:"seal,omitempty"`
	RelayAnchor    *RelayAnchor `json:"relayAnchor,omitempty"`
	EpochChange    *EpochChange `json:"epochChange,omitempty"`

	hash common.Hash
}

// NewHeader creates a new block header.
func NewHeader(parentHash, stateRoot, extrinsicsRoot common.Hash,
	number, slot uint64) *Header {
	return &Header{
		ParentHash:     parentHash,
		Number:         number,
		StateRoot:      stateRoot,
		ExtrinsicsRoot: extrinsicsRoot,
		Slot:           slot,
	}
}

// signingPayload is the byte string signed by the block author. The seal is
// excluded, everything else is committed to.
func (h *Header) signingPayload() []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, h.ParentHash.ToBytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Number)
	buf = append(buf, h.StateRoot.ToBytes()...)
	buf = append(buf, h.ExtrinsicsRoot.ToBytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Slot)
	if h.RelayAnchor != nil {
		buf = append(buf, h.RelayAnchor.Hash.ToBytes()...)
		buf = binary.LittleEndian.AppendUint64(buf, h.RelayAnchor.Number)
	}
	if h.EpochChange != nil {
		enc, _ := json.Marshal(h.EpochChange)
		buf = append(buf, enc...)
	}
	return buf
}

// SigningPayload returns the bytes an authority signs to seal the header.
func (h *Header) SigningPayload() []byte {
	return h.signingPayload()
}

// Hash returns the blake2b hash of the header, computing and caching it on
// first use. Mutating the header after hashing is a bug.
func (h *Header) Hash() common.Hash {
	if h.hash.IsEmpty() {
		payload := h.signingPayload()
		if h.Seal != nil {
			payload = append(payload, h.Seal.Signature...)
		}
		h.hash = common.MustBlake2bHash(payload)
	}
	return h.hash
}

// DeepCopy returns a copy of the header. The authoring loop copies the parent
// header before building so a concurrent best-block update cannot alter it.
func (h *Header) DeepCopy() *Header {
	cp := &Header{
		ParentHash:     h.ParentHash,
		Number:         h.Number,
		StateRoot:      h.StateRoot,
		ExtrinsicsRoot: h.ExtrinsicsRoot,
		Slot:           h.Slot,
	}
	if h.Seal != nil {
		sig := make([]byte, len(h.Seal.Signature))
		copy(sig, h.Seal.Signature)
		cp.Seal = &SealDigest{AuthorityIndex: h.Seal.AuthorityIndex, Signature: sig}
	}
	if h.RelayAnchor != nil {
		anchor := *h.RelayAnchor
		cp.RelayAnchor = &anchor
	}
	if h.EpochChange != nil {
		auths := make([]*Authority, len(h.EpochChange.Authorities))
		for i, a := range h.EpochChange.Authorities {
			auth := *a
			auths[i] = &auth
		}
		cp.EpochChange = &EpochChange{Epoch: h.EpochChange.Epoch, Authorities: auths}
	}
	return cp
}

// String returns a short description for logging.
func (h *Header) String() string {
	return fmt.Sprintf("number=%d hash=%s parent=%s slot=%d",
		h.Number, h.Hash().Short(), h.ParentHash.Short(), h.Slot)
}
