// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package author

import (
	"encoding/binary"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/crypto"
)

// SlotClaim is the ephemeral proof of authoring eligibility for one slot.
// It is derived deterministically from the epoch randomness, the slot
// number and the authority key, and is never persisted beyond the slot.
type SlotClaim struct {
	Slot           uint64
	AuthorityIndex uint32
	Primary        bool
}

// ClaimSlot computes the local authority's claim for the given slot, or
// nil when the authority holds no claim. Every node computes identical
// claims for identical inputs.
func ClaimSlot(randomness common.Hash, slot uint64, set *types.AuthoritySet,
	authorityIndex uint32) *SlotClaim {
	if int(authorityIndex) >= len(set.Authorities) {
		return nil
	}
	auth := set.Authorities[authorityIndex]

	if primaryScore(randomness, slot, auth.Key) < primaryThreshold(auth.Weight, set.TotalWeight()) {
		return &SlotClaim{Slot: slot, AuthorityIndex: authorityIndex, Primary: true}
	}

	if secondaryIndex(randomness, slot, uint64(len(set.Authorities))) == authorityIndex {
		return &SlotClaim{Slot: slot, AuthorityIndex: authorityIndex}
	}

	return nil
}

// HoldsClaim reports whether the authority at the given index holds any
// claim for the slot. Used by the verifier on inbound headers.
func HoldsClaim(randomness common.Hash, slot uint64, set *types.AuthoritySet,
	authorityIndex uint32) bool {
	return ClaimSlot(randomness, slot, set, authorityIndex) != nil
}

// primaryScore hashes (epoch randomness, slot number, authority key) into
// a 64-bit lottery ticket.
func primaryScore(randomness common.Hash, slot uint64, key crypto.PublicKey) uint64 {
	buf := make([]byte, 0, 72)
	buf = append(buf, randomness.ToBytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, slot)
	buf = append(buf, key.Encode()...)

	h := common.MustBlake2bHash(buf)
	return binary.LittleEndian.Uint64(h[:8])
}

// primaryThreshold scales the winning range by the authority's share of
// the total weight. The 1/2 factor keeps the expected number of primary
// authors per slot below one.
func primaryThreshold(weight, total uint64) uint64 {
	if total == 0 {
		return 0
	}
	return (^uint64(0) / (2 * total)) * weight
}

// secondaryIndex picks the slot's fallback author round-robin style from
// the epoch randomness, so every slot has exactly one eligible secondary.
func secondaryIndex(randomness common.Hash, slot uint64, numAuthorities uint64) uint32 {
	buf := make([]byte, 0, 40)
	buf = append(buf, randomness.ToBytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, slot)

	h := common.MustBlake2bHash(buf)
	return uint32(binary.LittleEndian.Uint64(h[:8]) % numAuthorities)
}
