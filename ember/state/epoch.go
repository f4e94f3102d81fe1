// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

// EpochState tracks the authority set and randomness per epoch. The
// orchestrator is the only writer: it advances the epoch when an
// epoch-change event is observed on an imported block.
type EpochState struct {
	mu           sync.RWMutex
	base         *BaseState
	currentEpoch uint64
	sets         map[uint64]*types.AuthoritySet
	randomness   map[uint64]common.Hash
	slotDuration uint64 // milliseconds
	epochLength  uint64 // slots

	// firstSlot anchors epoch numbering: slots are absolute wall-clock
	// numbers, so epoch 0 starts at the slot of the chain's first block.
	firstSlot    uint64
	firstSlotSet bool
}

// NewEpochState returns an EpochState seeded with the epoch-zero authority
// set from the chain spec.
func NewEpochState(base *BaseState, genesisSet *types.AuthoritySet,
	slotDurationMillis, epochLength uint64) (*EpochState, error) {
	if epochLength == 0 {
		return nil, fmt.Errorf("epoch length must be non-zero")
	}

	es := &EpochState{
		base:         base,
		sets:         map[uint64]*types.AuthoritySet{genesisSet.Epoch: genesisSet},
		randomness:   map[uint64]common.Hash{0: seedRandomness(genesisSet)},
		slotDuration: slotDurationMillis,
		epochLength:  epochLength,
	}

	// resume the persisted epoch and slot anchor if this data directory
	// has run before
	if epoch, err := base.LoadEpochIndex(); err == nil {
		es.currentEpoch = epoch
	}
	if slot, err := base.LoadFirstSlot(); err == nil {
		es.firstSlot = slot
		es.firstSlotSet = true
	}
	return es, nil
}

// CurrentEpoch returns the current epoch index.
func (es *EpochState) CurrentEpoch() uint64 {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.currentEpoch
}

// SlotDuration returns the slot duration in milliseconds.
func (es *EpochState) SlotDuration() uint64 {
	return es.slotDuration
}

// EpochLength returns the epoch length in slots.
func (es *EpochState) EpochLength() uint64 {
	return es.epochLength
}

// EpochForSlot returns the epoch index the given slot falls in. Before the
// first block anchors the slot numbering, every slot is in epoch 0.
func (es *EpochState) EpochForSlot(slot uint64) uint64 {
	es.mu.RLock()
	defer es.mu.RUnlock()

	if !es.firstSlotSet || slot < es.firstSlot {
		return 0
	}
	return (slot - es.firstSlot) / es.epochLength
}

// SetFirstSlot records the slot of the chain's first block, anchoring epoch
// numbering. Calls after the anchor is set are no-ops, so every node
// derives the same epoch indexes from block one.
func (es *EpochState) SetFirstSlot(slot uint64) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.firstSlotSet {
		return nil
	}
	es.firstSlot = slot
	es.firstSlotSet = true
	return es.base.StoreFirstSlot(slot)
}

// AuthoritySet returns the authority set for the given epoch. Epochs with no
// recorded change inherit the most recent preceding set.
func (es *EpochState) AuthoritySet(epoch uint64) (*types.AuthoritySet, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	for e := epoch; ; e-- {
		if set, has := es.sets[e]; has {
			return set.DeepCopy(), nil
		}
		if e == 0 {
			break
		}
	}
	return nil, fmt.Errorf("no authority set at or before epoch %d", epoch)
}

// CurrentAuthoritySet returns the authority set for the current epoch.
func (es *EpochState) CurrentAuthoritySet() (*types.AuthoritySet, error) {
	return es.AuthoritySet(es.CurrentEpoch())
}

// Randomness returns the epoch's randomness, deriving and caching it from
// the previous epoch's value when unseen. Derivation is deterministic so
// every node computes the same slot lottery.
func (es *EpochState) Randomness(epoch uint64) common.Hash {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.randomnessLocked(epoch)
}

func (es *EpochState) randomnessLocked(epoch uint64) common.Hash {
	if r, has := es.randomness[epoch]; has {
		return r
	}

	// chain forward from epoch 0, which is always seeded at construction
	prev := es.randomness[0]
	for e := uint64(1); e <= epoch; e++ {
		if r, has := es.randomness[e]; has {
			prev = r
			continue
		}
		buf := make([]byte, 0, 40)
		buf = append(buf, prev.ToBytes()...)
		buf = binary.LittleEndian.AppendUint64(buf, e)
		prev = common.MustBlake2bHash(buf)
		es.randomness[e] = prev
	}
	return prev
}

// ApplyEpochChange records a new authority set announced by an imported
// block and persists the epoch index.
func (es *EpochState) ApplyEpochChange(change *types.EpochChange) error {
	set, err := types.NewAuthoritySet(change.Epoch, change.Authorities)
	if err != nil {
		return err
	}

	es.mu.Lock()
	defer es.mu.Unlock()

	es.sets[change.Epoch] = set
	if change.Epoch > es.currentEpoch {
		es.currentEpoch = change.Epoch
	}
	return es.base.StoreEpochIndex(es.currentEpoch)
}

// AdvanceToEpoch moves the current epoch forward as slots progress past
// epoch boundaries, persisting the index.
func (es *EpochState) AdvanceToEpoch(epoch uint64) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	if epoch <= es.currentEpoch {
		return nil
	}
	es.currentEpoch = epoch
	return es.base.StoreEpochIndex(epoch)
}

func seedRandomness(set *types.AuthoritySet) common.Hash {
	buf := make([]byte, 0, len(set.Authorities)*32)
	for _, a := range set.Authorities {
		buf = append(buf, a.Key.Encode()...)
	}
	return common.MustBlake2bHash(buf)
}
