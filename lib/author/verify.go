// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package author

import (
	"fmt"
	"time"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/crypto"
)

// slotDriftAllowance is how many slots ahead of local wall-clock time an
// inbound header may claim before it is rejected.
const slotDriftAllowance = 1

// Verifier checks inbound headers: the seal must be a valid signature by
// an authority of the header's epoch, and that authority must hold a
// primary or secondary claim for the slot.
type Verifier struct {
	epochState EpochState
}

// NewVerifier returns a Verifier reading authority sets from the given
// epoch state.
func NewVerifier(epochState EpochState) (*Verifier, error) {
	if epochState == nil {
		return nil, ErrNilEpochState
	}
	return &Verifier{epochState: epochState}, nil
}

// VerifyBlock verifies the header's slot claim and seal signature.
func (v *Verifier) VerifyBlock(header *types.Header) error {
	if header.Seal == nil {
		return ErrMissingSeal
	}

	maxSlot := currentSlot(time.Duration(v.epochState.SlotDuration())*time.Millisecond) + slotDriftAllowance
	if header.Slot > maxSlot {
		return fmt.Errorf("%w: slot %d, current %d", ErrFutureSlot, header.Slot, maxSlot)
	}

	epoch := v.epochState.EpochForSlot(header.Slot)
	set, err := v.epochState.AuthoritySet(epoch)
	if err != nil {
		return err
	}

	idx := header.Seal.AuthorityIndex
	if int(idx) >= len(set.Authorities) {
		return fmt.Errorf("seal authority index %d out of range for epoch %d", idx, epoch)
	}

	auth := set.Authorities[idx]
	ok, err := auth.Key.Verify(header.SigningPayload(), header.Seal.Signature)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: block %s", crypto.ErrSignatureVerificationFailed, header.Hash().Short())
	}

	randomness := v.epochState.Randomness(epoch)
	if !HoldsClaim(randomness, header.Slot, set, idx) {
		return fmt.Errorf("%w: authority %d, slot %d", ErrBadSlotClaim, idx, header.Slot)
	}

	return nil
}
