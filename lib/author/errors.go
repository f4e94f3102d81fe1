// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package author

import "errors"

var (
	// ErrNotAuthorized is returned when the local key holds no claim for
	// the slot.
	ErrNotAuthorized = errors.New("not authorized to produce block in this slot")

	// ErrNotAuthority is returned when the local key is not in the current
	// authority set.
	ErrNotAuthority = errors.New("node is not an authority in the current epoch")

	ErrNilBlockState       = errors.New("cannot have nil BlockState")
	ErrNilEpochState       = errors.New("cannot have nil EpochState")
	ErrNilTransactionState = errors.New("cannot have nil TransactionState")
	ErrNilImportHandler    = errors.New("cannot have nil BlockImportHandler")
	ErrNilKeypair          = errors.New("cannot author blocks without a keypair")

	// ErrNoOpportunity is returned in collator mode when a slot has no
	// pending relay opportunity to anchor a candidate to.
	ErrNoOpportunity = errors.New("no relay opportunity pending")

	// ErrMissingSeal is returned when verifying a header with no seal.
	ErrMissingSeal = errors.New("header has no seal digest")

	// ErrBadSlotClaim is returned when a sealed header's authority holds
	// neither a primary nor a secondary claim for its slot.
	ErrBadSlotClaim = errors.New("authority holds no claim for slot")

	// ErrFutureSlot is returned when a header's slot is beyond the current
	// wall-clock slot plus drift allowance.
	ErrFutureSlot = errors.New("block slot is in the future")
)
