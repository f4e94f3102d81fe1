// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package core

import "errors"

var (
	ErrNilBlockState       = errors.New("cannot have nil BlockState")
	ErrNilEpochState       = errors.New("cannot have nil EpochState")
	ErrNilTransactionState = errors.New("cannot have nil TransactionState")
	ErrNilNetwork          = errors.New("cannot have nil Network")
	ErrNilRuntime          = errors.New("cannot have nil runtime instance")
	ErrNilFinalitySource   = errors.New("cannot have nil FinalitySource")
	ErrNilKeystore         = errors.New("cannot have nil keystore")

	// ErrParentMissing is returned when an inbound block's parent is not
	// known to the block state.
	ErrParentMissing = errors.New("parent block not found")

	// ErrAuthorityIndex is returned when a seal references an authority
	// index outside the epoch's set.
	ErrAuthorityIndex = errors.New("seal authority index out of range")
)
