// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package finality

import "errors"

var (
	ErrNilBlockState = errors.New("cannot have nil BlockState")
	ErrNilEpochState = errors.New("cannot have nil EpochState")
	ErrNilKeypair    = errors.New("cannot vote without a keypair")

	// ErrInvalidSignature is returned when a vote's signature does not
	// verify against the claimed authority key.
	ErrInvalidSignature = errors.New("vote signature invalid")

	// ErrVoterNotFound is returned when a vote references an authority
	// index outside the current set.
	ErrVoterNotFound = errors.New("authority index not in current set")

	// ErrEquivocation marks a second conflicting vote by the same
	// authority in one round. The vote is discarded without state change.
	ErrEquivocation = errors.New("equivocation: conflicting vote in same round")

	// ErrRoundMismatch is returned for votes outside the accepted round
	// window.
	ErrRoundMismatch = errors.New("vote round out of window")
)
