// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package transaction

import (
	"github.com/emberchain/ember/ember/types"
)

// Validity is the outcome of runtime transaction validation. Requires and
// Provides are dependency tags: a transaction is only ready for inclusion
// once every Requires tag has been provided by an already-included or
// already-ready transaction, and two transactions providing the same tag
// conflict.
type Validity struct {
	Priority  uint64
	Requires  [][]byte
	Provides  [][]byte
	Longevity uint64
	Propagate bool
}

// NewValidity returns a Validity.
func NewValidity(priority uint64, requires, provides [][]byte, longevity uint64, propagate bool) *Validity {
	return &Validity{
		Priority:  priority,
		Requires:  requires,
		Provides:  provides,
		Longevity: longevity,
		Propagate: propagate,
	}
}

// ValidTransaction is a transaction accepted by the pool together with its
// validity metadata.
type ValidTransaction struct {
	Extrinsic types.Extrinsic
	Validity  *Validity
}

// NewValidTransaction returns a ValidTransaction.
func NewValidTransaction(extrinsic types.Extrinsic, validity *Validity) *ValidTransaction {
	return &ValidTransaction{
		Extrinsic: extrinsic,
		Validity:  validity,
	}
}

// Status represents possible transaction statuses within the pool.
type Status int64

const (
	// Future means the transaction is waiting on an unmet dependency.
	Future Status = iota
	// Ready means the transaction is eligible for inclusion.
	Ready
	// InBlock means the transaction was included in a block.
	InBlock
	// Finalized means the transaction's block was finalised.
	Finalized
	// Usurped means the transaction was replaced by a conflicting
	// higher-priority transaction.
	Usurped
	// Dropped means the transaction was evicted due to pool limits or expiry.
	Dropped
	// Invalid means the transaction failed runtime validation.
	Invalid
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Future:
		return "future"
	case Ready:
		return "ready"
	case InBlock:
		return "inBlock"
	case Finalized:
		return "finalized"
	case Usurped:
		return "usurped"
	case Dropped:
		return "dropped"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}
