// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package runtime

import (
	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/transaction"
)

// Version identifies the active runtime.
type Version struct {
	SpecName    string `json:"specName"`
	SpecVersion uint32 `json:"specVersion"`
}

// Instance is the boundary contract with the runtime execution sandbox.
// Calls may block on execution; callers must never hold shared node state
// locks across them (validate-then-commit).
type Instance interface {
	// ValidateTransaction checks an extrinsic against the variant's
	// transaction rules and returns its validity metadata.
	ValidateTransaction(ext types.Extrinsic) (*transaction.Validity, error)

	// ExecuteBlock runs the block's extrinsics against the runtime. A block
	// is never imported or propagated before this succeeds.
	ExecuteBlock(block *types.Block) error

	// Version returns the runtime version descriptor.
	Version() Version
}
