// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package runtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/transaction"
)

var (
	// ErrInvalidTransaction is returned for an extrinsic the active ruleset
	// rejects.
	ErrInvalidTransaction = errors.New("invalid transaction")

	errNilBlock = errors.New("nil block")
)

// extrinsicEnvelope is the built-in variants' extrinsic format. A production
// runtime ships its own codec inside the sandbox; the envelope stands at the
// same boundary.
type extrinsicEnvelope struct {
	Priority  uint64   `json:"priority"`
	Requires  []string `json:"requires,omitempty"`
	Provides  []string `json:"provides,omitempty"`
	Longevity uint64   `json:"longevity,omitempty"`
	Payload   string   `json:"payload,omitempty"`
}

// hostedInstance is the in-process runtime used by the built-in variants.
// It satisfies the Instance boundary without a VM sandbox.
type hostedInstance struct {
	version   Version
	allowHex  bool // accept raw 0x payloads (EVM bridge transactions)
	maxBodyKB int
}

func newHostedInstance(version Version, allowHex bool) *hostedInstance {
	return &hostedInstance{
		version:   version,
		allowHex:  allowHex,
		maxBodyKB: 64,
	}
}

// ValidateTransaction parses the extrinsic envelope and derives its validity.
func (in *hostedInstance) ValidateTransaction(ext types.Extrinsic) (*transaction.Validity, error) {
	if len(ext) == 0 {
		return nil, fmt.Errorf("%w: empty extrinsic", ErrInvalidTransaction)
	}

	if len(ext) > in.maxBodyKB*1024 {
		return nil, fmt.Errorf("%w: extrinsic exceeds %dKB", ErrInvalidTransaction, in.maxBodyKB)
	}

	// EVM bridge transactions arrive as raw hex; give them a fixed priority
	// and no dependency tags.
	if in.allowHex && len(ext) > 2 && string(ext[:2]) == "0x" {
		if _, err := common.HexToBytes(string(ext)); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
		}
		return transaction.NewValidity(1, nil, nil, 64, true), nil
	}

	var env extrinsicEnvelope
	if err := json.Unmarshal(ext, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
	}

	if env.Priority == 0 {
		return nil, fmt.Errorf("%w: priority must be non-zero", ErrInvalidTransaction)
	}

	requires := make([][]byte, len(env.Requires))
	for i, tag := range env.Requires {
		requires[i] = []byte(tag)
	}
	provides := make([][]byte, len(env.Provides))
	for i, tag := range env.Provides {
		provides[i] = []byte(tag)
	}

	longevity := env.Longevity
	if longevity == 0 {
		longevity = 64
	}

	return transaction.NewValidity(env.Priority, requires, provides, longevity, true), nil
}

// ExecuteBlock re-validates every extrinsic in the block body.
func (in *hostedInstance) ExecuteBlock(block *types.Block) error {
	if block == nil {
		return errNilBlock
	}

	for i, ext := range block.Body {
		if _, err := in.ValidateTransaction(ext); err != nil {
			return fmt.Errorf("executing block %s extrinsic %d: %w",
				block.Header.Hash().Short(), i, err)
		}
	}

	if got := types.ExtrinsicsRoot(block.Body); got != block.Header.ExtrinsicsRoot {
		return fmt.Errorf("%w: extrinsics root mismatch: got %s want %s",
			ErrInvalidTransaction, got, block.Header.ExtrinsicsRoot)
	}

	return nil
}

// Version returns the runtime version descriptor.
func (in *hostedInstance) Version() Version {
	return in.version
}
