// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package core

import (
	"context"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/transaction"
)

// BlockState is the chain view the orchestrator reads and writes.
type BlockState interface {
	BestBlockHash() common.Hash
	BestBlockHeader() (*types.Header, error)
	FinalisedHash() common.Hash
	GetHeader(hash common.Hash) (*types.Header, error)
	GetBlockBody(hash common.Hash) (*types.Body, error)
	HasHeader(hash common.Hash) bool
	AddBlock(block *types.Block, authoringWeight uint64) error
	GetFinalisedNotifierChannel() chan *types.Header
	FreeFinalisedNotifierChannel(ch chan *types.Header)
}

// EpochState tracks authority sets and epoch progression.
type EpochState interface {
	EpochForSlot(slot uint64) uint64
	SetFirstSlot(slot uint64) error
	AuthoritySet(epoch uint64) (*types.AuthoritySet, error)
	ApplyEpochChange(change *types.EpochChange) error
	AdvanceToEpoch(epoch uint64) error
}

// TransactionState is the pool view the orchestrator maintains.
type TransactionState interface {
	AddToPool(vt *transaction.ValidTransaction) (common.Hash, error)
	RemoveExtrinsic(ext types.Extrinsic)
	Exists(ext types.Extrinsic) bool
	NotifyStatus(ext types.Extrinsic, status transaction.Status)
}

// Network is the gossip surface the orchestrator publishes through.
type Network interface {
	BroadcastBlock(data []byte) error
	BroadcastTransaction(data []byte) error
}

// Verifier checks an inbound header's seal and slot claim against the
// authority set of the header's epoch.
type Verifier interface {
	VerifyBlock(header *types.Header) error
}

// BlockRef identifies a block by hash and number.
type BlockRef struct {
	Hash   common.Hash
	Number uint64
}

// Outcome is the result of submitting a candidate block to a finality
// source.
type Outcome int

const (
	// OutcomeImported means the candidate entered the local finality
	// pipeline (solo mode).
	OutcomeImported Outcome = iota
	// OutcomeSubmitted means the candidate was handed to the relay chain
	// and awaits inclusion (collator mode).
	OutcomeSubmitted
	// OutcomeIncluded means the relay chain included the candidate.
	OutcomeIncluded
	// OutcomeRejected means the candidate was rejected and its
	// transactions remain eligible for a future candidate.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeIncluded:
		return "included"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// FinalitySource decides when blocks become final. Solo mode implements it
// with a local vote gadget, collator mode with an external relay chain.
// The orchestrator depends only on this capability, never on the mode.
type FinalitySource interface {
	CurrentFinalized() (BlockRef, error)
	SubmitCandidate(ctx context.Context, block *types.Block) (Outcome, error)
}
