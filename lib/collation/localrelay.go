// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package collation

import (
	"context"
	"sync"
	"time"

	"github.com/emberchain/ember/ember/core"
	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

// LocalRelay is an in-process relay chain for development networks. It
// produces synthetic relay heads on a fixed interval, accepts every
// well-anchored candidate, and finalises accepted candidates after
// finalityLag further relay heads.
type LocalRelay struct {
	ctx    context.Context
	cancel context.CancelFunc

	interval    time.Duration
	finalityLag int

	opportunities chan types.RelayAnchor
	finalized     chan core.BlockRef

	mu          sync.Mutex
	relayNumber uint64
	pending     []core.BlockRef
}

// NewLocalRelay returns a started local relay emitting a head every
// interval and finalising accepted candidates finalityLag heads later.
func NewLocalRelay(interval time.Duration, finalityLag int) *LocalRelay {
	if finalityLag < 1 {
		finalityLag = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &LocalRelay{
		ctx:           ctx,
		cancel:        cancel,
		interval:      interval,
		finalityLag:   finalityLag,
		opportunities: make(chan types.RelayAnchor, 1),
		finalized:     make(chan core.BlockRef, 16),
	}
	go r.run()
	return r
}

// Stop halts the relay loops.
func (r *LocalRelay) Stop() {
	r.cancel()
}

// Opportunities implements RelayChain.
func (r *LocalRelay) Opportunities() <-chan types.RelayAnchor {
	return r.opportunities
}

// FinalizedHeads implements RelayChain.
func (r *LocalRelay) FinalizedHeads() <-chan core.BlockRef {
	return r.finalized
}

// SubmitCandidate implements RelayChain. Candidates without an anchor, or
// anchored to a stale relay head, are rejected.
func (r *LocalRelay) SubmitCandidate(_ context.Context, block *types.Block) (core.Outcome, error) {
	anchor := block.Header.RelayAnchor
	if anchor == nil {
		return core.OutcomeRejected, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if anchor.Number+uint64(r.finalityLag) < r.relayNumber {
		return core.OutcomeRejected, nil
	}

	r.pending = append(r.pending, core.BlockRef{
		Hash:   block.Hash(),
		Number: block.Header.Number,
	})
	return core.OutcomeIncluded, nil
}

func (r *LocalRelay) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.advance()
		}
	}
}

// advance mints the next relay head, offering it as an opportunity and
// finalising candidates accepted finalityLag heads ago.
func (r *LocalRelay) advance() {
	r.mu.Lock()
	r.relayNumber++
	anchor := types.RelayAnchor{
		Hash:   relayHeadHash(r.relayNumber),
		Number: r.relayNumber,
	}

	var done []core.BlockRef
	if len(r.pending) > 0 && r.relayNumber%uint64(r.finalityLag) == 0 {
		done = r.pending
		r.pending = nil
	}
	r.mu.Unlock()

	// drop the stale opportunity if the collator never consumed it
	select {
	case <-r.opportunities:
	default:
	}
	select {
	case r.opportunities <- anchor:
	case <-r.ctx.Done():
		return
	}

	for _, ref := range done {
		select {
		case r.finalized <- ref:
		case <-r.ctx.Done():
			return
		}
	}
}

func relayHeadHash(number uint64) common.Hash {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(number >> (8 * i))
	}
	return common.MustBlake2bHash(append([]byte("local-relay-head"), buf...))
}
