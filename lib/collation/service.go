// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package collation implements the collator consensus mode: candidates
// are anchored to a relay chain which supplies ordering and finality.
// Local import is never treated as finality here.
package collation

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	log "github.com/ChainSafe/log15"

	"github.com/emberchain/ember/ember/core"
	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

var logger log.Logger = log.New("pkg", "collation")

var (
	ErrNilRelayChain = errors.New("cannot have nil RelayChain")
	ErrNilBlockState = errors.New("cannot have nil BlockState")

	// ErrSubmissionExhausted is returned when the relay chain never
	// acknowledged the candidate within the resubmission budget.
	ErrSubmissionExhausted = errors.New("relay submission attempts exhausted")
)

const (
	// DefaultSubmitTimeout is the per-attempt relay acknowledgement
	// timeout before resubmitting.
	DefaultSubmitTimeout = 30 * time.Second

	// DefaultMaxResubmits bounds resubmission of a single candidate.
	DefaultMaxResubmits = 3
)

// RelayChain is the external relay interface. Implementations wrap the
// embedding chain's collator-protocol client.
type RelayChain interface {
	// Opportunities yields relay heads the collator may anchor a
	// candidate to.
	Opportunities() <-chan types.RelayAnchor
	// SubmitCandidate submits an anchored candidate and blocks until the
	// relay acknowledges, rejects, or ctx expires.
	SubmitCandidate(ctx context.Context, block *types.Block) (core.Outcome, error)
	// FinalizedHeads yields blocks of this chain the relay has finalised.
	FinalizedHeads() <-chan core.BlockRef
}

// BlockState is the local chain view the collator finalises into when the
// relay reports inclusion.
type BlockState interface {
	FinalisedHash() common.Hash
	GetHeader(hash common.Hash) (*types.Header, error)
	HasHeader(hash common.Hash) bool
	SetFinalisedHash(hash common.Hash) error
}

// Service tracks relay opportunities and finalised heads, and routes
// candidate submission to the relay. It implements core.FinalitySource.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	relay      RelayChain
	blockState BlockState

	submitTimeout time.Duration
	maxResubmits  int

	mu            sync.Mutex
	anchor        *types.RelayAnchor
	lastFinalized *core.BlockRef
}

// ServiceConfig is the collation service configuration.
type ServiceConfig struct {
	LogLvl        log.Lvl
	RelayChain    RelayChain
	BlockState    BlockState
	SubmitTimeout time.Duration
	MaxResubmits  int
}

// NewService returns a collation service.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg.RelayChain == nil {
		return nil, ErrNilRelayChain
	}
	if cfg.BlockState == nil {
		return nil, ErrNilBlockState
	}

	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(cfg.LogLvl, h))

	timeout := cfg.SubmitTimeout
	if timeout == 0 {
		timeout = DefaultSubmitTimeout
	}
	resubmits := cfg.MaxResubmits
	if resubmits == 0 {
		resubmits = DefaultMaxResubmits
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		ctx:           ctx,
		cancel:        cancel,
		relay:         cfg.RelayChain,
		blockState:    cfg.BlockState,
		submitTimeout: timeout,
		maxResubmits:  resubmits,
	}, nil
}

// Start begins watching relay opportunities and finalised heads.
func (s *Service) Start() error {
	go s.watchOpportunities()
	go s.watchFinalizedHeads()
	return nil
}

// Stop halts the relay watchers.
func (s *Service) Stop() error {
	if s.ctx.Err() != nil {
		return errors.New("service already stopped")
	}
	s.cancel()
	return nil
}

// ConsumeAnchor returns the latest unconsumed relay opportunity, or nil
// when none arrived since the last candidate. Each opportunity backs at
// most one candidate.
func (s *Service) ConsumeAnchor() *types.RelayAnchor {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor := s.anchor
	s.anchor = nil
	return anchor
}

// CurrentFinalized implements core.FinalitySource with the last head the
// relay chain finalised.
func (s *Service) CurrentFinalized() (core.BlockRef, error) {
	s.mu.Lock()
	last := s.lastFinalized
	s.mu.Unlock()

	if last != nil {
		return *last, nil
	}

	// nothing relay-finalised yet; report the local root
	hash := s.blockState.FinalisedHash()
	header, err := s.blockState.GetHeader(hash)
	if err != nil {
		return core.BlockRef{}, err
	}
	return core.BlockRef{Hash: hash, Number: header.Number}, nil
}

// SubmitCandidate implements core.FinalitySource: the candidate goes to
// the relay, resubmitting on acknowledgement timeout. A rejected
// candidate is reported as such so its transactions stay eligible.
func (s *Service) SubmitCandidate(ctx context.Context, block *types.Block) (core.Outcome, error) {
	for attempt := 0; attempt < s.maxResubmits; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
		outcome, err := s.relay.SubmitCandidate(attemptCtx, block)
		cancel()

		switch {
		case err == nil:
			logger.Info("relay answered candidate", "hash", block.Hash(),
				"outcome", outcome, "attempt", attempt+1)
			return outcome, nil
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			logger.Warn("relay acknowledgement timed out, resubmitting",
				"hash", block.Hash(), "attempt", attempt+1)
		default:
			return core.OutcomeRejected, err
		}
	}
	return core.OutcomeRejected, ErrSubmissionExhausted
}

func (s *Service) watchOpportunities() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case anchor, ok := <-s.relay.Opportunities():
			if !ok {
				return
			}
			s.mu.Lock()
			s.anchor = &anchor
			s.mu.Unlock()
			logger.Debug("relay opportunity", "relayHash", anchor.Hash.Short(),
				"relayNumber", anchor.Number)
		}
	}
}

// watchFinalizedHeads applies relay finality to the local chain. Heads
// the local node has not imported yet are remembered but not applied.
func (s *Service) watchFinalizedHeads() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ref, ok := <-s.relay.FinalizedHeads():
			if !ok {
				return
			}

			s.mu.Lock()
			s.lastFinalized = &ref
			s.mu.Unlock()

			if !s.blockState.HasHeader(ref.Hash) {
				logger.Warn("relay finalised unknown block", "hash", ref.Hash.Short())
				continue
			}
			if err := s.blockState.SetFinalisedHash(ref.Hash); err != nil {
				logger.Warn("failed to apply relay finality", "hash", ref.Hash.Short(),
					"error", err)
				continue
			}
			logger.Info("relay finalised block", "hash", ref.Hash, "number", ref.Number)
		}
	}
}
