// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package author

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	log "github.com/ChainSafe/log15"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/crypto"
	"github.com/emberchain/ember/lib/transaction"
)

var logger log.Logger = log.New("pkg", "author")

// DefaultBodyBudget is the maximum number of extrinsics per candidate.
const DefaultBodyBudget = 256

// BlockState is the chain view the authoring loop reads.
type BlockState interface {
	BestBlockHeader() (*types.Header, error)
}

// EpochState supplies per-epoch authority sets and randomness.
type EpochState interface {
	CurrentEpoch() uint64
	EpochForSlot(slot uint64) uint64
	AuthoritySet(epoch uint64) (*types.AuthoritySet, error)
	Randomness(epoch uint64) common.Hash
	SlotDuration() uint64
	EpochLength() uint64
}

// TransactionState supplies candidate transactions in execution order.
type TransactionState interface {
	Best(budget int) []*transaction.ValidTransaction
}

// BlockImportHandler receives fully built and signed candidate blocks.
type BlockImportHandler interface {
	HandleBlockProduced(block *types.Block) error
}

// AnchorProvider supplies relay anchors for collator-mode candidates.
// ConsumeAnchor returns nil when no relay opportunity is pending, in
// which case the slot is skipped.
type AnchorProvider interface {
	ConsumeAnchor() *types.RelayAnchor
}

// Service runs the slot-based authoring loop: each slot boundary it
// checks the local key's claim and, when eligible, builds a candidate on
// the current best block, signs it and hands it to the import handler.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	blockState       BlockState
	epochState       EpochState
	transactionState TransactionState
	importHandler    BlockImportHandler

	keypair    crypto.Keypair
	authority  bool
	bodyBudget int
	anchors    AnchorProvider

	slotDuration time.Duration
	epochLength  uint64

	sync.RWMutex
	pause chan struct{}
}

// ServiceConfig is the authoring service configuration.
type ServiceConfig struct {
	LogLvl             log.Lvl
	BlockState         BlockState
	EpochState         EpochState
	TransactionState   TransactionState
	BlockImportHandler BlockImportHandler
	Keypair            crypto.Keypair
	Authority          bool
	BodyBudget         int
	// AnchorProvider, when set, switches authoring to collator mode:
	// candidates carry a relay anchor and slots without a pending relay
	// opportunity are skipped.
	AnchorProvider AnchorProvider
}

// NewService returns an authoring service. A non-authority service starts
// and stops cleanly but never claims a slot.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg.BlockState == nil {
		return nil, ErrNilBlockState
	}
	if cfg.EpochState == nil {
		return nil, ErrNilEpochState
	}
	if cfg.TransactionState == nil {
		return nil, ErrNilTransactionState
	}
	if cfg.BlockImportHandler == nil {
		return nil, ErrNilImportHandler
	}
	if cfg.Authority && cfg.Keypair == nil {
		return nil, ErrNilKeypair
	}

	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(cfg.LogLvl, h))

	bodyBudget := cfg.BodyBudget
	if bodyBudget == 0 {
		bodyBudget = DefaultBodyBudget
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Service{
		ctx:              ctx,
		cancel:           cancel,
		blockState:       cfg.BlockState,
		epochState:       cfg.EpochState,
		transactionState: cfg.TransactionState,
		importHandler:    cfg.BlockImportHandler,
		keypair:          cfg.Keypair,
		authority:        cfg.Authority,
		bodyBudget:       bodyBudget,
		anchors:          cfg.AnchorProvider,
		slotDuration:     time.Duration(cfg.EpochState.SlotDuration()) * time.Millisecond,
		epochLength:      cfg.EpochState.EpochLength(),
		pause:            make(chan struct{}),
	}

	logger.Debug("created authoring service",
		"authority", srv.authority,
		"slot duration", srv.slotDuration,
		"epoch length", srv.epochLength)
	return srv, nil
}

// Start begins the slot loop.
func (s *Service) Start() error {
	go s.run()
	return nil
}

// Stop halts authoring. A slot in progress is abandoned; no partially
// built block reaches the import handler.
func (s *Service) Stop() error {
	if s.ctx.Err() != nil {
		return errors.New("service already stopped")
	}
	s.cancel()
	return nil
}

// Pause halts block production until Resume is called.
func (s *Service) Pause() {
	s.Lock()
	defer s.Unlock()

	if s.isPausedLocked() {
		return
	}
	close(s.pause)
}

// Resume restarts block production after a Pause.
func (s *Service) Resume() {
	s.Lock()
	defer s.Unlock()

	if !s.isPausedLocked() {
		return
	}
	s.pause = make(chan struct{})
	go s.run()
}

func (s *Service) isPausedLocked() bool {
	select {
	case <-s.pause:
		return true
	default:
		return false
	}
}

func (s *Service) pauseCh() chan struct{} {
	s.RLock()
	defer s.RUnlock()
	return s.pause
}

// run drives the slot loop until cancelled or paused. The epoch for each
// slot comes from the epoch state, which anchors epoch numbering at the
// chain's first block.
func (s *Service) run() {
	var (
		epoch     uint64
		epochSeen bool
	)

	for slot := currentSlot(s.slotDuration); ; slot++ {
		select {
		case <-s.ctx.Done():
			return
		case <-s.pauseCh():
			return
		case <-time.After(time.Until(slotStartTime(slot, s.slotDuration))):
		}

		if e := s.epochState.EpochForSlot(slot); !epochSeen || e != epoch {
			logger.Info("initiating epoch", "epoch", e, "slot", slot)
			epoch = e
			epochSeen = true
		}

		if !s.authority {
			continue
		}

		if err := s.handleSlot(slot); err != nil {
			switch {
			case errors.Is(err, ErrNotAuthorized):
				logger.Trace("no claim for slot", "slot", slot)
			case errors.Is(err, ErrNoOpportunity):
				logger.Trace("no relay opportunity for slot", "slot", slot)
			case errors.Is(err, ErrNotAuthority):
				logger.Debug("local key not in authority set", "epoch", epoch)
			default:
				logger.Warn("failed to handle slot", "slot", slot, "error", err)
			}
		}
	}
}

// handleSlot claims the slot and, when eligible, builds, signs and
// submits a candidate block.
func (s *Service) handleSlot(slot uint64) error {
	epoch := s.epochState.EpochForSlot(slot)
	set, err := s.epochState.AuthoritySet(epoch)
	if err != nil {
		return err
	}

	idx, err := set.Index(s.keypair.Public())
	if err != nil {
		return ErrNotAuthority
	}

	claim := ClaimSlot(s.epochState.Randomness(epoch), slot, set, idx)
	if claim == nil {
		return ErrNotAuthorized
	}

	var anchor *types.RelayAnchor
	if s.anchors != nil {
		anchor = s.anchors.ConsumeAnchor()
		if anchor == nil {
			return ErrNoOpportunity
		}
	}

	// the best block can move while building, so copy the parent first
	parentHeader, err := s.blockState.BestBlockHeader()
	if err != nil {
		return err
	}
	parent := parentHeader.DeepCopy()

	block, err := s.buildBlock(parent, claim, anchor)
	if err != nil {
		return err
	}

	// a shutdown during building discards the candidate
	if s.ctx.Err() != nil {
		logger.Debug("discarding candidate built during shutdown", "slot", slot)
		return nil
	}

	logger.Debug("built candidate", "hash", block.Hash(),
		"number", block.Header.Number, "slot", slot,
		"primary", claim.Primary, "extrinsics", len(block.Body))

	return s.importHandler.HandleBlockProduced(block)
}

func currentSlot(slotDuration time.Duration) uint64 {
	return uint64(time.Now().UnixNano()) / uint64(slotDuration.Nanoseconds())
}

func slotStartTime(slot uint64, slotDuration time.Duration) time.Time {
	return time.Unix(0, int64(slot)*slotDuration.Nanoseconds())
}
