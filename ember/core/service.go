// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package core

import (
	"context"
	"fmt"
	"os"

	log "github.com/ChainSafe/log15"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/keystore"
	"github.com/emberchain/ember/lib/runtime"
	"github.com/emberchain/ember/lib/transaction"
)

var logger log.Logger = log.New("pkg", "core")

// Service is the consensus orchestrator's shared core. It owns block
// import in both modes: locally authored blocks, inbound gossip blocks,
// transaction admission, and epoch-change application. Finality decisions
// are delegated to the configured FinalitySource.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	blockState       BlockState
	epochState       EpochState
	transactionState TransactionState
	net              Network
	verifier         Verifier
	finality         FinalitySource

	rt   runtime.Instance
	keys *keystore.GlobalKeystore
}

// Config holds the configuration for the core Service.
type Config struct {
	LogLvl log.Lvl

	BlockState       BlockState
	EpochState       EpochState
	TransactionState TransactionState
	Network          Network
	Verifier         Verifier
	FinalitySource   FinalitySource
	Keystore         *keystore.GlobalKeystore
	Runtime          runtime.Instance
}

// NewService returns a new core service connecting the runtime, the
// authoring loop, the finality source and the network.
func NewService(cfg *Config) (*Service, error) {
	if cfg.BlockState == nil {
		return nil, ErrNilBlockState
	}
	if cfg.EpochState == nil {
		return nil, ErrNilEpochState
	}
	if cfg.TransactionState == nil {
		return nil, ErrNilTransactionState
	}
	if cfg.Network == nil {
		return nil, ErrNilNetwork
	}
	if cfg.Runtime == nil {
		return nil, ErrNilRuntime
	}
	if cfg.FinalitySource == nil {
		return nil, ErrNilFinalitySource
	}
	if cfg.Keystore == nil {
		return nil, ErrNilKeystore
	}

	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(cfg.LogLvl, h))

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		ctx:              ctx,
		cancel:           cancel,
		blockState:       cfg.BlockState,
		epochState:       cfg.EpochState,
		transactionState: cfg.TransactionState,
		net:              cfg.Network,
		verifier:         cfg.Verifier,
		finality:         cfg.FinalitySource,
		rt:               cfg.Runtime,
		keys:             cfg.Keystore,
	}, nil
}

// Start begins watching finalisation to update transaction statuses.
func (s *Service) Start() error {
	go s.watchFinalised()
	return nil
}

// Stop cancels the service's background loops.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// HandleBlockProduced submits a locally authored block to the finality
// source, then imports and gossips it. Submission happens first: a
// candidate the relay rejects is discarded before touching shared state,
// leaving its transactions eligible for the next candidate. The block was
// built from validated transactions so it skips seal verification.
func (s *Service) HandleBlockProduced(block *types.Block) error {
	outcome, err := s.finality.SubmitCandidate(s.ctx, block)
	if err != nil {
		return fmt.Errorf("candidate submission failed: %w", err)
	}
	if outcome == OutcomeRejected {
		logger.Warn("candidate rejected, discarding", "hash", block.Hash(),
			"number", block.Header.Number)
		return nil
	}

	weight, err := s.authoringWeight(&block.Header)
	if err != nil {
		return err
	}

	if err := s.importBlock(block, weight); err != nil {
		return err
	}

	enc, err := block.Encode()
	if err != nil {
		return err
	}
	if err := s.net.BroadcastBlock(enc); err != nil {
		logger.Warn("failed to broadcast authored block", "hash", block.Hash(), "error", err)
	}

	logger.Info("authored block", "hash", block.Hash(),
		"number", block.Header.Number, "slot", block.Header.Slot,
		"outcome", outcome)
	return nil
}

// HandleBlockMessage processes an encoded block received from gossip.
// Malformed or unverifiable blocks are logged and discarded.
func (s *Service) HandleBlockMessage(from peer.ID, data []byte) {
	block, err := types.DecodeBlock(data)
	if err != nil {
		logger.Debug("discarding malformed block message", "peer", from, "error", err)
		return
	}

	if err := s.handleInboundBlock(block); err != nil {
		logger.Debug("discarding inbound block", "hash", block.Hash(),
			"peer", from, "error", err)
	}
}

// HandleTransactionMessage processes an encoded extrinsic received from
// gossip.
func (s *Service) HandleTransactionMessage(from peer.ID, data []byte) {
	ext := types.Extrinsic(data)
	if _, err := s.HandleSubmittedExtrinsic(ext); err != nil {
		logger.Debug("discarding inbound transaction", "peer", from, "error", err)
	}
}

// HandleSubmittedExtrinsic validates an extrinsic against the active
// runtime, admits it to the pool and gossips it. Used by both the author
// RPC module and the network handler.
func (s *Service) HandleSubmittedExtrinsic(ext types.Extrinsic) (common.Hash, error) {
	if s.transactionState.Exists(ext) {
		return ext.Hash(), nil
	}

	validity, err := s.rt.ValidateTransaction(ext)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid transaction: %w", err)
	}

	vt := transaction.NewValidTransaction(ext, validity)
	hash, err := s.transactionState.AddToPool(vt)
	if err != nil {
		return common.Hash{}, err
	}

	if validity.Propagate {
		if err := s.net.BroadcastTransaction(ext); err != nil {
			logger.Warn("failed to broadcast transaction", "hash", hash, "error", err)
		}
	}
	return hash, nil
}

// handleInboundBlock verifies and imports a block received from a peer.
// Runtime execution happens before any shared state is touched.
func (s *Service) handleInboundBlock(block *types.Block) error {
	hash := block.Hash()
	if s.blockState.HasHeader(hash) {
		return nil
	}
	if !s.blockState.HasHeader(block.Header.ParentHash) {
		return fmt.Errorf("%w: %s", ErrParentMissing, block.Header.ParentHash)
	}

	if s.verifier != nil {
		if err := s.verifier.VerifyBlock(&block.Header); err != nil {
			return fmt.Errorf("block verification failed: %w", err)
		}
	}

	// validate-then-commit: execute against the runtime with no locks held
	if err := s.rt.ExecuteBlock(block); err != nil {
		return fmt.Errorf("block execution failed: %w", err)
	}

	weight, err := s.authoringWeight(&block.Header)
	if err != nil {
		return err
	}

	if err := s.importBlock(block, weight); err != nil {
		return err
	}

	logger.Debug("imported block", "hash", hash,
		"number", block.Header.Number, "slot", block.Header.Slot)
	return nil
}

// importBlock commits a validated block to the block state, applies any
// epoch change it carries, and updates the pool.
func (s *Service) importBlock(block *types.Block, authoringWeight uint64) error {
	if err := s.blockState.AddBlock(block, authoringWeight); err != nil {
		return err
	}

	// block one anchors epoch numbering at its slot
	if block.Header.Number == 1 {
		if err := s.epochState.SetFirstSlot(block.Header.Slot); err != nil {
			return err
		}
	}

	if change := block.Header.EpochChange; change != nil {
		if err := s.epochState.ApplyEpochChange(change); err != nil {
			return fmt.Errorf("failed to apply epoch change: %w", err)
		}
		logger.Info("authority set changed", "epoch", change.Epoch,
			"authorities", len(change.Authorities))
	}

	if err := s.epochState.AdvanceToEpoch(s.epochState.EpochForSlot(block.Header.Slot)); err != nil {
		return err
	}

	for _, ext := range block.Body.Extrinsics() {
		s.transactionState.RemoveExtrinsic(ext)
		s.transactionState.NotifyStatus(ext, transaction.InBlock)
	}
	return nil
}

// authoringWeight returns the voting weight of the authority that sealed
// the header, used as the block's contribution to fork choice.
func (s *Service) authoringWeight(header *types.Header) (uint64, error) {
	set, err := s.epochState.AuthoritySet(s.epochState.EpochForSlot(header.Slot))
	if err != nil {
		return 0, err
	}
	if header.Seal == nil || int(header.Seal.AuthorityIndex) >= len(set.Authorities) {
		return 0, ErrAuthorityIndex
	}
	return set.Authorities[header.Seal.AuthorityIndex].Weight, nil
}

// watchFinalised marks extrinsics of finalised blocks and cleans them out
// of the pool, covering blocks finalised without passing through import
// on this node.
func (s *Service) watchFinalised() {
	ch := s.blockState.GetFinalisedNotifierChannel()
	defer s.blockState.FreeFinalisedNotifierChannel(ch)

	for {
		select {
		case <-s.ctx.Done():
			return
		case header, ok := <-ch:
			if !ok {
				return
			}
			body, err := s.blockState.GetBlockBody(header.Hash())
			if err != nil {
				continue
			}
			for _, ext := range body.Extrinsics() {
				s.transactionState.RemoveExtrinsic(ext)
				s.transactionState.NotifyStatus(ext, transaction.Finalized)
			}
		}
	}
}
