// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package finality

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	log "github.com/ChainSafe/log15"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/emberchain/ember/ember/core"
	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/crypto"
)

var logger log.Logger = log.New("pkg", "finality")

// DefaultRoundTimeout is how long a round waits for quorum before
// advancing with a fresh best estimate.
const DefaultRoundTimeout = 10 * time.Second

// BlockState is the chain view the vote gadget reads and finalises into.
type BlockState interface {
	BestBlockHash() common.Hash
	FinalisedHash() common.Hash
	GetHeader(hash common.Hash) (*types.Header, error)
	SetFinalisedHash(hash common.Hash) error
	IsDescendantOf(ancestor, child common.Hash) (bool, error)
}

// EpochState supplies the authority set votes are tallied against.
type EpochState interface {
	CurrentEpoch() uint64
	AuthoritySet(epoch uint64) (*types.AuthoritySet, error)
}

// Network gossips votes to the other authorities.
type Network interface {
	BroadcastVote(data []byte) error
}

// Service is the solo-mode finality gadget. Rounds run independently of
// authoring slots: each round the gadget votes for its best estimate,
// tallies votes keyed by (round, hash), and finalises once a single hash
// reaches quorum weight. It implements core.FinalitySource.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc

	blockState BlockState
	epochState EpochState
	net        Network

	keypair   crypto.Keypair
	authority bool

	roundTimeout time.Duration
	quorumWeight uint64

	mu    sync.Mutex
	round uint64
	// tally of vote weight per target hash in the current round
	tally map[common.Hash]uint64
	// recorded vote per authority in the current round, for
	// equivocation detection
	voted map[uint32]common.Hash
	// wakes the round loop when a vote lands
	voteArrived chan struct{}
}

// ServiceConfig is the finality gadget configuration.
type ServiceConfig struct {
	LogLvl       log.Lvl
	BlockState   BlockState
	EpochState   EpochState
	Network      Network
	Keypair      crypto.Keypair
	Authority    bool
	RoundTimeout time.Duration
	// QuorumWeight overrides the authority set's default two-thirds
	// threshold when non-zero.
	QuorumWeight uint64
}

// NewService returns a finality gadget. A non-authority service tallies
// and finalises but never votes.
func NewService(cfg *ServiceConfig) (*Service, error) {
	if cfg.BlockState == nil {
		return nil, ErrNilBlockState
	}
	if cfg.EpochState == nil {
		return nil, ErrNilEpochState
	}
	if cfg.Authority && cfg.Keypair == nil {
		return nil, ErrNilKeypair
	}

	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(cfg.LogLvl, h))

	timeout := cfg.RoundTimeout
	if timeout == 0 {
		timeout = DefaultRoundTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		ctx:          ctx,
		cancel:       cancel,
		blockState:   cfg.BlockState,
		epochState:   cfg.EpochState,
		net:          cfg.Network,
		keypair:      cfg.Keypair,
		authority:    cfg.Authority,
		roundTimeout: timeout,
		quorumWeight: cfg.QuorumWeight,
		round:        1,
		tally:        make(map[common.Hash]uint64),
		voted:        make(map[uint32]common.Hash),
		voteArrived:  make(chan struct{}, 1),
	}, nil
}

// Start begins the round loop.
func (s *Service) Start() error {
	go s.run()
	return nil
}

// Stop halts the round loop. A stalled round never blocks shutdown.
func (s *Service) Stop() error {
	if s.ctx.Err() != nil {
		return errors.New("service already stopped")
	}
	s.cancel()
	return nil
}

// Round returns the current round number.
func (s *Service) Round() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// CurrentFinalized implements core.FinalitySource with the locally
// finalised head.
func (s *Service) CurrentFinalized() (core.BlockRef, error) {
	hash := s.blockState.FinalisedHash()
	header, err := s.blockState.GetHeader(hash)
	if err != nil {
		return core.BlockRef{}, err
	}
	return core.BlockRef{Hash: hash, Number: header.Number}, nil
}

// SubmitCandidate implements core.FinalitySource. A locally authored
// block is already imported; it becomes the round's best estimate through
// fork choice, so submission only acknowledges entry into the pipeline.
func (s *Service) SubmitCandidate(_ context.Context, block *types.Block) (core.Outcome, error) {
	logger.Debug("candidate entered finality pipeline",
		"hash", block.Hash(), "number", block.Header.Number)
	return core.OutcomeImported, nil
}

// HandleVoteMessage processes an encoded vote from gossip. Invalid votes
// and equivocations are logged and discarded without state mutation.
func (s *Service) HandleVoteMessage(from peer.ID, data []byte) {
	msg, err := DecodeVoteMessage(data)
	if err != nil {
		logger.Debug("discarding malformed vote message", "peer", from, "error", err)
		return
	}

	if err := s.processVote(msg); err != nil {
		switch {
		case errors.Is(err, ErrEquivocation):
			logger.Warn("discarding equivocating vote", "authority", msg.AuthorityIndex,
				"round", msg.Round, "target", msg.Vote.Hash.Short())
		case errors.Is(err, ErrRoundMismatch):
			logger.Trace("discarding out-of-round vote", "round", msg.Round)
		default:
			logger.Debug("discarding invalid vote", "peer", from, "error", err)
		}
	}
}

// processVote verifies and tallies a vote for the current round.
func (s *Service) processVote(msg *VoteMessage) error {
	set, err := s.epochState.AuthoritySet(s.epochState.CurrentEpoch())
	if err != nil {
		return err
	}

	if err := verifyVote(set, msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Round != s.round {
		return ErrRoundMismatch
	}

	if prev, has := s.voted[msg.AuthorityIndex]; has {
		if prev == msg.Vote.Hash {
			return nil
		}
		return ErrEquivocation
	}

	s.voted[msg.AuthorityIndex] = msg.Vote.Hash
	s.tally[msg.Vote.Hash] += set.Authorities[msg.AuthorityIndex].Weight

	select {
	case s.voteArrived <- struct{}{}:
	default:
	}
	return nil
}

// run drives rounds: vote, await quorum or timeout, finalise or advance.
func (s *Service) run() {
	for {
		if s.ctx.Err() != nil {
			return
		}

		round := s.Round()
		if err := s.castVote(round); err != nil {
			logger.Warn("failed to cast vote", "round", round, "error", err)
		}

		finalised := s.awaitQuorum(round)
		s.advanceRound(finalised)
	}
}

// castVote votes for the current best estimate: the best block, which by
// fork choice descends from the finalised head.
func (s *Service) castVote(round uint64) error {
	if !s.authority {
		return nil
	}

	set, err := s.epochState.AuthoritySet(s.epochState.CurrentEpoch())
	if err != nil {
		return err
	}
	idx, err := set.Index(s.keypair.Public())
	if err != nil {
		// not part of this epoch's set; tally only
		return nil
	}

	best := s.blockState.BestBlockHash()
	header, err := s.blockState.GetHeader(best)
	if err != nil {
		return err
	}

	msg, err := signVote(s.keypair, round, idx, NewVoteFromHeader(header))
	if err != nil {
		return err
	}

	// tally our own vote before gossiping it
	if err := s.processVote(msg); err != nil {
		return err
	}

	if s.net != nil {
		enc, err := msg.Encode()
		if err != nil {
			return err
		}
		if err := s.net.BroadcastVote(enc); err != nil {
			logger.Warn("failed to broadcast vote", "round", round, "error", err)
		}
	}

	logger.Debug("cast vote", "round", round, "target", msg.Vote.Hash.Short())
	return nil
}

// awaitQuorum blocks until some hash reaches quorum weight in the round
// or the round times out. It returns true when a block was finalised.
func (s *Service) awaitQuorum(round uint64) bool {
	timeout := time.NewTimer(s.roundTimeout)
	defer timeout.Stop()

	for {
		if hash, ok := s.quorumTarget(); ok {
			if err := s.finalise(hash, round); err != nil {
				logger.Warn("failed to finalise", "hash", hash.Short(),
					"round", round, "error", err)
				return false
			}
			return true
		}

		select {
		case <-s.ctx.Done():
			return false
		case <-timeout.C:
			logger.Debug("round timed out", "round", round)
			return false
		case <-s.voteArrived:
		}
	}
}

// quorumTarget returns the hash holding quorum weight in the current
// round, if any.
func (s *Service) quorumTarget() (common.Hash, bool) {
	threshold := s.quorumWeight
	if threshold == 0 {
		set, err := s.epochState.AuthoritySet(s.epochState.CurrentEpoch())
		if err != nil {
			return common.Hash{}, false
		}
		threshold = set.Threshold()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, weight := range s.tally {
		if weight >= threshold {
			return hash, true
		}
	}
	return common.Hash{}, false
}

// finalise marks the target and its ancestry final. A target that does
// not descend from the finalised head is ignored (safety).
func (s *Service) finalise(hash common.Hash, round uint64) error {
	finalised := s.blockState.FinalisedHash()
	if hash != finalised {
		ok, err := s.blockState.IsDescendantOf(finalised, hash)
		if err != nil {
			return err
		}
		if !ok {
			logger.Warn("quorum target does not descend from finalised head",
				"target", hash.Short(), "finalised", finalised.Short())
			return nil
		}
		if err := s.blockState.SetFinalisedHash(hash); err != nil {
			return err
		}
	}

	logger.Info("finalised block", "hash", hash, "round", round)
	return nil
}

// advanceRound moves to the next round and resets the tally.
func (s *Service) advanceRound(finalised bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.round++
	s.tally = make(map[common.Hash]uint64)
	s.voted = make(map[uint32]common.Hash)

	if !finalised {
		logger.Debug("advancing without finalisation", "round", s.round)
	}
}
