// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ChainSafe/chaindb"
	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/blocktree"
	"github.com/emberchain/ember/lib/common"
)

const defaultBufferSize = 128

var (
	// ErrHeaderNotFound is returned when a header lookup misses.
	ErrHeaderNotFound = errors.New("header not found")

	// ErrBodyNotFound is returned when a block body lookup misses.
	ErrBodyNotFound = errors.New("block body not found")
)

// BlockState keeps every known block above the last finalised block, the
// fork-choice tree over them, and the best/finalised pointers. The consensus
// orchestrator is the only writer of the best-block and finalised pointers;
// the network and RPC layers read them.
type BlockState struct {
	mu     sync.RWMutex
	bt     *blocktree.BlockTree
	db     chaindb.Database
	bodyDB chaindb.Database

	genesisHash   common.Hash
	bestBlock     common.Hash
	finalisedHash common.Hash

	headers map[common.Hash]*types.Header
	bodies  map[common.Hash]*types.Body

	importedLock     sync.RWMutex
	importedNotifier map[chan *types.Block]struct{}

	finalisedLock     sync.RWMutex
	finalisedNotifier map[chan *types.Header]struct{}
}

// NewBlockState returns a BlockState rooted at the given header, which must
// be the most recently finalised block (genesis on a fresh node).
func NewBlockState(db chaindb.Database, root *types.Header) (*BlockState, error) {
	bs := &BlockState{
		bt:                blocktree.NewBlockTreeFromRoot(root),
		db:                chaindb.NewTable(db, "block"),
		bodyDB:            chaindb.NewTable(db, "body"),
		genesisHash:       root.Hash(),
		bestBlock:         root.Hash(),
		finalisedHash:     root.Hash(),
		headers:           map[common.Hash]*types.Header{root.Hash(): root},
		bodies:            map[common.Hash]*types.Body{},
		importedNotifier:  make(map[chan *types.Block]struct{}),
		finalisedNotifier: make(map[chan *types.Header]struct{}),
	}

	if err := bs.storeHeader(root); err != nil {
		return nil, err
	}

	// the genesis root has an empty body; a resumed root keeps the body
	// persisted when it was imported
	if has, err := bs.bodyDB.Has(root.Hash().ToBytes()); err == nil && !has {
		empty := types.Body{}
		if err := bs.storeBody(root.Hash(), &empty); err != nil {
			return nil, err
		}
	}
	return bs, nil
}

// NewBlockStateFromFinalised returns a BlockState for a restarted node,
// rooted at the last finalised header. Forks that were live at shutdown are
// dropped; peers re-gossip anything still relevant.
func NewBlockStateFromFinalised(db chaindb.Database, root *types.Header,
	genesisHash common.Hash) (*BlockState, error) {
	bs, err := NewBlockState(db, root)
	if err != nil {
		return nil, err
	}
	bs.genesisHash = genesisHash
	return bs, nil
}

// GenesisHash returns the hash of the chain's root block.
func (bs *BlockState) GenesisHash() common.Hash {
	return bs.genesisHash
}

// BestBlockHash returns the current best block hash.
func (bs *BlockState) BestBlockHash() common.Hash {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.bestBlock
}

// BestBlockHeader returns the current best block header.
func (bs *BlockState) BestBlockHeader() (*types.Header, error) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	header, has := bs.headers[bs.bestBlock]
	if !has {
		return nil, fmt.Errorf("%w: best block %s", ErrHeaderNotFound, bs.bestBlock)
	}
	return header, nil
}

// FinalisedHash returns the most recently finalised block hash.
func (bs *BlockState) FinalisedHash() common.Hash {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.finalisedHash
}

// GetHeader returns the header with the given hash. Finalised history
// evicted from memory is read back from the database.
func (bs *BlockState) GetHeader(hash common.Hash) (*types.Header, error) {
	bs.mu.RLock()
	header, has := bs.headers[hash]
	bs.mu.RUnlock()

	if has {
		return header, nil
	}
	return bs.loadHeader(hash)
}

// GetBlockBody returns the body of the block with the given hash, reading
// through to the database for finalised history.
func (bs *BlockState) GetBlockBody(hash common.Hash) (*types.Body, error) {
	bs.mu.RLock()
	body, has := bs.bodies[hash]
	bs.mu.RUnlock()

	if has {
		return body, nil
	}
	return bs.loadBody(hash)
}

// HasHeader returns true if the hash names a known block, in memory or
// persisted.
func (bs *BlockState) HasHeader(hash common.Hash) bool {
	bs.mu.RLock()
	_, has := bs.headers[hash]
	bs.mu.RUnlock()

	if has {
		return true
	}
	stored, err := bs.db.Has(hash.ToBytes())
	return err == nil && stored
}

// AddBlock inserts a fully validated block with the authoring weight of its
// author, recomputes the best block, and notifies imported-block observers.
func (bs *BlockState) AddBlock(block *types.Block, authoringWeight uint64) error {
	bs.mu.Lock()

	header := block.Header.DeepCopy()
	if err := bs.bt.AddBlock(header, authoringWeight); err != nil {
		bs.mu.Unlock()
		return err
	}

	hash := header.Hash()
	bs.headers[hash] = header
	body := make(types.Body, len(block.Body))
	copy(body, block.Body)
	bs.bodies[hash] = &body

	if err := bs.storeHeader(header); err != nil {
		bs.mu.Unlock()
		return err
	}
	if err := bs.storeBody(hash, &body); err != nil {
		bs.mu.Unlock()
		return err
	}

	bs.bestBlock = bs.bt.BestBlockHash()
	bs.mu.Unlock()

	bs.notifyImported(block)
	return nil
}

// SetFinalisedHash marks the block and its ancestry as finalised, prunes
// competing forks, and notifies finality observers. Irreversible.
func (bs *BlockState) SetFinalisedHash(hash common.Hash) error {
	bs.mu.Lock()

	header, has := bs.headers[hash]
	if !has {
		bs.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrHeaderNotFound, hash)
	}

	// ancestors of the finalised block stay persisted for history queries;
	// everything else pruned is a discarded fork
	canonical := make(map[common.Hash]bool)
	for h := header.ParentHash; ; {
		ancestor, has := bs.headers[h]
		if !has {
			break
		}
		canonical[h] = true
		h = ancestor.ParentHash
	}

	pruned, err := bs.bt.Prune(hash)
	if err != nil {
		bs.mu.Unlock()
		return err
	}

	for _, h := range pruned {
		delete(bs.headers, h)
		delete(bs.bodies, h)
		if canonical[h] {
			continue
		}
		if err := bs.db.Del(h.ToBytes()); err != nil {
			logger.Warn("failed to delete pruned header", "hash", h, "error", err)
		}
		if err := bs.bodyDB.Del(h.ToBytes()); err != nil {
			logger.Warn("failed to delete pruned body", "hash", h, "error", err)
		}
	}

	bs.finalisedHash = hash
	bs.bestBlock = bs.bt.BestBlockHash()
	bs.mu.Unlock()

	bs.notifyFinalised(header)
	return nil
}

// IsDescendantOf returns true if child descends from (or equals) ancestor.
func (bs *BlockState) IsDescendantOf(ancestor, child common.Hash) (bool, error) {
	return bs.bt.IsDescendantOf(ancestor, child)
}

// Subchain returns the chain of hashes from start to end inclusive.
func (bs *BlockState) Subchain(start, end common.Hash) ([]common.Hash, error) {
	return bs.bt.Subchain(start, end)
}

// Leaves returns the current leaf hashes of the fork tree.
func (bs *BlockState) Leaves() []common.Hash {
	return bs.bt.Leaves()
}

// GetImportedBlockNotifierChannel returns a channel receiving every imported
// block. Used by the network announcer and the new-heads RPC subscription.
func (bs *BlockState) GetImportedBlockNotifierChannel() chan *types.Block {
	bs.importedLock.Lock()
	defer bs.importedLock.Unlock()

	ch := make(chan *types.Block, defaultBufferSize)
	bs.importedNotifier[ch] = struct{}{}
	return ch
}

// FreeImportedBlockNotifierChannel unregisters an imported-block channel.
func (bs *BlockState) FreeImportedBlockNotifierChannel(ch chan *types.Block) {
	bs.importedLock.Lock()
	defer bs.importedLock.Unlock()
	delete(bs.importedNotifier, ch)
}

// GetFinalisedNotifierChannel returns a channel receiving every finalised
// header.
func (bs *BlockState) GetFinalisedNotifierChannel() chan *types.Header {
	bs.finalisedLock.Lock()
	defer bs.finalisedLock.Unlock()

	ch := make(chan *types.Header, defaultBufferSize)
	bs.finalisedNotifier[ch] = struct{}{}
	return ch
}

// FreeFinalisedNotifierChannel unregisters a finalised-header channel.
func (bs *BlockState) FreeFinalisedNotifierChannel(ch chan *types.Header) {
	bs.finalisedLock.Lock()
	defer bs.finalisedLock.Unlock()
	delete(bs.finalisedNotifier, ch)
}

func (bs *BlockState) notifyImported(block *types.Block) {
	bs.importedLock.RLock()
	defer bs.importedLock.RUnlock()

	for ch := range bs.importedNotifier {
		select {
		case ch <- block:
		default:
		}
	}
}

func (bs *BlockState) notifyFinalised(header *types.Header) {
	bs.finalisedLock.RLock()
	defer bs.finalisedLock.RUnlock()

	for ch := range bs.finalisedNotifier {
		select {
		case ch <- header:
		default:
		}
	}
}

func (bs *BlockState) storeHeader(header *types.Header) error {
	enc, err := json.Marshal(header)
	if err != nil {
		return err
	}
	return bs.db.Put(header.Hash().ToBytes(), enc)
}

func (bs *BlockState) storeBody(hash common.Hash, body *types.Body) error {
	enc, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return bs.bodyDB.Put(hash.ToBytes(), enc)
}

func (bs *BlockState) loadHeader(hash common.Hash) (*types.Header, error) {
	enc, err := bs.db.Get(hash.ToBytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrHeaderNotFound, hash)
	}

	header := new(types.Header)
	if err := json.Unmarshal(enc, header); err != nil {
		return nil, fmt.Errorf("cannot decode stored header %s: %w", hash, err)
	}
	return header, nil
}

func (bs *BlockState) loadBody(hash common.Hash) (*types.Body, error) {
	enc, err := bs.bodyDB.Get(hash.ToBytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBodyNotFound, hash)
	}

	body := new(types.Body)
	if err := json.Unmarshal(enc, body); err != nil {
		return nil, fmt.Errorf("cannot decode stored body %s: %w", hash, err)
	}
	return body, nil
}
