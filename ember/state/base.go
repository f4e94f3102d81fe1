// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ChainSafe/chaindb"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/genesis"
)

// BaseState is a wrapper for the chaindb.Database, without any prefixes.
// It holds the handful of keys read at startup to resume a node: best block
// hash, finalised block hash, authority-set epoch index and genesis data.
type BaseState struct {
	db chaindb.Database
}

// NewBaseState returns a new BaseState.
func NewBaseState(db chaindb.Database) *BaseState {
	return &BaseState{
		db: db,
	}
}

// StoreGenesisData stores the given genesis data at the known GenesisDataKey.
func (s *BaseState) StoreGenesisData(gen *genesis.Data) error {
	enc, err := json.Marshal(gen)
	if err != nil {
		return fmt.Errorf("cannot encode genesis data: %w", err)
	}
	return s.db.Put(common.GenesisDataKey, enc)
}

// LoadGenesisData retrieves the genesis data stored at the known GenesisDataKey.
func (s *BaseState) LoadGenesisData() (*genesis.Data, error) {
	enc, err := s.db.Get(common.GenesisDataKey)
	if err != nil {
		return nil, err
	}

	data := &genesis.Data{}
	if err := json.Unmarshal(enc, data); err != nil {
		return nil, err
	}
	return data, nil
}

// StoreBestBlockHash persists the best block hash.
func (s *BaseState) StoreBestBlockHash(hash common.Hash) error {
	return s.db.Put(common.BestBlockHashKey, hash.ToBytes())
}

// LoadBestBlockHash loads the persisted best block hash.
func (s *BaseState) LoadBestBlockHash() (common.Hash, error) {
	hash, err := s.db.Get(common.BestBlockHashKey)
	if err != nil {
		return common.Hash{}, err
	}
	return common.NewHash(hash), nil
}

// StoreFinalisedHash persists the latest finalised block hash.
func (s *BaseState) StoreFinalisedHash(hash common.Hash) error {
	return s.db.Put(common.FinalisedBlockHashKey, hash.ToBytes())
}

// LoadFinalisedHash loads the persisted finalised block hash.
func (s *BaseState) LoadFinalisedHash() (common.Hash, error) {
	hash, err := s.db.Get(common.FinalisedBlockHashKey)
	if err != nil {
		return common.Hash{}, err
	}
	return common.NewHash(hash), nil
}

// StoreEpochIndex persists the current authority-set epoch index.
func (s *BaseState) StoreEpochIndex(epoch uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, epoch)
	return s.db.Put(common.EpochIndexKey, buf)
}

// LoadEpochIndex loads the persisted authority-set epoch index.
func (s *BaseState) LoadEpochIndex() (uint64, error) {
	data, err := s.db.Get(common.EpochIndexKey)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// StoreFirstSlot persists the slot of the chain's first block.
func (s *BaseState) StoreFirstSlot(slot uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, slot)
	return s.db.Put(common.FirstSlotKey, buf)
}

// LoadFirstSlot loads the persisted first slot.
func (s *BaseState) LoadFirstSlot() (uint64, error) {
	data, err := s.db.Get(common.FirstSlotKey)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// StoreNodeName stores the node name to reuse across restarts.
func (s *BaseState) StoreNodeName(name string) error {
	return s.db.Put(common.NodeNameKey, []byte(name))
}

// LoadNodeName loads the stored node name.
func (s *BaseState) LoadNodeName() (string, error) {
	name, err := s.db.Get(common.NodeNameKey)
	if err != nil {
		return "", err
	}
	return string(name), nil
}

// Put stores a key/value pair in the database.
func (s *BaseState) Put(key, value []byte) error {
	return s.db.Put(key, value)
}

// Get retrieves a value by key from the database.
func (s *BaseState) Get(key []byte) ([]byte, error) {
	return s.db.Get(key)
}
