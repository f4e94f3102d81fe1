// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package common

// Database keys for values persisted by the base state. Read at startup to
// resume from an existing data directory rather than re-genesis.
var (
	// BestBlockHashKey is the db location of the latest best block hash.
	BestBlockHashKey = []byte("best_hash")
	// FinalisedBlockHashKey is the db location of the latest finalised block hash.
	FinalisedBlockHashKey = []byte("finalised_hash")
	// EpochIndexKey is the db location of the current authority-set epoch index.
	EpochIndexKey = []byte("epoch_index")
	// FirstSlotKey is the db location of the slot of the chain's first block,
	// the anchor for epoch numbering.
	FirstSlotKey = []byte("first_slot")
	// GenesisDataKey is the db location of the chain spec genesis data.
	GenesisDataKey = []byte("genesis_data")
	// NodeNameKey is the db location of the node's name.
	NodeNameKey = []byte("node_name")
)
