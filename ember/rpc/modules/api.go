// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package modules implements the JSON-RPC method modules. The core set
// {system, author, chain} is always registered; extension modules come
// from the active runtime variant.
package modules

import (
	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/transaction"
)

// BlockAPI is the block state interface for RPC.
type BlockAPI interface {
	GenesisHash() common.Hash
	BestBlockHash() common.Hash
	FinalisedHash() common.Hash
	GetHeader(hash common.Hash) (*types.Header, error)
	GetBlockBody(hash common.Hash) (*types.Body, error)
	GetImportedBlockNotifierChannel() chan *types.Block
	FreeImportedBlockNotifierChannel(ch chan *types.Block)
	GetFinalisedNotifierChannel() chan *types.Header
	FreeFinalisedNotifierChannel(ch chan *types.Header)
}

// CoreAPI is the orchestrator interface for RPC: transaction submission
// routes through the same validation path as gossip.
type CoreAPI interface {
	HandleSubmittedExtrinsic(ext types.Extrinsic) (common.Hash, error)
}

// NetworkAPI is the network service interface for RPC.
type NetworkAPI interface {
	Health() common.Health
	NetworkState() common.NetworkState
	Peers() []common.PeerInfo
}

// TransactionStateAPI is the pool interface for RPC.
type TransactionStateAPI interface {
	Pending() []*transaction.ValidTransaction
	GetStatusNotifierChannel(ext types.Extrinsic) chan transaction.Status
	FreeStatusNotifierChannel(ch chan transaction.Status)
}

// SystemAPI is the node metadata interface for RPC.
type SystemAPI interface {
	SystemName() string
	SystemVersion() string
	ChainName() string
	ChainType() string
	Properties() map[string]any
}

// RuntimeAPI exposes the active runtime's version descriptor.
type RuntimeAPI interface {
	RuntimeVersion() (specName string, specVersion uint32)
}
