// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package modules

import (
	"net/http"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

// ChainModule is an RPC module providing access to the chain's blocks.
type ChainModule struct {
	blockAPI BlockAPI
}

// ChainHashRequest is a block hash parameter; the empty hash selects the
// best block.
type ChainHashRequest struct {
	Bhash common.Hash `json:"bhash"`
}

// ChainBlockResponse is a block with its hash.
type ChainBlockResponse struct {
	Hash   common.Hash       `json:"hash"`
	Header *types.Header     `json:"header"`
	Body   []types.Extrinsic `json:"body"`
}

// NewChainModule creates a new chain RPC module.
func NewChainModule(blockAPI BlockAPI) *ChainModule {
	return &ChainModule{blockAPI: blockAPI}
}

// GetHead returns the hash of the current best block.
func (cm *ChainModule) GetHead(r *http.Request, req *EmptyRequest, res *common.Hash) error {
	*res = cm.blockAPI.BestBlockHash()
	return nil
}

// GetFinalizedHead returns the hash of the latest finalised block.
func (cm *ChainModule) GetFinalizedHead(r *http.Request, req *EmptyRequest, res *common.Hash) error {
	*res = cm.blockAPI.FinalisedHash()
	return nil
}

// GetHeader returns the header for the given hash, defaulting to the best
// block.
func (cm *ChainModule) GetHeader(r *http.Request, req *ChainHashRequest, res *types.Header) error {
	hash := req.Bhash
	if hash.IsEmpty() {
		hash = cm.blockAPI.BestBlockHash()
	}

	header, err := cm.blockAPI.GetHeader(hash)
	if err != nil {
		return err
	}
	*res = *header
	return nil
}

// GetBlock returns the full block for the given hash, defaulting to the
// best block.
func (cm *ChainModule) GetBlock(r *http.Request, req *ChainHashRequest, res *ChainBlockResponse) error {
	hash := req.Bhash
	if hash.IsEmpty() {
		hash = cm.blockAPI.BestBlockHash()
	}

	header, err := cm.blockAPI.GetHeader(hash)
	if err != nil {
		return err
	}
	body, err := cm.blockAPI.GetBlockBody(hash)
	if err != nil {
		return err
	}

	res.Hash = hash
	res.Header = header
	res.Body = body.Extrinsics()
	return nil
}
