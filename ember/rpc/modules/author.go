// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package modules

import (
	"net/http"

	log "github.com/ChainSafe/log15"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

// AuthorModule is an RPC module for transaction submission.
type AuthorModule struct {
	logger  log.Logger
	coreAPI CoreAPI
	txAPI   TransactionStateAPI
}

// Extrinsic is a 0x-prefixed hex encoded extrinsic parameter.
type Extrinsic struct {
	Data string `json:"data" validate:"required"`
}

// ExtrinsicHashResponse is the hash of a submitted extrinsic.
type ExtrinsicHashResponse common.Hash

// PendingExtrinsicsResponse lists hex-encoded pending extrinsics.
type PendingExtrinsicsResponse []string

// NewAuthorModule creates a new author RPC module.
func NewAuthorModule(logger log.Logger, coreAPI CoreAPI, txAPI TransactionStateAPI) *AuthorModule {
	return &AuthorModule{
		logger:  logger.New("module", "author"),
		coreAPI: coreAPI,
		txAPI:   txAPI,
	}
}

// SubmitExtrinsic validates and admits an extrinsic to the pool, returning
// its hash. Invalid extrinsics are rejected with the validation error.
func (am *AuthorModule) SubmitExtrinsic(r *http.Request, req *Extrinsic, res *ExtrinsicHashResponse) error {
	data, err := common.HexToBytes(req.Data)
	if err != nil {
		return err
	}
	ext := types.Extrinsic(data)

	am.logger.Debug("submitting extrinsic", "hash", ext.Hash())

	hash, err := am.coreAPI.HandleSubmittedExtrinsic(ext)
	if err != nil {
		am.logger.Warn("failed to submit extrinsic", "hash", ext.Hash(), "error", err)
		return err
	}
	*res = ExtrinsicHashResponse(hash)
	return nil
}

// PendingExtrinsics returns all extrinsics waiting for inclusion.
func (am *AuthorModule) PendingExtrinsics(r *http.Request, req *EmptyRequest, res *PendingExtrinsicsResponse) error {
	pending := am.txAPI.Pending()
	resp := make([]string, len(pending))
	for i, tx := range pending {
		resp[i] = common.BytesToHex(tx.Extrinsic)
	}
	*res = resp
	return nil
}
