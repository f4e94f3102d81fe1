// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package modules

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

// ErrBlockNotFound is returned when a requested block number is beyond the
// best block or pruned.
var ErrBlockNotFound = errors.New("block not found")

// EthModule is the EVM compatibility RPC module. It is only registered for
// runtime variants compiled with the EVM bridge.
type EthModule struct {
	blockAPI BlockAPI
	coreAPI  CoreAPI
}

// EthBlockNumberRequest selects a block by hex-encoded number or one of
// the tags "latest", "finalized", "earliest".
type EthBlockNumberRequest struct {
	Number string `json:"number" validate:"required"`
}

// EthRawTransactionRequest is a raw hex-encoded transaction.
type EthRawTransactionRequest struct {
	Data string `json:"data" validate:"required"`
}

// EthBlockResponse is the block header in EVM-bridge form.
type EthBlockResponse struct {
	Hash         common.Hash   `json:"hash"`
	ParentHash   common.Hash   `json:"parentHash"`
	Number       string        `json:"number"`
	StateRoot    common.Hash   `json:"stateRoot"`
	Transactions []common.Hash `json:"transactions"`
}

// NewEthModule creates the EVM compatibility module.
func NewEthModule(blockAPI BlockAPI, coreAPI CoreAPI) *EthModule {
	return &EthModule{
		blockAPI: blockAPI,
		coreAPI:  coreAPI,
	}
}

// BlockNumber returns the best block number in hex.
func (em *EthModule) BlockNumber(r *http.Request, req *EmptyRequest, res *string) error {
	header, err := em.blockAPI.GetHeader(em.blockAPI.BestBlockHash())
	if err != nil {
		return err
	}
	*res = hexUint(header.Number)
	return nil
}

// SendRawTransaction admits a raw transaction through the same validation
// path as author_submitExtrinsic and returns its hash.
func (em *EthModule) SendRawTransaction(r *http.Request, req *EthRawTransactionRequest, res *common.Hash) error {
	data, err := common.HexToBytes(req.Data)
	if err != nil {
		return err
	}

	hash, err := em.coreAPI.HandleSubmittedExtrinsic(types.Extrinsic(data))
	if err != nil {
		return err
	}
	*res = hash
	return nil
}

// GetBlockByNumber returns the block at the given number on the best
// chain.
func (em *EthModule) GetBlockByNumber(r *http.Request, req *EthBlockNumberRequest, res *EthBlockResponse) error {
	header, err := em.headerByNumber(req.Number)
	if err != nil {
		return err
	}

	hash := header.Hash()
	body, err := em.blockAPI.GetBlockBody(hash)
	if err != nil {
		return err
	}

	txs := make([]common.Hash, 0, len(*body))
	for _, ext := range body.Extrinsics() {
		txs = append(txs, ext.Hash())
	}

	*res = EthBlockResponse{
		Hash:         hash,
		ParentHash:   header.ParentHash,
		Number:       hexUint(header.Number),
		StateRoot:    header.StateRoot,
		Transactions: txs,
	}
	return nil
}

// headerByNumber resolves a number or tag by walking the best chain back
// from its head.
func (em *EthModule) headerByNumber(number string) (*types.Header, error) {
	start := em.blockAPI.BestBlockHash()

	var target uint64
	switch strings.ToLower(number) {
	case "latest", "pending":
		return em.blockAPI.GetHeader(start)
	case "finalized", "safe":
		return em.blockAPI.GetHeader(em.blockAPI.FinalisedHash())
	case "earliest":
		return em.blockAPI.GetHeader(em.blockAPI.GenesisHash())
	default:
		n, err := strconv.ParseUint(strings.TrimPrefix(number, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed block number %q: %w", number, err)
		}
		target = n
	}

	header, err := em.blockAPI.GetHeader(start)
	if err != nil {
		return nil, err
	}
	if target > header.Number {
		return nil, fmt.Errorf("%w: number %d beyond best block %d",
			ErrBlockNotFound, target, header.Number)
	}

	for header.Number > target {
		header, err = em.blockAPI.GetHeader(header.ParentHash)
		if err != nil {
			return nil, err
		}
	}
	return header, nil
}

func hexUint(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}
