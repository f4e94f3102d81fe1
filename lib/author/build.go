// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package author

import (
	"fmt"

	"github.com/emberchain/ember/ember/types"
)

// buildBlock assembles a candidate on top of the given parent from the
// pool's best transactions and seals it with the local key. The candidate
// is owned by the authoring loop until the import handler accepts it.
func (s *Service) buildBlock(parent *types.Header, claim *SlotClaim,
	anchor *types.RelayAnchor) (*types.Block, error) {
	txs := s.transactionState.Best(s.bodyBudget)

	exts := make([]types.Extrinsic, len(txs))
	for i, tx := range txs {
		exts[i] = tx.Extrinsic
	}
	body := *types.NewBody(exts)

	header := types.NewHeader(parent.Hash(), parent.StateRoot,
		types.ExtrinsicsRoot(body), parent.Number+1, claim.Slot)
	header.RelayAnchor = anchor

	sig, err := s.keypair.Sign(header.SigningPayload())
	if err != nil {
		return nil, fmt.Errorf("failed to seal candidate: %w", err)
	}
	header.Seal = &types.SealDigest{
		AuthorityIndex: claim.AuthorityIndex,
		Signature:      sig,
	}

	block := types.NewBlock(*header, body)
	return &block, nil
}
