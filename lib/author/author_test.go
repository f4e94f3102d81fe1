// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package author

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/keystore"
	"github.com/emberchain/ember/lib/transaction"
)

type testEpochState struct {
	set        *types.AuthoritySet
	randomness common.Hash
}

func (e *testEpochState) CurrentEpoch() uint64 { return 0 }
func (e *testEpochState) EpochForSlot(uint64) uint64 { return 0 }
func (e *testEpochState) AuthoritySet(uint64) (*types.AuthoritySet, error) { return e.set, nil }
func (e *testEpochState) Randomness(uint64) common.Hash { return e.randomness }
func (e *testEpochState) SlotDuration() uint64 { return 1000 }
func (e *testEpochState) EpochLength() uint64 { return 200 }

type testBlockState struct {
	best *types.Header
}

func (b *testBlockState) BestBlockHeader() (*types.Header, error) { return b.best, nil }

type testTransactionState struct {
	txs []*transaction.ValidTransaction
}

func (t *testTransactionState) Best(budget int) []*transaction.ValidTransaction {
	if len(t.txs) > budget {
		return t.txs[:budget]
	}
	return t.txs
}

type testImportHandler struct {
	blocks []*types.Block
}

func (h *testImportHandler) HandleBlockProduced(block *types.Block) error {
	h.blocks = append(h.blocks, block)
	return nil
}

type staticAnchors struct {
	anchor *types.RelayAnchor
}

func (a *staticAnchors) ConsumeAnchor() *types.RelayAnchor {
	anchor := a.anchor
	a.anchor = nil
	return anchor
}

func testAuthoritySet(t *testing.T, count int) (*types.AuthoritySet, *keystore.Keyring) {
	t.Helper()

	kr, err := keystore.NewKeyring()
	require.NoError(t, err)

	authorities := make([]*types.Authority, count)
	for i := 0; i < count; i++ {
		authorities[i] = types.NewAuthority(kr.Keys[i].Public(), 1)
	}

	set, err := types.NewAuthoritySet(0, authorities)
	require.NoError(t, err)
	return set, kr
}

func newTestService(t *testing.T, cfg *ServiceConfig) *Service {
	t.Helper()
	s, err := NewService(cfg)
	require.NoError(t, err)
	return s
}

func TestClaimSlot_Deterministic(t *testing.T) {
	set, _ := testAuthoritySet(t, 3)
	randomness := common.MustBlake2bHash([]byte("epoch-randomness"))

	for slot := uint64(0); slot < 50; slot++ {
		for idx := uint32(0); idx < 3; idx++ {
			a := ClaimSlot(randomness, slot, set, idx)
			b := ClaimSlot(randomness, slot, set, idx)
			require.Equal(t, a, b, "slot %d authority %d", slot, idx)
		}
	}
}

func TestClaimSlot_SecondaryAlwaysEligible(t *testing.T) {
	set, _ := testAuthoritySet(t, 3)
	randomness := common.MustBlake2bHash([]byte("epoch-randomness"))

	// every slot has at least one eligible author: the secondary
	for slot := uint64(0); slot < 50; slot++ {
		idx := secondaryIndex(randomness, slot, 3)
		require.True(t, HoldsClaim(randomness, slot, set, idx), "slot %d", slot)
	}
}

func TestClaimSlot_SingleAuthority(t *testing.T) {
	set, _ := testAuthoritySet(t, 1)
	randomness := common.MustBlake2bHash([]byte("r"))

	// a sole authority claims every slot via the secondary fallback
	for slot := uint64(0); slot < 20; slot++ {
		require.NotNil(t, ClaimSlot(randomness, slot, set, 0))
	}
}

func TestClaimSlot_IndexOutOfRange(t *testing.T) {
	set, _ := testAuthoritySet(t, 1)
	require.Nil(t, ClaimSlot(common.Hash{}, 1, set, 7))
}

func TestNewService_NilChecks(t *testing.T) {
	set, kr := testAuthoritySet(t, 1)
	epochState := &testEpochState{set: set}
	blockState := &testBlockState{best: types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)}
	txState := &testTransactionState{}
	handler := &testImportHandler{}

	testCases := []struct {
		name string
		cfg  *ServiceConfig
		err  error
	}{
		{"nil block state", &ServiceConfig{EpochState: epochState, TransactionState: txState, BlockImportHandler: handler}, ErrNilBlockState},
		{"nil epoch state", &ServiceConfig{BlockState: blockState, TransactionState: txState, BlockImportHandler: handler}, ErrNilEpochState},
		{"nil transaction state", &ServiceConfig{BlockState: blockState, EpochState: epochState, BlockImportHandler: handler}, ErrNilTransactionState},
		{"nil import handler", &ServiceConfig{BlockState: blockState, EpochState: epochState, TransactionState: txState}, ErrNilImportHandler},
		{"authority without keypair", &ServiceConfig{BlockState: blockState, EpochState: epochState, TransactionState: txState, BlockImportHandler: handler, Authority: true}, ErrNilKeypair},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewService(tc.cfg)
			require.ErrorIs(t, err, tc.err)
		})
	}

	_, err := NewService(&ServiceConfig{
		BlockState: blockState, EpochState: epochState,
		TransactionState: txState, BlockImportHandler: handler,
		Authority: true, Keypair: kr.Alice(),
	})
	require.NoError(t, err)
}

func TestHandleSlot_BuildsSealedCandidate(t *testing.T) {
	set, kr := testAuthoritySet(t, 1)
	genesis := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)

	tx := transaction.NewValidTransaction(
		types.NewExtrinsic([]byte(`{"priority":1}`)),
		transaction.NewValidity(1, nil, nil, 64, true))
	handler := &testImportHandler{}

	s := newTestService(t, &ServiceConfig{
		BlockState:         &testBlockState{best: genesis},
		EpochState:         &testEpochState{set: set},
		TransactionState:   &testTransactionState{txs: []*transaction.ValidTransaction{tx}},
		BlockImportHandler: handler,
		Keypair:            kr.Alice(),
		Authority:          true,
	})

	require.NoError(t, s.handleSlot(1))
	require.Len(t, handler.blocks, 1)

	block := handler.blocks[0]
	require.Equal(t, genesis.Hash(), block.Header.ParentHash)
	require.Equal(t, uint64(1), block.Header.Number)
	require.Equal(t, uint64(1), block.Header.Slot)
	require.Equal(t, types.Body{tx.Extrinsic}, block.Body)
	require.Equal(t, types.ExtrinsicsRoot(block.Body), block.Header.ExtrinsicsRoot)

	// the seal must verify against the authoring key
	require.NotNil(t, block.Header.Seal)
	require.Equal(t, uint32(0), block.Header.Seal.AuthorityIndex)
	ok, err := kr.Alice().Public().Verify(block.Header.SigningPayload(), block.Header.Seal.Signature)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHandleSlot_NotAuthority(t *testing.T) {
	set, kr := testAuthoritySet(t, 1)
	genesis := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)

	// bob's key is not in the single-authority set
	s := newTestService(t, &ServiceConfig{
		BlockState:         &testBlockState{best: genesis},
		EpochState:         &testEpochState{set: set},
		TransactionState:   &testTransactionState{},
		BlockImportHandler: &testImportHandler{},
		Keypair:            kr.Bob(),
		Authority:          true,
	})

	require.ErrorIs(t, s.handleSlot(1), ErrNotAuthority)
}

func TestHandleSlot_CollatorModeAnchors(t *testing.T) {
	set, kr := testAuthoritySet(t, 1)
	genesis := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)
	handler := &testImportHandler{}

	anchor := &types.RelayAnchor{
		Hash:   common.MustBlake2bHash([]byte("relay-head")),
		Number: 9,
	}
	anchors := &staticAnchors{anchor: anchor}

	s := newTestService(t, &ServiceConfig{
		BlockState:         &testBlockState{best: genesis},
		EpochState:         &testEpochState{set: set},
		TransactionState:   &testTransactionState{},
		BlockImportHandler: handler,
		Keypair:            kr.Alice(),
		Authority:          true,
		AnchorProvider:     anchors,
	})

	require.NoError(t, s.handleSlot(1))
	require.Len(t, handler.blocks, 1)

	block := handler.blocks[0]
	require.Equal(t, anchor, block.Header.RelayAnchor)

	// the anchor is covered by the seal
	ok, err := kr.Alice().Public().Verify(block.Header.SigningPayload(), block.Header.Seal.Signature)
	require.NoError(t, err)
	require.True(t, ok)

	// the opportunity was consumed; the next slot has none
	require.ErrorIs(t, s.handleSlot(2), ErrNoOpportunity)
	require.Len(t, handler.blocks, 1)
}

func TestHandleSlot_DiscardedAfterStop(t *testing.T) {
	set, kr := testAuthoritySet(t, 1)
	genesis := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)
	handler := &testImportHandler{}

	s := newTestService(t, &ServiceConfig{
		BlockState:         &testBlockState{best: genesis},
		EpochState:         &testEpochState{set: set},
		TransactionState:   &testTransactionState{},
		BlockImportHandler: handler,
		Keypair:            kr.Alice(),
		Authority:          true,
	})

	require.NoError(t, s.Stop())
	require.NoError(t, s.handleSlot(1))
	require.Empty(t, handler.blocks)
}

func TestBodyBudget(t *testing.T) {
	set, kr := testAuthoritySet(t, 1)
	genesis := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)

	txs := make([]*transaction.ValidTransaction, 5)
	for i := range txs {
		txs[i] = transaction.NewValidTransaction(
			types.NewExtrinsic([]byte{byte(i)}),
			transaction.NewValidity(1, nil, nil, 64, true))
	}
	handler := &testImportHandler{}

	s := newTestService(t, &ServiceConfig{
		BlockState:         &testBlockState{best: genesis},
		EpochState:         &testEpochState{set: set},
		TransactionState:   &testTransactionState{txs: txs},
		BlockImportHandler: handler,
		Keypair:            kr.Alice(),
		Authority:          true,
		BodyBudget:         2,
	})

	require.NoError(t, s.handleSlot(1))
	require.Len(t, handler.blocks[0].Body, 2)
}
