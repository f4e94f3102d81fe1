// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"encoding/binary"
	"testing"

	"github.com/ChainSafe/chaindb"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

func newTestBlockState(t *testing.T) (*BlockState, *types.Header) {
	t.Helper()

	db, err := chaindb.NewBadgerDB(&chaindb.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	root := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)
	bs, err := NewBlockState(db, root)
	require.NoError(t, err)
	return bs, root
}

// childBlock builds a child of parent at the given slot. The slot is folded
// into the state root so siblings at the same slot hash differently.
func childBlock(parent *types.Header, slot uint64) *types.Block {
	stateRoot := common.MustBlake2bHash(binary.LittleEndian.AppendUint64(nil, slot))
	body := types.Body{types.Extrinsic("tx at slot " +
		string(rune('a'+slot%26)))}
	header := types.NewHeader(parent.Hash(), stateRoot,
		types.ExtrinsicsRoot(body), parent.Number+1, slot)
	return &types.Block{Header: *header, Body: body}
}

func TestBlockState_AddBlock(t *testing.T) {
	bs, root := newTestBlockState(t)

	block := childBlock(root, 1)
	require.NoError(t, bs.AddBlock(block, 1))

	require.True(t, bs.HasHeader(block.Hash()))
	require.Equal(t, block.Hash(), bs.BestBlockHash())

	header, err := bs.GetHeader(block.Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(1), header.Number)

	body, err := bs.GetBlockBody(block.Hash())
	require.NoError(t, err)
	require.Equal(t, block.Body, *body)

	best, err := bs.BestBlockHeader()
	require.NoError(t, err)
	require.Equal(t, block.Hash(), best.Hash())
}

func TestBlockState_GetHeaderNotFound(t *testing.T) {
	bs, _ := newTestBlockState(t)

	_, err := bs.GetHeader(common.Hash{0x01})
	require.ErrorIs(t, err, ErrHeaderNotFound)

	_, err = bs.GetBlockBody(common.Hash{0x01})
	require.ErrorIs(t, err, ErrBodyNotFound)
}

func TestBlockState_HeavierForkWins(t *testing.T) {
	bs, root := newTestBlockState(t)

	light := childBlock(root, 1)
	require.NoError(t, bs.AddBlock(light, 1))
	require.Equal(t, light.Hash(), bs.BestBlockHash())

	heavy := childBlock(root, 2)
	require.NoError(t, bs.AddBlock(heavy, 5))
	require.Equal(t, heavy.Hash(), bs.BestBlockHash())
}

func TestBlockState_SetFinalisedHash(t *testing.T) {
	bs, root := newTestBlockState(t)

	canonical := childBlock(root, 1)
	fork := childBlock(root, 2)
	require.NoError(t, bs.AddBlock(canonical, 2))
	require.NoError(t, bs.AddBlock(fork, 1))

	require.NoError(t, bs.SetFinalisedHash(canonical.Hash()))
	require.Equal(t, canonical.Hash(), bs.FinalisedHash())
	require.Equal(t, canonical.Hash(), bs.BestBlockHash())

	// the competing fork is pruned
	require.False(t, bs.HasHeader(fork.Hash()))
	_, err := bs.GetBlockBody(fork.Hash())
	require.ErrorIs(t, err, ErrBodyNotFound)
}

func TestBlockState_FinalisedHistoryQueryable(t *testing.T) {
	bs, root := newTestBlockState(t)

	b1 := childBlock(root, 1)
	require.NoError(t, bs.AddBlock(b1, 1))
	b2 := childBlock(&b1.Header, 2)
	require.NoError(t, bs.AddBlock(b2, 1))

	require.NoError(t, bs.SetFinalisedHash(b2.Hash()))

	// ancestors of the finalised head leave memory but stay queryable
	require.True(t, bs.HasHeader(root.Hash()))

	header, err := bs.GetHeader(b1.Hash())
	require.NoError(t, err)
	require.Equal(t, b1.Hash(), header.Hash())

	body, err := bs.GetBlockBody(b1.Hash())
	require.NoError(t, err)
	require.Equal(t, b1.Body, *body)

	rootBody, err := bs.GetBlockBody(root.Hash())
	require.NoError(t, err)
	require.Empty(t, *rootBody)
}

func TestBlockState_SetFinalisedHashUnknown(t *testing.T) {
	bs, _ := newTestBlockState(t)

	err := bs.SetFinalisedHash(common.Hash{0xde, 0xad})
	require.ErrorIs(t, err, ErrHeaderNotFound)
}

func TestBlockState_ImportedNotifier(t *testing.T) {
	bs, root := newTestBlockState(t)

	ch := bs.GetImportedBlockNotifierChannel()
	defer bs.FreeImportedBlockNotifierChannel(ch)

	block := childBlock(root, 1)
	require.NoError(t, bs.AddBlock(block, 1))

	select {
	case got := <-ch:
		require.Equal(t, block.Hash(), got.Hash())
	default:
		t.Fatal("expected imported block notification")
	}
}

func TestBlockState_FinalisedNotifier(t *testing.T) {
	bs, root := newTestBlockState(t)

	ch := bs.GetFinalisedNotifierChannel()
	block := childBlock(root, 1)
	require.NoError(t, bs.AddBlock(block, 1))
	require.NoError(t, bs.SetFinalisedHash(block.Hash()))

	select {
	case got := <-ch:
		require.Equal(t, block.Hash(), got.Hash())
	default:
		t.Fatal("expected finalised header notification")
	}

	// a freed channel no longer receives
	bs.FreeFinalisedNotifierChannel(ch)
	next := childBlock(&block.Header, 2)
	require.NoError(t, bs.AddBlock(next, 1))
	require.NoError(t, bs.SetFinalisedHash(next.Hash()))
	require.Len(t, ch, 0)
}

func TestBlockState_Subchain(t *testing.T) {
	bs, root := newTestBlockState(t)

	b1 := childBlock(root, 1)
	require.NoError(t, bs.AddBlock(b1, 1))
	b2 := childBlock(&b1.Header, 2)
	require.NoError(t, bs.AddBlock(b2, 1))

	chain, err := bs.Subchain(root.Hash(), b2.Hash())
	require.NoError(t, err)
	require.Equal(t, []common.Hash{root.Hash(), b1.Hash(), b2.Hash()}, chain)

	is, err := bs.IsDescendantOf(root.Hash(), b2.Hash())
	require.NoError(t, err)
	require.True(t, is)

	require.ElementsMatch(t, []common.Hash{b2.Hash()}, bs.Leaves())
}
