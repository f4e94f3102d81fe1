// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package blocktree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

func testRoot(t *testing.T) *types.Header {
	t.Helper()
	return types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)
}

func childHeader(parent *types.Header, slot uint64) *types.Header {
	h := types.NewHeader(parent.Hash(), common.Hash{}, common.Hash{}, parent.Number+1, slot)
	// differentiate siblings built at the same slot
	h.StateRoot = common.MustBlake2bHash([]byte{byte(slot)})
	return h
}

func TestBlockTree_AddBlock(t *testing.T) {
	root := testRoot(t)
	bt := NewBlockTreeFromRoot(root)

	child := childHeader(root, 1)
	require.NoError(t, bt.AddBlock(child, 1))

	require.True(t, bt.HasHash(child.Hash()))
	require.Equal(t, child.Hash(), bt.BestBlockHash())

	num, err := bt.GetNumber(child.Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(1), num)
}

func TestBlockTree_AddBlockErrors(t *testing.T) {
	root := testRoot(t)
	bt := NewBlockTreeFromRoot(root)

	orphan := types.NewHeader(common.MustBlake2bHash([]byte("unknown")),
		common.Hash{}, common.Hash{}, 5, 5)
	require.ErrorIs(t, bt.AddBlock(orphan, 1), ErrParentNotFound)

	child := childHeader(root, 1)
	require.NoError(t, bt.AddBlock(child, 1))
	require.ErrorIs(t, bt.AddBlock(child, 1), ErrBlockExists)
}

func TestBlockTree_BestBlockPrefersWeight(t *testing.T) {
	root := testRoot(t)
	bt := NewBlockTreeFromRoot(root)

	// two forks off the root: a longer light chain and a shorter heavy one
	light1 := childHeader(root, 1)
	require.NoError(t, bt.AddBlock(light1, 1))
	light2 := childHeader(light1, 2)
	require.NoError(t, bt.AddBlock(light2, 1))

	heavy := childHeader(root, 3)
	require.NoError(t, bt.AddBlock(heavy, 5))

	require.Equal(t, heavy.Hash(), bt.BestBlockHash())
}

func TestBlockTree_BestBlockEqualWeightPrefersNumber(t *testing.T) {
	root := testRoot(t)
	bt := NewBlockTreeFromRoot(root)

	short := childHeader(root, 1)
	require.NoError(t, bt.AddBlock(short, 2))

	long1 := childHeader(root, 2)
	require.NoError(t, bt.AddBlock(long1, 1))
	long2 := childHeader(long1, 3)
	require.NoError(t, bt.AddBlock(long2, 1))

	require.Equal(t, long2.Hash(), bt.BestBlockHash())
}

func TestBlockTree_BestBlockTieBreaksLowestHash(t *testing.T) {
	root := testRoot(t)
	bt := NewBlockTreeFromRoot(root)

	a := childHeader(root, 1)
	b := childHeader(root, 2)
	require.NoError(t, bt.AddBlock(a, 1))
	require.NoError(t, bt.AddBlock(b, 1))

	want := a.Hash()
	if b.Hash().Cmp(want) < 0 {
		want = b.Hash()
	}
	require.Equal(t, want, bt.BestBlockHash())
}

func TestBlockTree_IsDescendantOf(t *testing.T) {
	root := testRoot(t)
	bt := NewBlockTreeFromRoot(root)

	a := childHeader(root, 1)
	require.NoError(t, bt.AddBlock(a, 1))
	b := childHeader(a, 2)
	require.NoError(t, bt.AddBlock(b, 1))
	other := childHeader(root, 3)
	require.NoError(t, bt.AddBlock(other, 1))

	is, err := bt.IsDescendantOf(a.Hash(), b.Hash())
	require.NoError(t, err)
	require.True(t, is)

	is, err = bt.IsDescendantOf(a.Hash(), a.Hash())
	require.NoError(t, err)
	require.True(t, is)

	is, err = bt.IsDescendantOf(a.Hash(), other.Hash())
	require.NoError(t, err)
	require.False(t, is)

	_, err = bt.IsDescendantOf(common.MustBlake2bHash([]byte("x")), b.Hash())
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestBlockTree_Subchain(t *testing.T) {
	root := testRoot(t)
	bt := NewBlockTreeFromRoot(root)

	a := childHeader(root, 1)
	require.NoError(t, bt.AddBlock(a, 1))
	b := childHeader(a, 2)
	require.NoError(t, bt.AddBlock(b, 1))
	fork := childHeader(root, 3)
	require.NoError(t, bt.AddBlock(fork, 1))

	chain, err := bt.Subchain(root.Hash(), b.Hash())
	require.NoError(t, err)
	require.Equal(t, []Hash{root.Hash(), a.Hash(), b.Hash()}, chain)

	_, err = bt.Subchain(a.Hash(), fork.Hash())
	require.ErrorIs(t, err, ErrDescendantNotFound)
}

func TestBlockTree_Prune(t *testing.T) {
	root := testRoot(t)
	bt := NewBlockTreeFromRoot(root)

	a := childHeader(root, 1)
	require.NoError(t, bt.AddBlock(a, 1))
	b := childHeader(a, 2)
	require.NoError(t, bt.AddBlock(b, 1))
	fork := childHeader(root, 3)
	require.NoError(t, bt.AddBlock(fork, 1))

	pruned, err := bt.Prune(a.Hash())
	require.NoError(t, err)
	require.ElementsMatch(t, []Hash{root.Hash(), fork.Hash()}, pruned)

	require.Equal(t, a.Hash(), bt.RootHash())
	require.True(t, bt.HasHash(b.Hash()))
	require.False(t, bt.HasHash(fork.Hash()))

	// pruning at the current root is a no-op
	pruned, err = bt.Prune(a.Hash())
	require.NoError(t, err)
	require.Empty(t, pruned)
}
