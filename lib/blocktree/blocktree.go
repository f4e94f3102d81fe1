// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package blocktree

import (
	"errors"
	"sync"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

// Hash common.Hash
type Hash = common.Hash

var (
	// ErrParentNotFound is returned when the inserted block's parent is not
	// in the tree.
	ErrParentNotFound = errors.New("cannot find parent block in blocktree")

	// ErrBlockExists is returned when the inserted block is already in the tree.
	ErrBlockExists = errors.New("cannot add block to blocktree that already exists")

	// ErrNodeNotFound is returned when a lookup hash is not in the tree.
	ErrNodeNotFound = errors.New("could not find node in blocktree")

	// ErrDescendantNotFound is returned when two blocks are on different branches.
	ErrDescendantNotFound = errors.New("could not find descendant block")
)

// BlockTree tracks all unfinalised candidate chains above the most recently
// finalised block (the root). Fork choice prefers the chain with the greatest
// cumulative authoring weight; ties break to the lowest head hash so every
// node computes the same best block.
type BlockTree struct {
	sync.RWMutex
	root   *node
	leaves map[Hash]*node
	nodes  map[Hash]*node
}

// node is an element in the BlockTree.
type node struct {
	hash     Hash
	parent   *node
	children []*node
	number   uint64
	weight   uint64 // cumulative authoring weight from root
}

// NewBlockTreeFromRoot initialises a blocktree rooted at the given header.
// The root is always the most recently finalised block (the genesis block
// when the node is just starting).
func NewBlockTreeFromRoot(root *types.Header) *BlockTree {
	n := &node{
		hash:   root.Hash(),
		number: root.Number,
	}

	bt := &BlockTree{
		root:   n,
		leaves: map[Hash]*node{n.hash: n},
		nodes:  map[Hash]*node{n.hash: n},
	}
	return bt
}

// RootHash returns the hash of the tree root.
func (bt *BlockTree) RootHash() Hash {
	bt.RLock()
	defer bt.RUnlock()
	return bt.root.hash
}

// AddBlock inserts the header as a child of its parent with the given
// authoring weight (the weight of the authority that authored it).
func (bt *BlockTree) AddBlock(header *types.Header, authoringWeight uint64) error {
	bt.Lock()
	defer bt.Unlock()

	parent, has := bt.nodes[header.ParentHash]
	if !has {
		return ErrParentNotFound
	}

	hash := header.Hash()
	if _, has := bt.nodes[hash]; has {
		return ErrBlockExists
	}

	n := &node{
		hash:   hash,
		parent: parent,
		number: header.Number,
		weight: parent.weight + authoringWeight,
	}
	parent.children = append(parent.children, n)

	bt.nodes[hash] = n
	delete(bt.leaves, parent.hash)
	bt.leaves[hash] = n
	return nil
}

// BestBlockHash returns the head of the preferred chain: the leaf with the
// greatest cumulative weight, ties broken by greatest number then lowest hash.
func (bt *BlockTree) BestBlockHash() Hash {
	bt.RLock()
	defer bt.RUnlock()

	var best *node
	for _, leaf := range bt.leaves {
		if best == nil {
			best = leaf
			continue
		}

		switch {
		case leaf.weight > best.weight:
			best = leaf
		case leaf.weight == best.weight && leaf.number > best.number:
			best = leaf
		case leaf.weight == best.weight && leaf.number == best.number &&
			leaf.hash.Cmp(best.hash) < 0:
			best = leaf
		}
	}

	if best == nil {
		return bt.root.hash
	}
	return best.hash
}

// HasHash returns true if the hash is in the tree.
func (bt *BlockTree) HasHash(hash Hash) bool {
	bt.RLock()
	defer bt.RUnlock()
	_, has := bt.nodes[hash]
	return has
}

// GetNumber returns the block number of the given hash.
func (bt *BlockTree) GetNumber(hash Hash) (uint64, error) {
	bt.RLock()
	defer bt.RUnlock()

	n, has := bt.nodes[hash]
	if !has {
		return 0, ErrNodeNotFound
	}
	return n.number, nil
}

// Leaves returns the hashes of all leaf blocks.
func (bt *BlockTree) Leaves() []Hash {
	bt.RLock()
	defer bt.RUnlock()

	hashes := make([]Hash, 0, len(bt.leaves))
	for hash := range bt.leaves {
		hashes = append(hashes, hash)
	}
	return hashes
}

// IsDescendantOf returns true if child is a descendant of (or equal to)
// ancestor. Used by the finality gadget to detect equivocating votes.
func (bt *BlockTree) IsDescendantOf(ancestor, child Hash) (bool, error) {
	bt.RLock()
	defer bt.RUnlock()

	a, has := bt.nodes[ancestor]
	if !has {
		return false, ErrNodeNotFound
	}
	c, has := bt.nodes[child]
	if !has {
		return false, ErrNodeNotFound
	}

	for n := c; n != nil; n = n.parent {
		if n == a {
			return true, nil
		}
	}
	return false, nil
}

// Subchain returns the hashes between start and end inclusive, or
// ErrDescendantNotFound if end does not descend from start.
func (bt *BlockTree) Subchain(start, end Hash) ([]Hash, error) {
	bt.RLock()
	defer bt.RUnlock()

	s, has := bt.nodes[start]
	if !has {
		return nil, ErrNodeNotFound
	}
	e, has := bt.nodes[end]
	if !has {
		return nil, ErrNodeNotFound
	}

	var chain []Hash
	for n := e; n != nil; n = n.parent {
		chain = append(chain, n.hash)
		if n == s {
			// reverse into root-to-head order
			for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
				chain[i], chain[j] = chain[j], chain[i]
			}
			return chain, nil
		}
	}
	return nil, ErrDescendantNotFound
}

// Prune sets the finalised block as the new root and discards every branch
// not containing it. Returns the hashes of pruned blocks.
func (bt *BlockTree) Prune(finalised Hash) (pruned []Hash, err error) {
	bt.Lock()
	defer bt.Unlock()

	newRoot, has := bt.nodes[finalised]
	if !has {
		return nil, ErrNodeNotFound
	}

	if newRoot == bt.root {
		return nil, nil
	}

	// everything not on or below the finalised block is discarded
	keep := make(map[Hash]bool)
	var mark func(n *node)
	mark = func(n *node) {
		keep[n.hash] = true
		for _, c := range n.children {
			mark(c)
		}
	}
	mark(newRoot)

	for hash := range bt.nodes {
		if !keep[hash] {
			pruned = append(pruned, hash)
			delete(bt.nodes, hash)
			delete(bt.leaves, hash)
		}
	}

	newRoot.parent = nil
	bt.root = newRoot
	if len(newRoot.children) == 0 {
		bt.leaves[newRoot.hash] = newRoot
	}
	return pruned, nil
}
