// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package network

import (
	"sync"

	"github.com/emberchain/ember/lib/common"
)

// gossip tracks message hashes already seen so payloads are handled and
// re-published at most once.
type gossip struct {
	seen *sync.Map
}

func newGossip() *gossip {
	return &gossip{
		seen: &sync.Map{},
	}
}

func (g *gossip) hasSeen(hash common.Hash) bool {
	if seen, ok := g.seen.Load(hash); !ok || !seen.(bool) {
		g.seen.Store(hash, true)
		return false
	}
	return true
}
