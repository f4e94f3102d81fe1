// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package network

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/lib/common"
)

func TestGossip_HasSeen(t *testing.T) {
	g := newGossip()

	hash := common.MustBlake2bHash([]byte("block announcement"))
	require.False(t, g.hasSeen(hash))
	require.True(t, g.hasSeen(hash))
	require.True(t, g.hasSeen(hash))

	other := common.MustBlake2bHash([]byte("different payload"))
	require.False(t, g.hasSeen(other))
}

func TestGossip_HasSeenConcurrent(t *testing.T) {
	g := newGossip()
	hash := common.MustBlake2bHash([]byte("raced payload"))

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if !g.hasSeen(hash) {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, firsts, 1)
	require.True(t, g.hasSeen(hash))
}
