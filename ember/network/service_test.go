// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package network

import (
	"net"
	"sync"
	"testing"
	"time"

	log "github.com/ChainSafe/log15"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

func availablePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck
	return l.Addr().(*net.TCPAddr).Port
}

func startTestService(t *testing.T, bootnodes []string, configure ...func(*Service)) *Service {
	t.Helper()

	srv, err := NewService(&Config{
		ListenAddr:  "127.0.0.1",
		Port:        availablePort(t),
		ProtocolID:  "/ember/test/1",
		Bootnodes:   bootnodes,
		NoBootstrap: true,
		NoMDNS:      true,
		LogLvl:      log.LvlError,
	})
	require.NoError(t, err)
	for _, fn := range configure {
		fn(srv)
	}
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		require.NoError(t, srv.Stop())
	})
	return srv
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(&Config{LogLvl: log.LvlError})
	require.ErrorContains(t, err, "protocol id")

	srv, err := NewService(&Config{ProtocolID: "/ember/test/1", LogLvl: log.LvlError})
	require.NoError(t, err)
	require.Equal(t, DefaultPort, srv.cfg.Port)
	require.Equal(t, "0.0.0.0", srv.cfg.ListenAddr)
}

func TestService_BroadcastBeforeStart(t *testing.T) {
	srv, err := NewService(&Config{ProtocolID: "/ember/test/1", LogLvl: log.LvlError})
	require.NoError(t, err)

	require.Error(t, srv.BroadcastBlock([]byte("payload")))
	require.Error(t, srv.BroadcastTransaction([]byte("payload")))
	require.Error(t, srv.BroadcastVote([]byte("payload")))
	require.Equal(t, "", srv.ID())
	require.Equal(t, 0, srv.PeerCount())
}

func TestService_StartStop(t *testing.T) {
	srv := startTestService(t, nil)

	require.NotEmpty(t, srv.ID())
	require.NotEmpty(t, srv.MultiAddrs())

	state := srv.NetworkState()
	require.Equal(t, srv.ID(), state.PeerID)

	health := srv.Health()
	require.Equal(t, 0, health.Peers)
	require.False(t, health.IsSyncing)

	srv.SetSyncing(true)
	require.True(t, srv.Health().IsSyncing)
}

func TestService_GossipBetweenPeers(t *testing.T) {
	var mu sync.Mutex
	var received [][]byte

	alice := startTestService(t, nil, func(s *Service) {
		s.SetTransactionHandler(func(from peer.ID, data []byte) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, data)
		})
	})
	bob := startTestService(t, alice.MultiAddrs()[:1])

	require.Eventually(t, func() bool {
		return alice.PeerCount() == 1 && bob.PeerCount() == 1
	}, 10*time.Second, 100*time.Millisecond)

	payload := []byte("transfer alice bob 5")
	require.NoError(t, bob.BroadcastTransaction(payload))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && string(received[0]) == string(payload)
	}, 10*time.Second, 100*time.Millisecond)

	// alice has now seen the payload, so her re-broadcast is suppressed
	require.NoError(t, alice.BroadcastTransaction(payload))
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	require.Len(t, received, 1)
	mu.Unlock()

	require.Len(t, alice.Peers(), 1)
	require.Equal(t, bob.ID(), alice.Peers()[0].PeerID)
}
