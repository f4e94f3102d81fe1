// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package ember

import (
	"net"
	"testing"
	"time"

	log "github.com/ChainSafe/log15"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/ember/state"
	"github.com/emberchain/ember/lib/keystore"
)

func availablePort(t *testing.T) uint32 {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close() //nolint:errcheck
	return uint32(l.Addr().(*net.TCPAddr).Port)
}

// devNodeConfig returns a quiet single-authority dev configuration with
// in-memory state and no RPC surface.
func devNodeConfig(t *testing.T, mode ConsensusMode) *Config {
	t.Helper()

	cfg := DevConfig()
	cfg.Global.LogLvl = log.LvlError
	cfg.Log = LogConfig{
		CoreLvl:      log.LvlError,
		NetworkLvl:   log.LvlError,
		RPCLvl:       log.LvlError,
		StateLvl:     log.LvlError,
		AuthorLvl:    log.LvlError,
		FinalityLvl:  log.LvlError,
		CollationLvl: log.LvlError,
	}
	cfg.Core.Mode = mode
	cfg.Network.Port = availablePort(t)
	cfg.RPC.Enabled = false
	return cfg
}

func devKeystore(t *testing.T) *keystore.GlobalKeystore {
	t.Helper()

	ks := keystore.NewGlobalKeystore()
	require.NoError(t, keystore.LoadKeyring("alice", ks))
	return ks
}

func TestNewNode_InvalidMode(t *testing.T) {
	cfg := devNodeConfig(t, "plurality")
	_, err := NewNode(cfg, devKeystore(t))
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestNewNode_UnknownVariant(t *testing.T) {
	cfg := devNodeConfig(t, SoloMode)
	cfg.Core.Variant = "ember-wasm"
	_, err := NewNode(cfg, devKeystore(t))
	require.Error(t, err)
}

func TestNewNode_AuthorityWithoutKeys(t *testing.T) {
	cfg := devNodeConfig(t, SoloMode)
	_, err := NewNode(cfg, keystore.NewGlobalKeystore())
	require.ErrorIs(t, err, ErrNoKeysProvided)
}

func TestNewNode_Solo(t *testing.T) {
	cfg := devNodeConfig(t, SoloMode)
	node, err := NewNode(cfg, devKeystore(t))
	require.NoError(t, err)
	require.Equal(t, cfg.Global.Name, node.Name)
	require.NotNil(t, node.Services)
	require.Nil(t, node.localRelay)
}

func TestNewNode_Collator(t *testing.T) {
	cfg := devNodeConfig(t, CollatorMode)
	node, err := NewNode(cfg, devKeystore(t))
	require.NoError(t, err)
	require.NotNil(t, node.localRelay)
}

// TestNode_SoloAuthorsAndFinalises runs a full single-authority node and
// waits for it to author and finalise blocks on its own.
func TestNode_SoloAuthorsAndFinalises(t *testing.T) {
	if testing.Short() {
		t.Skip("full node run")
	}

	cfg := devNodeConfig(t, SoloMode)
	node, err := NewNode(cfg, devKeystore(t))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, node.Start())
	}()

	stateSrvc := node.Services.Get(&state.Service{}).(*state.Service)
	genesisHash := stateSrvc.Block.GenesisHash()

	require.Eventually(t, func() bool {
		best, err := stateSrvc.Block.BestBlockHeader()
		if err != nil {
			return false
		}
		return best.Number >= 2 && stateSrvc.Block.FinalisedHash() != genesisHash
	}, 30*time.Second, 250*time.Millisecond)

	node.Stop()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("node did not shut down")
	}
	require.False(t, node.Interrupted())
}
