// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package modules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/lib/common"
)

type fakeNetworkAPI struct{}

func (fakeNetworkAPI) Health() common.Health {
	return common.Health{Peers: 3, IsSyncing: false, ShouldHavePeers: true}
}

func (fakeNetworkAPI) NetworkState() common.NetworkState {
	return common.NetworkState{PeerID: "12D3KooWTest"}
}

func (fakeNetworkAPI) Peers() []common.PeerInfo {
	return []common.PeerInfo{{PeerID: "12D3KooWPeer", BestHash: common.Hash{0x01}}}
}

type fakeSystemAPI struct{}

func (fakeSystemAPI) SystemName() string    { return "ember" }
func (fakeSystemAPI) SystemVersion() string { return "0.1.0" }
func (fakeSystemAPI) ChainName() string     { return "Ember Devnet" }
func (fakeSystemAPI) ChainType() string     { return "Development" }

func (fakeSystemAPI) Properties() map[string]any {
	return map[string]any{"tokenSymbol": "EMBR"}
}

func newSystemModule() *SystemModule {
	return NewSystemModule(fakeNetworkAPI{}, fakeSystemAPI{})
}

func TestSystemModule_NodeMetadata(t *testing.T) {
	sm := newSystemModule()

	var res string
	require.NoError(t, sm.Name(nil, &EmptyRequest{}, &res))
	require.Equal(t, "ember", res)

	require.NoError(t, sm.Version(nil, &EmptyRequest{}, &res))
	require.Equal(t, "0.1.0", res)

	require.NoError(t, sm.Chain(nil, &EmptyRequest{}, &res))
	require.Equal(t, "Ember Devnet", res)

	require.NoError(t, sm.ChainType(nil, &EmptyRequest{}, &res))
	require.Equal(t, "Development", res)

	var props interface{}
	require.NoError(t, sm.Properties(nil, &EmptyRequest{}, &props))
	require.Equal(t, map[string]any{"tokenSymbol": "EMBR"}, props)
}

func TestSystemModule_Network(t *testing.T) {
	sm := newSystemModule()

	var health SystemHealthResponse
	require.NoError(t, sm.Health(nil, &EmptyRequest{}, &health))
	require.Equal(t, 3, health.Peers)
	require.True(t, health.ShouldHavePeers)

	var state SystemNetworkStateResponse
	require.NoError(t, sm.NetworkState(nil, &EmptyRequest{}, &state))
	require.Equal(t, "12D3KooWTest", state.NetworkState.PeerID)

	var peers SystemPeersResponse
	require.NoError(t, sm.Peers(nil, &EmptyRequest{}, &peers))
	require.Len(t, peers, 1)
	require.Equal(t, "12D3KooWPeer", peers[0].PeerID)
}
