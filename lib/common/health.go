// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package common

// Health is network health status, exposed via the system_health RPC method.
type Health struct {
	Peers           int  `json:"peers"`
	IsSyncing       bool `json:"isSyncing"`
	ShouldHavePeers bool `json:"shouldHavePeers"`
}

// PeerInfo describes a connected peer.
type PeerInfo struct {
	PeerID     string `json:"peerId"`
	BestHash   Hash   `json:"bestHash"`
	BestNumber uint64 `json:"bestNumber"`
}

// NetworkState is the node's own network identity.
type NetworkState struct {
	PeerID     string   `json:"peerId"`
	Multiaddrs []string `json:"multiaddrs"`
}
