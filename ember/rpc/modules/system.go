// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package modules

import (
	"net/http"

	"github.com/emberchain/ember/lib/common"
)

// SystemModule is an RPC module providing node and network metadata.
type SystemModule struct {
	networkAPI NetworkAPI
	systemAPI  SystemAPI
}

// EmptyRequest represents an RPC request with no fields.
type EmptyRequest struct{}

// SystemHealthResponse struct to marshal json.
type SystemHealthResponse common.Health

// SystemNetworkStateResponse struct to marshal json.
type SystemNetworkStateResponse struct {
	NetworkState common.NetworkState `json:"networkState"`
}

// SystemPeersResponse struct to marshal json.
type SystemPeersResponse []common.PeerInfo

// NewSystemModule creates a new system RPC module.
func NewSystemModule(net NetworkAPI, sys SystemAPI) *SystemModule {
	return &SystemModule{
		networkAPI: net,
		systemAPI:  sys,
	}
}

// Chain returns the chain name.
func (sm *SystemModule) Chain(r *http.Request, req *EmptyRequest, res *string) error {
	*res = sm.systemAPI.ChainName()
	return nil
}

// ChainType returns the chain type.
func (sm *SystemModule) ChainType(r *http.Request, req *EmptyRequest, res *string) error {
	*res = sm.systemAPI.ChainType()
	return nil
}

// Name returns the node implementation name.
func (sm *SystemModule) Name(r *http.Request, req *EmptyRequest, res *string) error {
	*res = sm.systemAPI.SystemName()
	return nil
}

// Version returns the node implementation version.
func (sm *SystemModule) Version(r *http.Request, req *EmptyRequest, res *string) error {
	*res = sm.systemAPI.SystemVersion()
	return nil
}

// Properties returns the chain spec properties.
func (sm *SystemModule) Properties(r *http.Request, req *EmptyRequest, res *interface{}) error {
	*res = sm.systemAPI.Properties()
	return nil
}

// Health returns the health of the network.
func (sm *SystemModule) Health(r *http.Request, req *EmptyRequest, res *SystemHealthResponse) error {
	*res = SystemHealthResponse(sm.networkAPI.Health())
	return nil
}

// NetworkState returns the local node's network identity.
func (sm *SystemModule) NetworkState(r *http.Request, req *EmptyRequest, res *SystemNetworkStateResponse) error {
	res.NetworkState = sm.networkAPI.NetworkState()
	return nil
}

// Peers returns the currently connected peers.
func (sm *SystemModule) Peers(r *http.Request, req *EmptyRequest, res *SystemPeersResponse) error {
	*res = sm.networkAPI.Peers()
	return nil
}
