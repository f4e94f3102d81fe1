// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package ember

import (
	"github.com/emberchain/ember/lib/genesis"
)

// Node implementation identity reported through system_name and
// system_version.
const (
	NodeName    = "ember"
	NodeVersion = "0.1.0"
)

// systemService answers the system RPC module from the persisted genesis
// data.
type systemService struct {
	data *genesis.Data
}

func newSystemService(data *genesis.Data) *systemService {
	return &systemService{data: data}
}

// Start implements services.Service.
func (s *systemService) Start() error { return nil }

// Stop implements services.Service.
func (s *systemService) Stop() error { return nil }

// SystemName implements modules.SystemAPI.
func (s *systemService) SystemName() string { return NodeName }

// SystemVersion implements modules.SystemAPI.
func (s *systemService) SystemVersion() string { return NodeVersion }

// ChainName implements modules.SystemAPI.
func (s *systemService) ChainName() string { return s.data.Name }

// ChainType implements modules.SystemAPI.
func (s *systemService) ChainType() string { return s.data.ChainType }

// Properties implements modules.SystemAPI.
func (s *systemService) Properties() map[string]any { return s.data.Properties }
