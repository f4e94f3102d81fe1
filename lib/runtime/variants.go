// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package runtime

import (
	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/genesis"
	"github.com/emberchain/ember/lib/keystore"
)

// Slot timing defaults, overridable per spec file.
const (
	defaultSlotDurationMillis = 3000
	defaultEpochLength        = 200

	devSlotDurationMillis = 1000
	devEpochLength        = 20
)

func init() {
	Register(&Variant{
		Name:        "ember",
		DefaultSpec: emberSpec,
		NewInstance: func() (Instance, error) {
			return newHostedInstance(Version{SpecName: "ember", SpecVersion: 1}, false), nil
		},
	})

	Register(&Variant{
		Name:        "ember-dev",
		DefaultSpec: devSpec,
		NewInstance: func() (Instance, error) {
			return newHostedInstance(Version{SpecName: "ember-dev", SpecVersion: 1}, false), nil
		},
	})

	Register(&Variant{
		Name:        "ember-evm",
		DefaultSpec: emberEVMSpec,
		NewInstance: func() (Instance, error) {
			return newHostedInstance(Version{SpecName: "ember-evm", SpecVersion: 1}, true), nil
		},
		RPCModules: []string{"eth"},
		EVMBridge:  true,
	})
}

// devAuthorities derives the development authority set from the well-known
// keyring accounts, equal weight each.
func devAuthorities(count int) ([]types.AuthorityRaw, error) {
	kr, err := keystore.NewKeyring()
	if err != nil {
		return nil, err
	}

	raw := make([]types.AuthorityRaw, count)
	for i := 0; i < count; i++ {
		raw[i] = types.AuthorityRaw{
			Key:    common.BytesToHex(kr.Keys[i].Public().Encode()),
			Weight: 1,
		}
	}
	return raw, nil
}

func emberSpec() (*genesis.Spec, error) {
	authorities, err := devAuthorities(3)
	if err != nil {
		return nil, err
	}

	return &genesis.Spec{
		Name:               "Ember",
		ID:                 "ember_local",
		ChainType:          "Local",
		ProtocolID:         "/ember/local",
		GenesisState:       map[string]string{"system:code": "0x00"},
		Authorities:        authorities,
		SlotDurationMillis: defaultSlotDurationMillis,
		EpochLength:        defaultEpochLength,
		Properties:         map[string]any{"tokenSymbol": "EMBR", "tokenDecimals": 12},
	}, nil
}

func devSpec() (*genesis.Spec, error) {
	authorities, err := devAuthorities(1)
	if err != nil {
		return nil, err
	}

	return &genesis.Spec{
		Name:               "Ember Development",
		ID:                 "ember_dev",
		ChainType:          "Development",
		ProtocolID:         "/ember/dev",
		GenesisState:       map[string]string{"system:code": "0x00"},
		Authorities:        authorities,
		SlotDurationMillis: devSlotDurationMillis,
		EpochLength:        devEpochLength,
		Properties:         map[string]any{"tokenSymbol": "EMBR", "tokenDecimals": 12},
	}, nil
}

func emberEVMSpec() (*genesis.Spec, error) {
	spec, err := emberSpec()
	if err != nil {
		return nil, err
	}

	spec.Name = "Ember EVM"
	spec.ID = "ember_evm_local"
	spec.ProtocolID = "/ember-evm/local"
	spec.GenesisState["evm:chain_id"] = "0x04d2"
	return spec, nil
}
