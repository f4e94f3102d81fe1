// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package ember

import (
	"fmt"

	"github.com/emberchain/ember/ember/core"
	"github.com/emberchain/ember/ember/network"
	"github.com/emberchain/ember/ember/rpc"
	"github.com/emberchain/ember/ember/state"
	"github.com/emberchain/ember/lib/author"
	"github.com/emberchain/ember/lib/collation"
	"github.com/emberchain/ember/lib/crypto"
	"github.com/emberchain/ember/lib/finality"
	"github.com/emberchain/ember/lib/genesis"
	"github.com/emberchain/ember/lib/keystore"
	"github.com/emberchain/ember/lib/runtime"
)

func createStateService(cfg *Config, spec *genesis.Spec) (*state.Service, error) {
	stateSrvc := state.NewService(&state.Config{
		Path:   cfg.Global.BasePath,
		LogLvl: cfg.Log.StateLvl,
		Spec:   spec,
	})
	if cfg.State.InMemory {
		stateSrvc.UseMemDB()
	}

	if err := stateSrvc.Initialise(spec); err != nil {
		return nil, fmt.Errorf("failed to initialise state service: %w", err)
	}
	if err := stateSrvc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start state service: %w", err)
	}
	return stateSrvc, nil
}

func createRuntime(variant *runtime.Variant) (runtime.Instance, error) {
	rt, err := variant.NewInstance()
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime instance: %w", err)
	}
	return rt, nil
}

func createNetworkService(cfg *Config, spec *genesis.Spec) (*network.Service, error) {
	protocolID := cfg.Network.ProtocolID
	if protocolID == "" {
		protocolID = spec.ProtocolID
	}
	bootnodes := cfg.Network.Bootnodes
	if len(bootnodes) == 0 {
		bootnodes = spec.Bootnodes
	}

	netSrvc, err := network.NewService(&network.Config{
		DataDir:     cfg.Global.BasePath,
		Port:        int(cfg.Network.Port),
		Bootnodes:   bootnodes,
		ProtocolID:  protocolID,
		NoBootstrap: cfg.Network.NoBootstrap,
		NoMDNS:      cfg.Network.NoMDNS,
		MaxPeers:    cfg.Network.MaxPeers,
		LogLvl:      cfg.Log.NetworkLvl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create network service: %w", err)
	}
	return netSrvc, nil
}

func createCoreService(cfg *Config, stateSrvc *state.Service, netSrvc *network.Service,
	rt runtime.Instance, ks *keystore.GlobalKeystore, verifier core.Verifier,
	finalitySrc core.FinalitySource) (*core.Service, error) {
	coreSrvc, err := core.NewService(&core.Config{
		LogLvl:           cfg.Log.CoreLvl,
		BlockState:       stateSrvc.Block,
		EpochState:       stateSrvc.Epoch,
		TransactionState: stateSrvc.Transaction,
		Network:          netSrvc,
		Verifier:         verifier,
		FinalitySource:   finalitySrc,
		Keystore:         ks,
		Runtime:          rt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create core service: %w", err)
	}
	return coreSrvc, nil
}

func createAuthorService(cfg *Config, stateSrvc *state.Service, kp crypto.Keypair,
	coreSrvc *core.Service, anchors author.AnchorProvider) (*author.Service, error) {
	authorSrvc, err := author.NewService(&author.ServiceConfig{
		LogLvl:             cfg.Log.AuthorLvl,
		BlockState:         stateSrvc.Block,
		EpochState:         stateSrvc.Epoch,
		TransactionState:   stateSrvc.Transaction,
		BlockImportHandler: coreSrvc,
		Keypair:            kp,
		Authority:          cfg.Core.Authority,
		BodyBudget:         cfg.Core.BodyBudget,
		AnchorProvider:     anchors,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create author service: %w", err)
	}
	return authorSrvc, nil
}

func createFinalityService(cfg *Config, stateSrvc *state.Service, kp crypto.Keypair,
	netSrvc *network.Service) (*finality.Service, error) {
	finalitySrvc, err := finality.NewService(&finality.ServiceConfig{
		LogLvl:       cfg.Log.FinalityLvl,
		BlockState:   stateSrvc.Block,
		EpochState:   stateSrvc.Epoch,
		Network:      netSrvc,
		Keypair:      kp,
		Authority:    cfg.Core.Authority,
		RoundTimeout: cfg.Core.RoundTimeout,
		QuorumWeight: cfg.Core.QuorumWeight,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create finality service: %w", err)
	}
	return finalitySrvc, nil
}

func createCollationService(cfg *Config, stateSrvc *state.Service,
	relay collation.RelayChain) (*collation.Service, error) {
	collationSrvc, err := collation.NewService(&collation.ServiceConfig{
		LogLvl:     cfg.Log.CollationLvl,
		RelayChain: relay,
		BlockState: stateSrvc.Block,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collation service: %w", err)
	}
	return collationSrvc, nil
}

func createRPCService(cfg *Config, variant *runtime.Variant, stateSrvc *state.Service,
	coreSrvc *core.Service, netSrvc *network.Service, sysSrvc *systemService) (*rpc.HTTPServer, error) {
	rpcSrvc, err := rpc.NewHTTPServer(&rpc.HTTPServerConfig{
		LogLvl:            cfg.Log.RPCLvl,
		BlockAPI:          stateSrvc.Block,
		CoreAPI:           coreSrvc,
		NetworkAPI:        netSrvc,
		TxStateAPI:        stateSrvc.Transaction,
		SystemAPI:         sysSrvc,
		Variant:           variant,
		Host:              cfg.RPC.Host,
		RPCPort:           cfg.RPC.Port,
		RPCExternal:       cfg.RPC.External,
		RPCUnsafe:         cfg.RPC.Unsafe,
		RPCUnsafeExternal: cfg.RPC.UnsafeExternal,
		WS:                cfg.RPC.WS,
		WSPort:            cfg.RPC.WSPort,
		WSExternal:        cfg.RPC.WSExternal,
		Modules:           cfg.RPC.Modules,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rpc service: %w", err)
	}
	return rpcSrvc, nil
}
