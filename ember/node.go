// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package ember

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/ChainSafe/log15"

	"github.com/emberchain/ember/ember/core"
	"github.com/emberchain/ember/ember/metrics"
	"github.com/emberchain/ember/lib/author"
	"github.com/emberchain/ember/lib/collation"
	"github.com/emberchain/ember/lib/crypto"
	"github.com/emberchain/ember/lib/genesis"
	"github.com/emberchain/ember/lib/keystore"
	"github.com/emberchain/ember/lib/runtime"
	"github.com/emberchain/ember/lib/services"
)

var logger = log.New("pkg", "ember")

// Node is a fully assembled ember node.
type Node struct {
	Name     string
	Services *services.ServiceRegistry

	cfg         *Config
	ctx         context.Context
	cancel      context.CancelFunc
	localRelay  *collation.LocalRelay
	interrupted bool

	wg sync.WaitGroup
}

// LoadSpec resolves the chain spec for the configuration: an explicit spec
// file when given, otherwise the variant's built-in spec.
func LoadSpec(cfg *Config, variant *runtime.Variant) (*genesis.Spec, error) {
	if cfg.Init.ChainSpec != "" {
		return genesis.NewSpecFromJSONFile(cfg.Init.ChainSpec)
	}
	return variant.DefaultSpec()
}

// NewNode assembles a node from the configuration: variant selection, spec
// loading, state, network, consensus per the configured mode, RPC and
// metrics. Construction fails fast; nothing is started.
func NewNode(cfg *Config, ks *keystore.GlobalKeystore) (*Node, error) {
	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(cfg.Global.LogLvl, h))

	if cfg.Core.Mode != SoloMode && cfg.Core.Mode != CollatorMode {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Core.Mode)
	}

	variant, err := runtime.Select(cfg.Core.Variant)
	if err != nil {
		return nil, err
	}

	spec, err := LoadSpec(cfg, variant)
	if err != nil {
		return nil, err
	}

	if cfg.Core.Authority {
		if err := spec.RequireAuthorities(); err != nil {
			return nil, err
		}
	}

	var authKey, finKey crypto.Keypair
	if cfg.Core.Authority {
		if ks.Auth.Size() == 0 || ks.Fin.Size() == 0 {
			return nil, ErrNoKeysProvided
		}
		authKey = ks.Auth.Keypairs()[0]
		finKey = ks.Fin.Keypairs()[0]
	}

	logger.Info("assembling node",
		"name", cfg.Global.Name,
		"chain", spec.ID,
		"variant", variant.Name,
		"mode", cfg.Core.Mode,
		"authority", cfg.Core.Authority)

	stateSrvc, err := createStateService(cfg, spec)
	if err != nil {
		return nil, err
	}

	rt, err := createRuntime(variant)
	if err != nil {
		return nil, err
	}

	netSrvc, err := createNetworkService(cfg, spec)
	if err != nil {
		return nil, err
	}

	verifier, err := author.NewVerifier(stateSrvc.Epoch)
	if err != nil {
		return nil, err
	}

	node := &Node{
		Name: cfg.Global.Name,
		cfg:  cfg,
	}
	node.ctx, node.cancel = context.WithCancel(context.Background())

	registry := services.NewServiceRegistry(logger)
	registry.RegisterService(stateSrvc)
	registry.RegisterService(netSrvc)

	// the finality source depends on the consensus mode
	var (
		finalitySrc core.FinalitySource
		finalitySvc services.Service
		anchors     author.AnchorProvider
	)
	switch cfg.Core.Mode {
	case SoloMode:
		soloFinality, err := createFinalityService(cfg, stateSrvc, finKey, netSrvc)
		if err != nil {
			return nil, err
		}
		netSrvc.SetVoteHandler(soloFinality.HandleVoteMessage)
		finalitySrc = soloFinality
		finalitySvc = soloFinality
	case CollatorMode:
		relayInterval := cfg.Core.RelayInterval
		if relayInterval == 0 {
			relayInterval = time.Duration(spec.SlotDurationMillis) * time.Millisecond
		}
		node.localRelay = collation.NewLocalRelay(relayInterval, 2)

		collationSrvc, err := createCollationService(cfg, stateSrvc, node.localRelay)
		if err != nil {
			return nil, err
		}
		finalitySrc = collationSrvc
		finalitySvc = collationSrvc
		anchors = collationSrvc
	}

	coreSrvc, err := createCoreService(cfg, stateSrvc, netSrvc, rt, ks, verifier, finalitySrc)
	if err != nil {
		return nil, err
	}
	netSrvc.SetBlockHandler(coreSrvc.HandleBlockMessage)
	netSrvc.SetTransactionHandler(coreSrvc.HandleTransactionMessage)

	authorSrvc, err := createAuthorService(cfg, stateSrvc, authKey, coreSrvc, anchors)
	if err != nil {
		return nil, err
	}

	registry.RegisterService(coreSrvc)
	registry.RegisterService(finalitySvc)
	registry.RegisterService(authorSrvc)

	data, err := stateSrvc.Base.LoadGenesisData()
	if err != nil {
		return nil, err
	}
	sysSrvc := newSystemService(data)
	registry.RegisterService(sysSrvc)

	if cfg.RPC.isRPCEnabled() {
		rpcSrvc, err := createRPCService(cfg, variant, stateSrvc, coreSrvc, netSrvc, sysSrvc)
		if err != nil {
			return nil, err
		}
		registry.RegisterService(rpcSrvc)
	}

	if cfg.Global.PublishMetrics {
		collector := metrics.NewCollector(node.ctx)
		collector.AddGauge(netSrvc)
		collector.AddGauge(stateSrvc.Transaction)
		collector.Start()
		if err := metrics.PublishMetrics(cfg.Global.MetricsPort); err != nil {
			return nil, err
		}
	}

	node.Services = registry
	return node, nil
}

// Start starts all node services and blocks until a termination signal or
// an external Stop.
func (n *Node) Start() error {
	logger.Info("starting node", "name", n.Name)
	if err := n.Services.StartAll(); err != nil {
		return err
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)

		select {
		case <-sigc:
			logger.Info("signal interrupt, shutting down")
			n.interrupted = true
		case <-n.ctx.Done():
		}
		n.stopServices()
	}()

	n.wg.Wait()
	return nil
}

// Interrupted reports whether shutdown was triggered by a termination
// signal.
func (n *Node) Interrupted() bool {
	return n.interrupted
}

// Stop shuts the node down from another goroutine.
func (n *Node) Stop() {
	n.cancel()
	n.wg.Wait()
}

func (n *Node) stopServices() {
	n.cancel()
	if n.localRelay != nil {
		n.localRelay.Stop()
	}

	grace := n.cfg.Core.ShutdownGrace
	if grace == 0 {
		grace = DefaultShutdownGrace
	}
	if err := n.Services.StopAllWithDeadline(grace); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
}
