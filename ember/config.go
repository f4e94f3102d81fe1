// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package ember assembles the node: it selects the runtime variant, loads
// the chain spec, constructs every service and supervises their lifetime.
package ember

import (
	"encoding/json"
	"time"

	log "github.com/ChainSafe/log15"

	"github.com/emberchain/ember/ember/network"
	"github.com/emberchain/ember/lib/genesis"
)

// ConsensusMode selects how the node reaches finality.
type ConsensusMode string

const (
	// SoloMode authors on local slots and finalises through local votes.
	SoloMode ConsensusMode = "solo"
	// CollatorMode anchors candidates to a relay chain which supplies
	// ordering and finality.
	CollatorMode ConsensusMode = "collator"
)

// DefaultShutdownGrace is the deadline for services to acknowledge
// shutdown.
const DefaultShutdownGrace = 10 * time.Second

// Config is the node configuration tree, assembled from the TOML config
// file and command line flags.
type Config struct {
	Global  GlobalConfig
	Log     LogConfig
	Init    InitConfig
	Account AccountConfig
	Core    CoreConfig
	Network NetworkConfig
	RPC     RPCConfig
	State   StateConfig
}

// GlobalConfig is used for every node command.
type GlobalConfig struct {
	Name           string
	ID             string
	BasePath       string
	LogLvl         log.Lvl
	PublishMetrics bool
	MetricsPort    uint32
	TelemetryURLs  []genesis.TelemetryEndpoint
}

// LogConfig holds the log levels for individual packages.
type LogConfig struct {
	CoreLvl      log.Lvl
	NetworkLvl   log.Lvl
	RPCLvl       log.Lvl
	StateLvl     log.Lvl
	AuthorLvl    log.Lvl
	FinalityLvl  log.Lvl
	CollationLvl log.Lvl
}

// InitConfig is the configuration for node initialisation.
type InitConfig struct {
	// ChainSpec is the path to a chain spec file; empty selects the
	// variant's built-in spec.
	ChainSpec string
}

// AccountConfig selects the node's signing key.
type AccountConfig struct {
	// Key is a well-known keyring name (alice, bob, ...) or a hex seed.
	Key string
}

// CoreConfig configures the consensus orchestrator.
type CoreConfig struct {
	// Variant names the compiled-in runtime variant.
	Variant string
	// Mode selects solo or collator consensus.
	Mode ConsensusMode
	// Authority enables slot claiming and finality voting.
	Authority bool
	// BodyBudget caps extrinsics per authored block.
	BodyBudget int
	// RoundTimeout bounds a finality round before it advances.
	RoundTimeout time.Duration
	// QuorumWeight overrides the default 2/3+1 finality threshold when
	// non-zero.
	QuorumWeight uint64
	// RelayInterval is the local relay head interval in collator mode.
	RelayInterval time.Duration
	// ShutdownGrace is the deadline for coordinated shutdown.
	ShutdownGrace time.Duration
}

// NetworkConfig configures the libp2p service.
type NetworkConfig struct {
	Port        uint32
	Bootnodes   []string
	ProtocolID  string
	NoBootstrap bool
	NoMDNS      bool
	MaxPeers    int
}

// RPCConfig configures the JSON-RPC surface.
type RPCConfig struct {
	Enabled        bool
	External       bool
	Unsafe         bool
	UnsafeExternal bool
	Port           uint32
	Host           string
	Modules        []string
	WS             bool
	WSExternal     bool
	WSPort         uint32
}

func (r *RPCConfig) isRPCEnabled() bool {
	return r.Enabled || r.External || r.Unsafe || r.UnsafeExternal
}

// StateConfig configures the state service.
type StateConfig struct {
	// InMemory uses an in-memory database, for tests and throwaway dev
	// nodes.
	InMemory bool
}

// String returns the json representation of a Config.
func (c *Config) String() string {
	out, _ := json.MarshalIndent(c, "", "\t")
	return string(out)
}

// DefaultConfig returns the standard-variant solo node configuration.
func DefaultConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			Name:        "Ember",
			ID:          "ember_local",
			LogLvl:      log.LvlInfo,
			MetricsPort: 9876,
		},
		Log: LogConfig{
			CoreLvl:      log.LvlInfo,
			NetworkLvl:   log.LvlInfo,
			RPCLvl:       log.LvlInfo,
			StateLvl:     log.LvlInfo,
			AuthorLvl:    log.LvlInfo,
			FinalityLvl:  log.LvlInfo,
			CollationLvl: log.LvlInfo,
		},
		Core: CoreConfig{
			Variant:       "ember",
			Mode:          SoloMode,
			Authority:     true,
			ShutdownGrace: DefaultShutdownGrace,
		},
		Network: NetworkConfig{
			Port:     network.DefaultPort,
			MaxPeers: 50,
		},
		RPC: RPCConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    8545,
			WSPort:  8546,
			Modules: []string{"system", "author", "chain"},
		},
	}
}

// DevConfig returns the development configuration: fast slots, single
// authority, in-memory state, all RPC modules of the dev variant.
func DevConfig() *Config {
	cfg := DefaultConfig()
	cfg.Global.Name = "Ember Development"
	cfg.Global.ID = "ember_dev"
	cfg.Core.Variant = "ember-dev"
	cfg.Account.Key = "alice"
	cfg.Network.NoBootstrap = true
	cfg.Network.NoMDNS = true
	cfg.State.InMemory = true
	return cfg
}
