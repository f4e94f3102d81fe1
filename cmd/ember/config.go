// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/ChainSafe/log15"
	"github.com/naoina/toml"
	"github.com/urfave/cli"

	"github.com/emberchain/ember/ember"
)

// tomlConfig mirrors ember.Config for the TOML configuration file.
type tomlConfig struct {
	Global  tomlGlobal  `toml:"global"`
	Log     tomlLog     `toml:"log"`
	Init    tomlInit    `toml:"init"`
	Account tomlAccount `toml:"account"`
	Core    tomlCore    `toml:"core"`
	Network tomlNetwork `toml:"network"`
	RPC     tomlRPC     `toml:"rpc"`
	State   tomlState   `toml:"state"`
}

type tomlGlobal struct {
	Name           string `toml:"name,omitempty"`
	BasePath       string `toml:"basepath,omitempty"`
	LogLvl         string `toml:"log,omitempty"`
	PublishMetrics bool   `toml:"metrics,omitempty"`
	MetricsPort    uint32 `toml:"metrics-port,omitempty"`
}

type tomlLog struct {
	CoreLvl      string `toml:"core,omitempty"`
	NetworkLvl   string `toml:"network,omitempty"`
	RPCLvl       string `toml:"rpc,omitempty"`
	StateLvl     string `toml:"state,omitempty"`
	AuthorLvl    string `toml:"author,omitempty"`
	FinalityLvl  string `toml:"finality,omitempty"`
	CollationLvl string `toml:"collation,omitempty"`
}

type tomlInit struct {
	ChainSpec string `toml:"chain,omitempty"`
}

type tomlAccount struct {
	Key string `toml:"key,omitempty"`
}

type tomlCore struct {
	Variant       string `toml:"variant,omitempty"`
	Mode          string `toml:"mode,omitempty"`
	Authority     bool   `toml:"authority,omitempty"`
	BodyBudget    int    `toml:"body-budget,omitempty"`
	RoundTimeout  string `toml:"round-timeout,omitempty"`
	QuorumWeight  uint64 `toml:"quorum-weight,omitempty"`
	RelayInterval string `toml:"relay-interval,omitempty"`
}

type tomlNetwork struct {
	Port        uint32   `toml:"port,omitempty"`
	Bootnodes   []string `toml:"bootnodes,omitempty"`
	ProtocolID  string   `toml:"protocol,omitempty"`
	NoBootstrap bool     `toml:"nobootstrap,omitempty"`
	NoMDNS      bool     `toml:"nomdns,omitempty"`
	MaxPeers    int      `toml:"max-peers,omitempty"`
}

type tomlRPC struct {
	Enabled  bool     `toml:"enabled,omitempty"`
	External bool     `toml:"external,omitempty"`
	Port     uint32   `toml:"port,omitempty"`
	Host     string   `toml:"host,omitempty"`
	Modules  []string `toml:"modules,omitempty"`
	WS       bool     `toml:"ws,omitempty"`
	WSPort   uint32   `toml:"ws-port,omitempty"`
}

type tomlState struct {
	InMemory bool `toml:"in-memory,omitempty"`
}

// loadConfigFile decodes a TOML configuration file.
func loadConfigFile(path string, cfg *tomlConfig) error {
	fp, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	f, err := os.Open(filepath.Clean(fp))
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewDecoder(f).Decode(cfg)
}

// createNodeConfig builds the node configuration from defaults, the TOML
// file and command line flags, in ascending precedence.
func createNodeConfig(ctx *cli.Context) (*ember.Config, error) {
	cfg := ember.DefaultConfig()
	if ctx.Bool(DevFlag.Name) {
		cfg = ember.DevConfig()
	}

	if path := ctx.String(ConfigFlag.Name); path != "" {
		tomlCfg := new(tomlConfig)
		if err := loadConfigFile(path, tomlCfg); err != nil {
			return nil, fmt.Errorf("failed to load toml configuration: %w", err)
		}
		if err := applyTomlConfig(tomlCfg, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyFlags(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.Global.BasePath == "" && !cfg.State.InMemory {
		cfg.Global.BasePath = defaultBasePath()
	}
	return cfg, nil
}

func applyTomlConfig(t *tomlConfig, cfg *ember.Config) error {
	if t.Global.Name != "" {
		cfg.Global.Name = t.Global.Name
	}
	if t.Global.BasePath != "" {
		cfg.Global.BasePath = t.Global.BasePath
	}
	if t.Global.LogLvl != "" {
		lvl, err := log.LvlFromString(t.Global.LogLvl)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		cfg.Global.LogLvl = lvl
		cfg.Log = logConfigFromLvl(lvl)
	}
	cfg.Global.PublishMetrics = cfg.Global.PublishMetrics || t.Global.PublishMetrics
	if t.Global.MetricsPort != 0 {
		cfg.Global.MetricsPort = t.Global.MetricsPort
	}

	pkgLvls := []struct {
		src string
		dst *log.Lvl
	}{
		{t.Log.CoreLvl, &cfg.Log.CoreLvl},
		{t.Log.NetworkLvl, &cfg.Log.NetworkLvl},
		{t.Log.RPCLvl, &cfg.Log.RPCLvl},
		{t.Log.StateLvl, &cfg.Log.StateLvl},
		{t.Log.AuthorLvl, &cfg.Log.AuthorLvl},
		{t.Log.FinalityLvl, &cfg.Log.FinalityLvl},
		{t.Log.CollationLvl, &cfg.Log.CollationLvl},
	}
	for _, p := range pkgLvls {
		if p.src == "" {
			continue
		}
		lvl, err := log.LvlFromString(p.src)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		*p.dst = lvl
	}

	if t.Init.ChainSpec != "" {
		cfg.Init.ChainSpec = t.Init.ChainSpec
	}
	if t.Account.Key != "" {
		cfg.Account.Key = t.Account.Key
	}

	if t.Core.Variant != "" {
		cfg.Core.Variant = t.Core.Variant
	}
	if t.Core.Mode != "" {
		cfg.Core.Mode = ember.ConsensusMode(t.Core.Mode)
	}
	if t.Core.Authority {
		cfg.Core.Authority = true
	}
	if t.Core.BodyBudget != 0 {
		cfg.Core.BodyBudget = t.Core.BodyBudget
	}
	if t.Core.QuorumWeight != 0 {
		cfg.Core.QuorumWeight = t.Core.QuorumWeight
	}
	for _, d := range []struct {
		src string
		dst *time.Duration
	}{
		{t.Core.RoundTimeout, &cfg.Core.RoundTimeout},
		{t.Core.RelayInterval, &cfg.Core.RelayInterval},
	} {
		if d.src == "" {
			continue
		}
		dur, err := time.ParseDuration(d.src)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", d.src, err)
		}
		*d.dst = dur
	}

	if t.Network.Port != 0 {
		cfg.Network.Port = t.Network.Port
	}
	if len(t.Network.Bootnodes) > 0 {
		cfg.Network.Bootnodes = t.Network.Bootnodes
	}
	if t.Network.ProtocolID != "" {
		cfg.Network.ProtocolID = t.Network.ProtocolID
	}
	cfg.Network.NoBootstrap = cfg.Network.NoBootstrap || t.Network.NoBootstrap
	cfg.Network.NoMDNS = cfg.Network.NoMDNS || t.Network.NoMDNS
	if t.Network.MaxPeers != 0 {
		cfg.Network.MaxPeers = t.Network.MaxPeers
	}

	cfg.RPC.Enabled = cfg.RPC.Enabled || t.RPC.Enabled
	cfg.RPC.External = cfg.RPC.External || t.RPC.External
	if t.RPC.Port != 0 {
		cfg.RPC.Port = t.RPC.Port
	}
	if t.RPC.Host != "" {
		cfg.RPC.Host = t.RPC.Host
	}
	if len(t.RPC.Modules) > 0 {
		cfg.RPC.Modules = t.RPC.Modules
	}
	cfg.RPC.WS = cfg.RPC.WS || t.RPC.WS
	if t.RPC.WSPort != 0 {
		cfg.RPC.WSPort = t.RPC.WSPort
	}

	cfg.State.InMemory = cfg.State.InMemory || t.State.InMemory
	return nil
}

func applyFlags(ctx *cli.Context, cfg *ember.Config) error {
	if name := ctx.String(NameFlag.Name); name != "" {
		cfg.Global.Name = name
	}
	if basepath := ctx.String(BasePathFlag.Name); basepath != "" {
		cfg.Global.BasePath = basepath
	}
	if lvlStr := ctx.String(LogFlag.Name); lvlStr != "" {
		lvl, err := log.LvlFromString(lvlStr)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		cfg.Global.LogLvl = lvl
		cfg.Log = logConfigFromLvl(lvl)
	}
	if ctx.Bool(PublishMetricsFlag.Name) {
		cfg.Global.PublishMetrics = true
	}
	if port := ctx.Uint(MetricsPortFlag.Name); port != 0 {
		cfg.Global.MetricsPort = uint32(port)
	}

	if variant := ctx.String(VariantFlag.Name); variant != "" {
		cfg.Core.Variant = variant
	}
	if mode := ctx.String(ModeFlag.Name); mode != "" {
		cfg.Core.Mode = ember.ConsensusMode(mode)
	}
	if ctx.Bool(NotAuthorityFlag.Name) {
		cfg.Core.Authority = false
	}
	if key := ctx.String(KeyFlag.Name); key != "" {
		cfg.Account.Key = key
	}
	if chain := ctx.String(ChainSpecFlag.Name); chain != "" {
		cfg.Init.ChainSpec = chain
	}

	if port := ctx.Uint(PortFlag.Name); port != 0 {
		cfg.Network.Port = uint32(port)
	}
	if bootnodes := ctx.String(BootnodesFlag.Name); bootnodes != "" {
		cfg.Network.Bootnodes = strings.Split(bootnodes, ",")
	}
	if protocol := ctx.String(ProtocolFlag.Name); protocol != "" {
		cfg.Network.ProtocolID = protocol
	}
	if ctx.Bool(NoBootstrapFlag.Name) {
		cfg.Network.NoBootstrap = true
	}
	if ctx.Bool(NoMDNSFlag.Name) {
		cfg.Network.NoMDNS = true
	}

	if ctx.Bool(RPCEnabledFlag.Name) {
		cfg.RPC.Enabled = true
	}
	if ctx.Bool(RPCExternalFlag.Name) {
		cfg.RPC.Enabled = true
		cfg.RPC.External = true
	}
	if host := ctx.String(RPCHostFlag.Name); host != "" {
		cfg.RPC.Host = host
	}
	if port := ctx.Uint(RPCPortFlag.Name); port != 0 {
		cfg.RPC.Port = uint32(port)
	}
	if mods := ctx.String(RPCModulesFlag.Name); mods != "" {
		cfg.RPC.Modules = strings.Split(mods, ",")
	}
	if ctx.Bool(WSFlag.Name) {
		cfg.RPC.WS = true
	}
	if port := ctx.Uint(WSPortFlag.Name); port != 0 {
		cfg.RPC.WSPort = uint32(port)
	}
	return nil
}

// logConfigFromLvl sets every package log level to the global level.
func logConfigFromLvl(lvl log.Lvl) ember.LogConfig {
	return ember.LogConfig{
		CoreLvl:      lvl,
		NetworkLvl:   lvl,
		RPCLvl:       lvl,
		StateLvl:     lvl,
		AuthorLvl:    lvl,
		FinalityLvl:  lvl,
		CollationLvl: lvl,
	}
}

func defaultBasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ember"
	}
	return filepath.Join(home, ".ember")
}
