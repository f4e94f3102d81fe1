// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"github.com/urfave/cli"
)

// Global node configuration flags
var (
	// ConfigFlag is the path to a TOML configuration file
	ConfigFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	// NameFlag sets the node name
	NameFlag = cli.StringFlag{
		Name:  "name",
		Usage: "Node name",
	}
	// BasePathFlag is the data directory for the node
	BasePathFlag = cli.StringFlag{
		Name:  "basepath",
		Usage: "Data directory for the node",
	}
	// LogFlag sets the global log level
	LogFlag = cli.StringFlag{
		Name:  "log",
		Usage: "Global log level. Supports levels crit (silent), eror, warn, info, dbug and trce (trace)",
	}
	// DevFlag runs the node with the development configuration
	DevFlag = cli.BoolFlag{
		Name:  "dev",
		Usage: "Run in development mode: fast slots, single authority, in-memory state",
	}
	// PublishMetricsFlag enables the prometheus endpoint
	PublishMetricsFlag = cli.BoolFlag{
		Name:  "publish-metrics",
		Usage: "Publish node metrics",
	}
	// MetricsPortFlag sets the prometheus endpoint port
	MetricsPortFlag = cli.UintFlag{
		Name:  "metrics-port",
		Usage: "Port the prometheus endpoint listens on",
	}
)

// Consensus flags
var (
	// VariantFlag selects the compiled-in runtime variant
	VariantFlag = cli.StringFlag{
		Name:  "variant",
		Usage: "Runtime variant: ember, ember-dev or ember-evm",
	}
	// ModeFlag selects the consensus mode
	ModeFlag = cli.StringFlag{
		Name:  "mode",
		Usage: "Consensus mode: solo or collator",
	}
	// NotAuthorityFlag disables slot claiming and finality voting
	NotAuthorityFlag = cli.BoolFlag{
		Name:  "not-authority",
		Usage: "Run as a non-authority node",
	}
	// KeyFlag specifies a keyring account to use
	KeyFlag = cli.StringFlag{
		Name:  "key",
		Usage: "Specify a keyring account to use: eg --key=alice",
	}
	// ChainSpecFlag is the path to a chain spec file
	ChainSpecFlag = cli.StringFlag{
		Name:  "chain",
		Usage: "Chain spec file; the variant's built-in spec is used when omitted",
	}
)

// Network flags
var (
	// PortFlag sets the libp2p listen port
	PortFlag = cli.UintFlag{
		Name:  "port",
		Usage: "Network listen port",
	}
	// BootnodesFlag overrides the chain spec bootnodes
	BootnodesFlag = cli.StringFlag{
		Name:  "bootnodes",
		Usage: "Comma separated node multiaddresses to connect on startup",
	}
	// ProtocolFlag overrides the chain spec protocol ID
	ProtocolFlag = cli.StringFlag{
		Name:  "protocol",
		Usage: "Network protocol ID",
	}
	// NoBootstrapFlag disables connecting to bootnodes
	NoBootstrapFlag = cli.BoolFlag{
		Name:  "nobootstrap",
		Usage: "Disable bootstrapping",
	}
	// NoMDNSFlag disables local peer discovery
	NoMDNSFlag = cli.BoolFlag{
		Name:  "nomdns",
		Usage: "Disable mDNS discovery",
	}
)

// RPC flags
var (
	// RPCEnabledFlag enables the HTTP RPC server
	RPCEnabledFlag = cli.BoolFlag{
		Name:  "rpc",
		Usage: "Enable the HTTP-RPC server",
	}
	// RPCExternalFlag exposes the RPC server externally
	RPCExternalFlag = cli.BoolFlag{
		Name:  "rpc-external",
		Usage: "Expose the HTTP-RPC server to external connections",
	}
	// RPCHostFlag sets the RPC listen host
	RPCHostFlag = cli.StringFlag{
		Name:  "rpchost",
		Usage: "HTTP-RPC server listening hostname",
	}
	// RPCPortFlag sets the RPC listen port
	RPCPortFlag = cli.UintFlag{
		Name:  "rpcport",
		Usage: "HTTP-RPC server listening port",
	}
	// RPCModulesFlag selects the enabled RPC modules
	RPCModulesFlag = cli.StringFlag{
		Name:  "rpcmods",
		Usage: "Comma separated API modules to enable",
	}
	// WSFlag enables the websocket server
	WSFlag = cli.BoolFlag{
		Name:  "ws",
		Usage: "Enable the websocket server",
	}
	// WSPortFlag sets the websocket listen port
	WSPortFlag = cli.UintFlag{
		Name:  "wsport",
		Usage: "Websocket server listening port",
	}
)

// nodeFlags are the flags for running a node
var nodeFlags = []cli.Flag{
	ConfigFlag,
	NameFlag,
	BasePathFlag,
	LogFlag,
	DevFlag,
	PublishMetricsFlag,
	MetricsPortFlag,
	VariantFlag,
	ModeFlag,
	NotAuthorityFlag,
	KeyFlag,
	ChainSpecFlag,
	PortFlag,
	BootnodesFlag,
	ProtocolFlag,
	NoBootstrapFlag,
	NoMDNSFlag,
	RPCEnabledFlag,
	RPCExternalFlag,
	RPCHostFlag,
	RPCPortFlag,
	RPCModulesFlag,
	WSFlag,
	WSPortFlag,
}
