// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/ChainSafe/log15"
	"github.com/urfave/cli"

	"github.com/emberchain/ember/ember"
	"github.com/emberchain/ember/lib/genesis"
	"github.com/emberchain/ember/lib/keystore"
	"github.com/emberchain/ember/lib/runtime"
)

const (
	exitConfig  = 1
	exitSpec    = 2
	exitPanic   = 3
	exitSignal  = 130
	description = "Official client for the Ember chain"
)

var logger = log.New("pkg", "cmd")

func main() {
	app := cli.NewApp()
	app.Name = "ember"
	app.Usage = description
	app.Version = ember.NodeVersion
	app.Flags = nodeFlags
	app.Action = runNode
	app.Commands = []cli.Command{
		{
			Name:   "variants",
			Usage:  "List the available runtime variants",
			Action: listVariants,
		},
	}

	if err := app.Run(os.Args); err != nil {
		code := exitConfig
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}

func runNode(ctx *cli.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Crit("node panicked", "panic", r)
			err = cli.NewExitError(fmt.Sprintf("panic: %v", r), exitPanic)
		}
	}()

	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(log.LvlInfo, h))

	cfg, err := createNodeConfig(ctx)
	if err != nil {
		return cli.NewExitError(err.Error(), exitConfig)
	}
	logger.SetHandler(log.LvlFilterHandler(cfg.Global.LogLvl, h))

	ks := keystore.NewGlobalKeystore()
	if cfg.Core.Authority {
		if cfg.Account.Key == "" {
			return cli.NewExitError("authority node requires --key", exitConfig)
		}
		// --key takes a dev account name or a bip39 mnemonic phrase
		if strings.Contains(cfg.Account.Key, " ") {
			if err := keystore.LoadMnemonic(cfg.Account.Key, ks); err != nil {
				return cli.NewExitError(fmt.Sprintf("failed to load key from mnemonic: %s", err), exitConfig)
			}
		} else if err := keystore.LoadKeyring(cfg.Account.Key, ks); err != nil {
			return cli.NewExitError(fmt.Sprintf("failed to load keyring: %s", err), exitConfig)
		}
	}

	logger.Info("starting ember node",
		"name", cfg.Global.Name,
		"variant", cfg.Core.Variant,
		"mode", cfg.Core.Mode,
		"authority", cfg.Core.Authority,
	)

	node, err := ember.NewNode(cfg, ks)
	if err != nil {
		if errors.Is(err, genesis.ErrSpecNotFound) || errors.Is(err, genesis.ErrSpecMalformed) {
			return cli.NewExitError(err.Error(), exitSpec)
		}
		return cli.NewExitError(err.Error(), exitConfig)
	}

	if err := node.Start(); err != nil {
		return cli.NewExitError(err.Error(), exitConfig)
	}

	if node.Interrupted() {
		return cli.NewExitError("interrupted", exitSignal)
	}
	return nil
}

func listVariants(_ *cli.Context) error {
	for _, name := range runtime.VariantNames() {
		fmt.Println(name)
	}
	return nil
}
