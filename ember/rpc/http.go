// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package rpc implements the node's JSON-RPC surface: an HTTP server for
// request/response methods and a websocket server for subscriptions.
package rpc

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	log "github.com/ChainSafe/log15"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/rpc/v2"

	"github.com/emberchain/ember/ember/rpc/modules"
	"github.com/emberchain/ember/ember/rpc/subscription"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/runtime"
)

var logger log.Logger = log.New("pkg", "rpc")

// ErrUnsupportedExtension is returned when a requested RPC module is
// neither in the core set nor provided by the active runtime variant.
var ErrUnsupportedExtension = errors.New("rpc module not supported by runtime variant")

// coreModules are always available regardless of variant.
var coreModules = map[string]struct{}{
	"system": {},
	"author": {},
	"chain":  {},
}

// HTTPServer gateway for the RPC server.
type HTTPServer struct {
	logger       log.Logger
	rpcServer    *rpc.Server
	serverConfig *HTTPServerConfig
	wsConns      []*subscription.WSConn
	listeners    []net.Listener
}

// HTTPServerConfig configures the HTTPServer.
type HTTPServerConfig struct {
	LogLvl     log.Lvl
	BlockAPI   modules.BlockAPI
	CoreAPI    modules.CoreAPI
	NetworkAPI modules.NetworkAPI
	TxStateAPI modules.TransactionStateAPI
	SystemAPI  modules.SystemAPI
	Variant    *runtime.Variant

	Host              string
	RPCPort           uint32
	RPCExternal       bool
	RPCUnsafe         bool
	RPCUnsafeExternal bool
	WS                bool
	WSPort            uint32
	WSExternal        bool
	Modules           []string
}

func (h *HTTPServerConfig) rpcUnsafeEnabled() bool {
	return h.RPCUnsafe || h.RPCUnsafeExternal
}

func (h *HTTPServerConfig) exposeRPC() bool {
	return h.RPCExternal || h.RPCUnsafeExternal
}

// NewHTTPServer creates an HTTP server and registers the requested RPC
// modules against the active runtime variant. A module the variant does
// not provide fails construction with ErrUnsupportedExtension.
func NewHTTPServer(cfg *HTTPServerConfig) (*HTTPServer, error) {
	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(cfg.LogLvl, h))

	server := &HTTPServer{
		logger:       logger,
		rpcServer:    rpc.NewServer(),
		serverConfig: cfg,
	}

	if err := server.registerModules(cfg.Modules); err != nil {
		return nil, err
	}
	return server, nil
}

// registerModules registers the RPC services for the given module names.
func (h *HTTPServer) registerModules(mods []string) error {
	for _, mod := range mods {
		if _, core := coreModules[mod]; !core && !h.serverConfig.Variant.HasRPCModule(mod) {
			return fmt.Errorf("%w: %q (variant %q)",
				ErrUnsupportedExtension, mod, h.serverConfig.Variant.Name)
		}

		h.logger.Debug("enabling rpc module", "module", mod)
		var srvc interface{}
		switch mod {
		case "system":
			srvc = modules.NewSystemModule(h.serverConfig.NetworkAPI, h.serverConfig.SystemAPI)
		case "author":
			srvc = modules.NewAuthorModule(h.logger, h.serverConfig.CoreAPI, h.serverConfig.TxStateAPI)
		case "chain":
			srvc = modules.NewChainModule(h.serverConfig.BlockAPI)
		case "eth":
			srvc = modules.NewEthModule(h.serverConfig.BlockAPI, h.serverConfig.CoreAPI)
		default:
			return fmt.Errorf("%w: %q has no implementation", ErrUnsupportedExtension, mod)
		}

		if err := h.rpcServer.RegisterService(srvc, mod); err != nil {
			return fmt.Errorf("failed to register module %q: %w", mod, err)
		}
	}
	return nil
}

// Start registers the rpc handler function and starts the rpc http and
// websocket servers.
func (h *HTTPServer) Start() error {
	// methods arrive in json as module_methodName; the underscore codec
	// maps them onto gorilla's module.MethodName dispatch
	h.rpcServer.RegisterCodec(NewUnderscoreCodec(), "application/json")
	h.rpcServer.RegisterCodec(NewUnderscoreCodec(), "application/json;charset=UTF-8")

	validate := validator.New()
	validate.RegisterCustomTypeFunc(common.HashValidator, common.Hash{})
	h.rpcServer.RegisterValidateRequestFunc(rpcValidator(h.serverConfig, validate))

	h.logger.Info("starting HTTP server", "host", h.serverConfig.Host, "port", h.serverConfig.RPCPort)
	r := mux.NewRouter()
	r.Handle("/", h.rpcServer)

	// bind before starting so an unusable address fails node startup
	if err := h.serve(h.serverConfig.RPCPort, r); err != nil {
		return fmt.Errorf("cannot bind rpc port %d: %w", h.serverConfig.RPCPort, err)
	}

	if !h.serverConfig.WS {
		return nil
	}

	h.logger.Info("starting websocket server", "host", h.serverConfig.Host, "port", h.serverConfig.WSPort)
	ws := mux.NewRouter()
	ws.Handle("/", h)
	if err := h.serve(h.serverConfig.WSPort, ws); err != nil {
		return fmt.Errorf("cannot bind websocket port %d: %w", h.serverConfig.WSPort, err)
	}

	return nil
}

func (h *HTTPServer) serve(port uint32, handler http.Handler) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	h.listeners = append(h.listeners, listener)

	go func() {
		if err := http.Serve(listener, handler); err != nil && !errors.Is(err, net.ErrClosed) {
			h.logger.Error("http server error", "port", port, "error", err)
		}
	}()
	return nil
}

// Stop closes the server listeners, all websocket connections and their
// subscriptions.
func (h *HTTPServer) Stop() error {
	for _, l := range h.listeners {
		if err := l.Close(); err != nil {
			h.logger.Warn("error closing listener", "error", err)
		}
	}

	for _, conn := range h.wsConns {
		for subID, sub := range conn.Subscriptions {
			if err := sub.Stop(); err != nil {
				h.logger.Warn("failed to stop subscription",
					"subscription", subID, "error", err)
			}
		}
		if err := conn.Wsconn.Close(); err != nil {
			h.logger.Warn("error closing websocket connection", "error", err)
		}
	}
	return nil
}
