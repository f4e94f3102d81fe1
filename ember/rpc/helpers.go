// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package rpc

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/rpc/v2"
	"github.com/jpillora/ipfilter"
)

// LocalhostFilter creates an ipfilter object allowing only localhost.
func LocalhostFilter() *ipfilter.IPFilter {
	return ipfilter.New(ipfilter.Options{
		BlockByDefault: true,
		AllowedIPs:     []string{"127.0.0.1", "::1"},
	})
}

// LocalRequestOnly restricts an RPC request to local connections.
func LocalRequestOnly(r *rpc.RequestInfo, _ interface{}) error {
	ip, _, err := net.SplitHostPort(r.Request.RemoteAddr)
	if err != nil {
		return errors.New("unable to parse IP")
	}

	if LocalhostFilter().Allowed(ip) {
		return nil
	}
	return errors.New("external HTTP request refused")
}

func snakeCaseFormat(method string) (string, error) {
	service, funcName, found := strings.Cut(method, ".")
	if !found || funcName == "" {
		return "", fmt.Errorf("invalid rpc method format %q, should be 'module.FunctionName'", method)
	}

	funcName = strings.ToLower(funcName[:1]) + funcName[1:]
	return service + "_" + funcName, nil
}

func rpcValidator(cfg *HTTPServerConfig, validate *validator.Validate) func(r *rpc.RequestInfo, i interface{}) error {
	return func(r *rpc.RequestInfo, v interface{}) error {
		rpcmethod, err := snakeCaseFormat(r.Method)
		if err != nil {
			return err
		}

		if isUnsafe(rpcmethod) && !cfg.rpcUnsafeEnabled() {
			return fmt.Errorf("unsafe rpc method %s cannot be reachable", rpcmethod)
		}

		if err := validate.Struct(v); err != nil {
			return err
		}

		if !cfg.exposeRPC() || isUnsafe(rpcmethod) && !cfg.RPCUnsafeExternal {
			return LocalRequestOnly(r, v)
		}
		return nil
	}
}

// unsafeMethods require the unsafe RPC flag to be reachable.
var unsafeMethods = map[string]struct{}{
	"system_addReservedPeer":    {},
	"system_removeReservedPeer": {},
}

func isUnsafe(method string) bool {
	_, unsafe := unsafeMethods[method]
	return unsafe
}
