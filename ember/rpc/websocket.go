// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package rpc

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emberchain/ember/ember/rpc/subscription"
)

// ServeHTTP upgrades incoming websocket connections and starts their
// subscription loops.
func (h *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upg := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if h.serverConfig.WSExternal {
				return true
			}

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				logger.Error("unable to parse IP", "error", err)
				return false
			}
			if LocalhostFilter().Allowed(ip) {
				return true
			}

			logger.Debug("external websocket request refused", "addr", r.RemoteAddr)
			return false
		},
	}

	ws, err := upg.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	wsc := NewWSConn(ws, h.serverConfig)
	h.wsConns = append(h.wsConns, wsc)

	go wsc.HandleComm()
}

// NewWSConn creates a websocket connection wired to the node's APIs.
func NewWSConn(conn *websocket.Conn, cfg *HTTPServerConfig) *subscription.WSConn {
	return &subscription.WSConn{
		Wsconn:        conn,
		Subscriptions: make(map[uint32]subscription.Listener),
		BlockAPI:      cfg.BlockAPI,
		CoreAPI:       cfg.CoreAPI,
		TxStateAPI:    cfg.TxStateAPI,
		RPCHost:       fmt.Sprintf("http://%s:%d/", cfg.Host, cfg.RPCPort),
		HTTP: &http.Client{
			Timeout: time.Second * 30,
		},
	}
}
