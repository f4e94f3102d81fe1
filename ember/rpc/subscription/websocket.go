// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package subscription implements the websocket subscription side of the
// RPC surface.
package subscription

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	log "github.com/ChainSafe/log15"
	"github.com/gorilla/websocket"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/transaction"
)

var logger log.Logger = log.New("pkg", "rpc/subscription")

var errCannotReadFromWebsocket = errors.New("cannot read message from websocket")

// BlockAPI is the block state interface the subscriptions listen on.
type BlockAPI interface {
	BestBlockHash() common.Hash
	GetImportedBlockNotifierChannel() chan *types.Block
	FreeImportedBlockNotifierChannel(ch chan *types.Block)
	GetFinalisedNotifierChannel() chan *types.Header
	FreeFinalisedNotifierChannel(ch chan *types.Header)
}

// CoreAPI admits watched extrinsics.
type CoreAPI interface {
	HandleSubmittedExtrinsic(ext types.Extrinsic) (common.Hash, error)
}

// TxStateAPI supplies per-extrinsic status channels.
type TxStateAPI interface {
	GetStatusNotifierChannel(ext types.Extrinsic) chan transaction.Status
	FreeStatusNotifierChannel(ch chan transaction.Status)
}

// WSConn is a websocket connection with its active subscriptions.
type WSConn struct {
	Wsconn        *websocket.Conn
	mu            sync.Mutex
	Subscriptions map[uint32]Listener
	qtyListeners  uint32

	BlockAPI   BlockAPI
	CoreAPI    CoreAPI
	TxStateAPI TxStateAPI

	RPCHost string
	HTTP    *http.Client
}

type wsRequest struct {
	ID     float64           `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// HandleComm reads messages off the connection until it closes, routing
// subscription methods locally and forwarding everything else to the HTTP
// RPC endpoint.
func (c *WSConn) HandleComm() {
	for {
		_, msg, err := c.Wsconn.ReadMessage()
		if err != nil {
			logger.Debug("websocket closed", "error", err)
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			logger.Debug("discarding malformed websocket message", "error", err)
			c.safeSendError(0, fmt.Errorf("%w: %s", errCannotReadFromWebsocket, err))
			continue
		}

		logger.Debug("websocket message received", "method", req.Method)

		switch req.Method {
		case "chain_subscribeNewHeads", "chain_subscribeNewHead":
			c.initBlockListener(req.ID)
		case "chain_subscribeFinalizedHeads":
			c.initFinalizedListener(req.ID)
		case "author_submitAndWatchExtrinsic":
			c.initExtrinsicWatch(req.ID, req.Params)
		case "chain_unsubscribeNewHeads", "chain_unsubscribeNewHead",
			"chain_unsubscribeFinalizedHeads", "author_unwatchExtrinsic":
			c.unsubscribe(req.ID, req.Params)
		default:
			c.forwardRequest(msg, req.ID)
		}
	}
}

func (c *WSConn) initBlockListener(reqID float64) {
	l := &BlockListener{
		Channel: c.BlockAPI.GetImportedBlockNotifierChannel(),
		wsconn:  c,
		done:    make(chan struct{}),
	}
	l.subID = c.registerListener(l)
	c.safeSendResult(reqID, l.subID)
	go l.Listen()
}

func (c *WSConn) initFinalizedListener(reqID float64) {
	l := &FinalizedBlockListener{
		Channel: c.BlockAPI.GetFinalisedNotifierChannel(),
		wsconn:  c,
		done:    make(chan struct{}),
	}
	l.subID = c.registerListener(l)
	c.safeSendResult(reqID, l.subID)
	go l.Listen()
}

func (c *WSConn) initExtrinsicWatch(reqID float64, params []json.RawMessage) {
	if len(params) == 0 {
		c.safeSendError(reqID, errors.New("missing extrinsic parameter"))
		return
	}

	var hexData string
	if err := json.Unmarshal(params[0], &hexData); err != nil {
		c.safeSendError(reqID, err)
		return
	}
	data, err := common.HexToBytes(hexData)
	if err != nil {
		c.safeSendError(reqID, err)
		return
	}
	ext := types.Extrinsic(data)

	// register the status channel before submission so no transition is
	// missed
	l := &ExtrinsicStatusListener{
		Channel: c.TxStateAPI.GetStatusNotifierChannel(ext),
		wsconn:  c,
		done:    make(chan struct{}),
	}
	l.subID = c.registerListener(l)

	if _, err := c.CoreAPI.HandleSubmittedExtrinsic(ext); err != nil {
		c.removeListener(l.subID)
		l.Stop()
		c.safeSendError(reqID, err)
		return
	}

	c.safeSendResult(reqID, l.subID)
	go l.Listen()
}

func (c *WSConn) unsubscribe(reqID float64, params []json.RawMessage) {
	if len(params) == 0 {
		c.safeSendError(reqID, errors.New("missing subscription id"))
		return
	}

	var subID uint32
	if err := json.Unmarshal(params[0], &subID); err != nil {
		c.safeSendError(reqID, err)
		return
	}

	l := c.removeListener(subID)
	if l == nil {
		c.safeSendResult(reqID, false)
		return
	}

	if err := l.Stop(); err != nil {
		logger.Warn("failed to stop listener", "subscription", subID, "error", err)
	}
	c.safeSendResult(reqID, true)
}

// forwardRequest proxies a non-subscription method to the HTTP RPC server
// so websocket clients can use the full method surface.
func (c *WSConn) forwardRequest(msg []byte, reqID float64) {
	resp, err := c.HTTP.Post(c.RPCHost, "application/json", bytes.NewReader(msg))
	if err != nil {
		c.safeSendError(reqID, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.safeSendError(reqID, err)
		return
	}
	c.safeSendRaw(body)
}

func (c *WSConn) registerListener(l Listener) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.qtyListeners++
	c.Subscriptions[c.qtyListeners] = l
	return c.qtyListeners
}

func (c *WSConn) removeListener(subID uint32) Listener {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, has := c.Subscriptions[subID]
	if !has {
		return nil
	}
	delete(c.Subscriptions, subID)
	return l
}

func (c *WSConn) safeSendResult(reqID float64, result interface{}) {
	c.safeSend(map[string]interface{}{
		"jsonrpc": "2.0",
		"result":  result,
		"id":      reqID,
	})
}

func (c *WSConn) safeSendNotification(method string, subID uint32, result interface{}) {
	c.safeSend(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params": map[string]interface{}{
			"result":       result,
			"subscription": subID,
		},
	})
}

func (c *WSConn) safeSendError(reqID float64, err error) {
	c.safeSend(map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    int32(-32600),
			"message": err.Error(),
		},
		"id": reqID,
	})
}

func (c *WSConn) safeSend(msg interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Wsconn.WriteJSON(msg); err != nil {
		logger.Debug("failed to write websocket message", "error", err)
	}
}

func (c *WSConn) safeSendRaw(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Wsconn.WriteMessage(websocket.TextMessage, msg); err != nil {
		logger.Debug("failed to write websocket message", "error", err)
	}
}
