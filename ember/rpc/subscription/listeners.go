// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package subscription

import (
	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/transaction"
)

// Listener is a subscription side of a websocket connection.
type Listener interface {
	Listen()
	Stop() error
}

// BlockListener streams imported block headers as chain_newHead
// notifications.
type BlockListener struct {
	Channel chan *types.Block
	wsconn  *WSConn
	subID   uint32
	done    chan struct{}
}

// Listen implements Listener.
func (l *BlockListener) Listen() {
	for {
		select {
		case <-l.done:
			return
		case block, ok := <-l.Channel:
			if !ok {
				return
			}
			// imports on non-best forks do not move the chain head
			if block.Header.Hash() != l.wsconn.BlockAPI.BestBlockHash() {
				continue
			}
			l.wsconn.safeSendNotification("chain_newHead", l.subID, &block.Header)
		}
	}
}

// Stop implements Listener.
func (l *BlockListener) Stop() error {
	close(l.done)
	l.wsconn.BlockAPI.FreeImportedBlockNotifierChannel(l.Channel)
	return nil
}

// FinalizedBlockListener streams finalised headers as
// chain_finalizedHead notifications.
type FinalizedBlockListener struct {
	Channel chan *types.Header
	wsconn  *WSConn
	subID   uint32
	done    chan struct{}
}

// Listen implements Listener.
func (l *FinalizedBlockListener) Listen() {
	for {
		select {
		case <-l.done:
			return
		case header, ok := <-l.Channel:
			if !ok {
				return
			}
			l.wsconn.safeSendNotification("chain_finalizedHead", l.subID, header)
		}
	}
}

// Stop implements Listener.
func (l *FinalizedBlockListener) Stop() error {
	close(l.done)
	l.wsconn.BlockAPI.FreeFinalisedNotifierChannel(l.Channel)
	return nil
}

// ExtrinsicStatusListener streams status transitions of a watched
// extrinsic as author_extrinsicUpdate notifications.
type ExtrinsicStatusListener struct {
	Channel chan transaction.Status
	wsconn  *WSConn
	subID   uint32
	done    chan struct{}
}

// Listen implements Listener.
func (l *ExtrinsicStatusListener) Listen() {
	for {
		select {
		case <-l.done:
			return
		case status, ok := <-l.Channel:
			if !ok {
				return
			}
			l.wsconn.safeSendNotification("author_extrinsicUpdate", l.subID, status.String())
			if status == transaction.Finalized || status == transaction.Dropped {
				return
			}
		}
	}
}

// Stop implements Listener.
func (l *ExtrinsicStatusListener) Stop() error {
	close(l.done)
	l.wsconn.TxStateAPI.FreeStatusNotifierChannel(l.Channel)
	return nil
}
