// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package network

import (
	"context"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"
)

const (
	dhtDiscoveryInterval = 30 * time.Second
	findPeersTimeout     = 20 * time.Second
	peerConnectTimeout   = 5 * time.Second
)

// discovery finds peers over mDNS on the local network and the kademlia
// DHT across the wider network, both namespaced by the protocol id.
type discovery struct {
	ctx  context.Context
	host host.Host
	cfg  *Config

	dht  *dht.IpfsDHT
	mdns mdns.Service
}

func newDiscovery(ctx context.Context, h host.Host, cfg *Config) *discovery {
	return &discovery{
		ctx:  ctx,
		host: h,
		cfg:  cfg,
	}
}

func (d *discovery) start() error {
	if !d.cfg.NoMDNS {
		d.mdns = mdns.NewMdnsService(d.host, d.cfg.ProtocolID, &mdnsNotifee{d: d})
		if err := d.mdns.Start(); err != nil {
			// local discovery is best effort
			logger.Warn("mdns failed to start", "error", err)
			d.mdns = nil
		}
	}

	if d.cfg.NoBootstrap {
		return nil
	}

	kad, err := dht.New(d.ctx, d.host, dht.Mode(dht.ModeAutoServer))
	if err != nil {
		return err
	}
	d.dht = kad

	if err := kad.Bootstrap(d.ctx); err != nil {
		return err
	}

	go d.runDHT()
	return nil
}

func (d *discovery) stop() {
	if d.mdns != nil {
		_ = d.mdns.Close()
	}
	if d.dht != nil {
		_ = d.dht.Close()
	}
}

func (d *discovery) runDHT() {
	routingDiscovery := drouting.NewRoutingDiscovery(d.dht)
	dutil.Advertise(d.ctx, routingDiscovery, d.cfg.ProtocolID)

	ticker := time.NewTicker(dhtDiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.findPeers(routingDiscovery)
		}
	}
}

func (d *discovery) findPeers(routingDiscovery *drouting.RoutingDiscovery) {
	ctx, cancel := context.WithTimeout(d.ctx, findPeersTimeout)
	defer cancel()

	peerCh, err := routingDiscovery.FindPeers(ctx, d.cfg.ProtocolID)
	if err != nil {
		return
	}

	for p := range peerCh {
		if p.ID == d.host.ID() || len(p.Addrs) == 0 {
			continue
		}

		if d.cfg.MaxPeers > 0 && len(d.host.Network().Peers()) >= d.cfg.MaxPeers {
			return
		}

		d.connect(p)
	}
}

func (d *discovery) connect(p peer.AddrInfo) {
	ctx, cancel := context.WithTimeout(d.ctx, peerConnectTimeout)
	defer cancel()

	if err := d.host.Connect(ctx, p); err != nil {
		logger.Trace("could not connect to discovered peer", "peer", p.ID, "error", err)
	}
}

type mdnsNotifee struct {
	d *discovery
}

func (n *mdnsNotifee) HandlePeerFound(p peer.AddrInfo) {
	if p.ID == n.d.host.ID() {
		return
	}
	n.d.connect(p)
}
