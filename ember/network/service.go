// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package network

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/ChainSafe/log15"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/emberchain/ember/lib/common"
)

var logger = log.New("pkg", "network")

const (
	// DefaultPort is the default libp2p listen port.
	DefaultPort = 7001

	seedRetryInterval  = 10 * time.Second
	seedConnectTimeout = 10 * time.Second

	maxGossipMessageSize = 4 * 1024 * 1024
)

// MessageHandler receives a raw gossip payload from a peer.
type MessageHandler func(from peer.ID, data []byte)

// Config is the network service configuration.
type Config struct {
	DataDir     string
	ListenAddr  string
	Port        int
	Bootnodes   []string
	ProtocolID  string
	NoBootstrap bool
	NoMDNS      bool
	MaxPeers    int
	LogLvl      log.Lvl
}

// Service wraps a libp2p host and gossipsub topics for block and
// transaction propagation.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *Config

	host   host.Host
	pubsub *pubsub.PubSub
	gossip *gossip

	topicBlocks *pubsub.Topic
	topicTxs    *pubsub.Topic
	topicVotes  *pubsub.Topic
	subBlocks   *pubsub.Subscription
	subTxs      *pubsub.Subscription
	subVotes    *pubsub.Subscription

	handlerLock sync.RWMutex
	blockFn     MessageHandler
	txFn        MessageHandler
	voteFn      MessageHandler

	discovery *discovery

	syncing bool
}

// NewService creates a network service from the given configuration.
func NewService(cfg *Config) (*Service, error) {
	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(cfg.LogLvl, h))

	if cfg.ProtocolID == "" {
		return nil, fmt.Errorf("protocol id must not be empty")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		gossip: newGossip(),
	}, nil
}

// SetBlockHandler registers the callback for inbound block announcements.
// Must be called before Start.
func (s *Service) SetBlockHandler(fn MessageHandler) {
	s.handlerLock.Lock()
	defer s.handlerLock.Unlock()
	s.blockFn = fn
}

// SetTransactionHandler registers the callback for inbound transactions.
// Must be called before Start.
func (s *Service) SetTransactionHandler(fn MessageHandler) {
	s.handlerLock.Lock()
	defer s.handlerLock.Unlock()
	s.txFn = fn
}

// SetVoteHandler registers the callback for inbound finality votes.
// Must be called before Start.
func (s *Service) SetVoteHandler(fn MessageHandler) {
	s.handlerLock.Lock()
	defer s.handlerLock.Unlock()
	s.voteFn = fn
}

// Start creates the libp2p host, joins the gossip topics and begins
// peer discovery.
func (s *Service) Start() error {
	listenAddr := fmt.Sprintf("/ip4/%s/tcp/%d", s.cfg.ListenAddr, s.cfg.Port)

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(listenAddr),
	}

	if s.cfg.DataDir != "" {
		priv, err := loadOrCreateIdentity(s.cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to load node identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(priv))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create libp2p host: %w", err)
	}
	s.host = h

	ps, err := pubsub.NewGossipSub(s.ctx, h,
		pubsub.WithMaxMessageSize(maxGossipMessageSize),
	)
	if err != nil {
		_ = h.Close()
		return fmt.Errorf("failed to create gossipsub: %w", err)
	}
	s.pubsub = ps

	if err := s.joinTopics(); err != nil {
		_ = h.Close()
		return err
	}

	go s.readLoop(s.subBlocks, s.handleBlockMessage)
	go s.readLoop(s.subTxs, s.handleTransactionMessage)
	go s.readLoop(s.subVotes, s.handleVoteMessage)

	s.connectBootnodesOnce()
	go s.connectBootnodesLoop()

	if !s.cfg.NoBootstrap || !s.cfg.NoMDNS {
		s.discovery = newDiscovery(s.ctx, h, s.cfg)
		if err := s.discovery.start(); err != nil {
			logger.Warn("peer discovery failed to start", "error", err)
		}
	}

	logger.Info("network service started",
		"peerID", h.ID(), "addr", listenAddr, "protocol", s.cfg.ProtocolID)
	return nil
}

// Stop shuts down discovery, topic subscriptions and the host.
func (s *Service) Stop() error {
	s.cancel()

	if s.subBlocks != nil {
		s.subBlocks.Cancel()
	}
	if s.subTxs != nil {
		s.subTxs.Cancel()
	}
	if s.subVotes != nil {
		s.subVotes.Cancel()
	}
	if s.topicBlocks != nil {
		_ = s.topicBlocks.Close()
	}
	if s.topicTxs != nil {
		_ = s.topicTxs.Close()
	}
	if s.topicVotes != nil {
		_ = s.topicVotes.Close()
	}

	if s.discovery != nil {
		s.discovery.stop()
	}

	if s.host != nil {
		return s.host.Close()
	}
	return nil
}

// BroadcastBlock publishes an encoded block to the block topic. Payloads
// already seen from the network are not re-published.
func (s *Service) BroadcastBlock(data []byte) error {
	if s.topicBlocks == nil {
		return fmt.Errorf("network service not started")
	}
	if s.gossip.hasSeen(common.MustBlake2bHash(data)) {
		return nil
	}
	return s.topicBlocks.Publish(s.ctx, data)
}

// BroadcastTransaction publishes an encoded extrinsic to the
// transactions topic.
func (s *Service) BroadcastTransaction(data []byte) error {
	if s.topicTxs == nil {
		return fmt.Errorf("network service not started")
	}
	if s.gossip.hasSeen(common.MustBlake2bHash(data)) {
		return nil
	}
	return s.topicTxs.Publish(s.ctx, data)
}

// BroadcastVote publishes an encoded finality vote to the votes topic.
func (s *Service) BroadcastVote(data []byte) error {
	if s.topicVotes == nil {
		return fmt.Errorf("network service not started")
	}
	if s.gossip.hasSeen(common.MustBlake2bHash(data)) {
		return nil
	}
	return s.topicVotes.Publish(s.ctx, data)
}

// ID returns the host's peer ID, or the empty string before Start.
func (s *Service) ID() string {
	if s.host == nil {
		return ""
	}
	return s.host.ID().String()
}

// MultiAddrs returns the host's full multiaddresses.
func (s *Service) MultiAddrs() []string {
	if s.host == nil {
		return nil
	}
	addrs := make([]string, 0, len(s.host.Addrs()))
	for _, a := range s.host.Addrs() {
		addrs = append(addrs, fmt.Sprintf("%s/p2p/%s", a, s.host.ID()))
	}
	return addrs
}

// PeerCount returns the number of connected peers.
func (s *Service) PeerCount() int {
	if s.host == nil {
		return 0
	}
	return len(s.host.Network().Peers())
}

// Peers returns information about each connected peer.
func (s *Service) Peers() []common.PeerInfo {
	if s.host == nil {
		return nil
	}

	peers := s.host.Network().Peers()
	infos := make([]common.PeerInfo, 0, len(peers))
	for _, p := range peers {
		infos = append(infos, common.PeerInfo{PeerID: p.String()})
	}
	return infos
}

// SetSyncing marks whether the node is catching up with the chain. Solo
// deployments never sync.
func (s *Service) SetSyncing(syncing bool) {
	s.syncing = syncing
}

// Health returns the node's network health status.
func (s *Service) Health() common.Health {
	return common.Health{
		Peers:           s.PeerCount(),
		IsSyncing:       s.syncing,
		ShouldHavePeers: len(s.cfg.Bootnodes) > 0 || !s.cfg.NoBootstrap,
	}
}

// NetworkState returns the host's identity and listen addresses.
func (s *Service) NetworkState() common.NetworkState {
	return common.NetworkState{
		PeerID:     s.ID(),
		Multiaddrs: s.MultiAddrs(),
	}
}

// CollectGauge exports the peer count for the metrics collector.
func (s *Service) CollectGauge() map[string]int64 {
	return map[string]int64{
		"ember/network/peerCount": int64(s.PeerCount()),
	}
}

func (s *Service) topicName(kind string) string {
	return fmt.Sprintf("%s/%s", s.cfg.ProtocolID, kind)
}

func (s *Service) joinTopics() error {
	var err error
	s.topicBlocks, err = s.pubsub.Join(s.topicName("blocks"))
	if err != nil {
		return fmt.Errorf("failed to join block topic: %w", err)
	}
	s.topicTxs, err = s.pubsub.Join(s.topicName("transactions"))
	if err != nil {
		return fmt.Errorf("failed to join transaction topic: %w", err)
	}
	s.subBlocks, err = s.topicBlocks.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to block topic: %w", err)
	}
	s.topicVotes, err = s.pubsub.Join(s.topicName("votes"))
	if err != nil {
		return fmt.Errorf("failed to join vote topic: %w", err)
	}
	s.subTxs, err = s.topicTxs.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to transaction topic: %w", err)
	}
	s.subVotes, err = s.topicVotes.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to vote topic: %w", err)
	}
	return nil
}

func (s *Service) readLoop(sub *pubsub.Subscription, handle func(*pubsub.Message)) {
	for {
		msg, err := sub.Next(s.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == s.host.ID() {
			continue
		}
		handle(msg)
	}
}

func (s *Service) handleBlockMessage(msg *pubsub.Message) {
	if s.gossip.hasSeen(common.MustBlake2bHash(msg.Data)) {
		return
	}

	s.handlerLock.RLock()
	fn := s.blockFn
	s.handlerLock.RUnlock()

	if fn != nil {
		fn(msg.ReceivedFrom, msg.Data)
	}
}

func (s *Service) handleTransactionMessage(msg *pubsub.Message) {
	if s.gossip.hasSeen(common.MustBlake2bHash(msg.Data)) {
		return
	}

	s.handlerLock.RLock()
	fn := s.txFn
	s.handlerLock.RUnlock()

	if fn != nil {
		fn(msg.ReceivedFrom, msg.Data)
	}
}

func (s *Service) handleVoteMessage(msg *pubsub.Message) {
	if s.gossip.hasSeen(common.MustBlake2bHash(msg.Data)) {
		return
	}

	s.handlerLock.RLock()
	fn := s.voteFn
	s.handlerLock.RUnlock()

	if fn != nil {
		fn(msg.ReceivedFrom, msg.Data)
	}
}

func (s *Service) connectBootnodesOnce() {
	for _, addr := range s.cfg.Bootnodes {
		info, err := peer.AddrInfoFromString(addr)
		if err != nil {
			logger.Warn("invalid bootnode address", "addr", addr, "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(s.ctx, seedConnectTimeout)
		err = s.host.Connect(ctx, *info)
		cancel()
		if err != nil {
			logger.Warn("bootnode connection failed", "peer", info.ID, "error", err)
		} else {
			logger.Info("connected to bootnode", "peer", info.ID)
		}
	}
}

func (s *Service) connectBootnodesLoop() {
	if len(s.cfg.Bootnodes) == 0 {
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(seedRetryInterval):
			if s.PeerCount() == 0 {
				s.connectBootnodesOnce()
			}
		}
	}
}
