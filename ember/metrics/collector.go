// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package metrics polls gauge sources across the node and publishes them
// through a prometheus endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	log "github.com/ChainSafe/log15"
	ethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/prometheus"
)

var logger log.Logger = log.New("pkg", "metrics")

// RefreshInterval is the polling interval for gauge collection.
const RefreshInterval = time.Second * 10

// DefaultPort is the default prometheus exposition port.
const DefaultPort = 9876

// GaugeMetrics is implemented by components exporting gauge values.
type GaugeMetrics interface {
	CollectGauge() map[string]int64
}

// Collector polls registered gauge sources on a fixed interval and feeds
// them into the metrics registry.
type Collector struct {
	ctx    context.Context
	gauges []GaugeMetrics
}

// NewCollector creates a new Collector.
func NewCollector(ctx context.Context) *Collector {
	return &Collector{
		ctx:    ctx,
		gauges: make([]GaugeMetrics, 0),
	}
}

// AddGauge registers a gauge source. Must be called before Start.
func (c *Collector) AddGauge(g GaugeMetrics) {
	c.gauges = append(c.gauges, g)
}

// Start begins gauge collection until the collector's context is done.
func (c *Collector) Start() {
	ethmetrics.Enabled = true
	go c.collectGauges()
}

func (c *Collector) collectGauges() {
	t := time.NewTicker(RefreshInterval)
	defer t.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			c.poll()
		}
	}
}

func (c *Collector) poll() {
	for _, g := range c.gauges {
		for label, value := range g.CollectGauge() {
			gauge := ethmetrics.GetOrRegisterGauge(label, ethmetrics.DefaultRegistry)
			gauge.Update(value)
		}
	}
}

// PublishMetrics starts the prometheus exposition endpoint on the given
// port. The listener is bound before returning so an unusable address
// fails node startup.
func PublishMetrics(port uint32) error {
	address := fmt.Sprintf(":%d", port)
	logger.Info("enabling metrics", "address", address)

	m := http.NewServeMux()
	m.Handle("/metrics", prometheus.Handler(ethmetrics.DefaultRegistry))

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("cannot bind metrics port %d: %w", port, err)
	}

	go func() {
		if err := http.Serve(listener, m); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}
