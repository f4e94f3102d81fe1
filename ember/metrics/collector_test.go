// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package metrics

import (
	"context"
	"testing"

	ethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/stretchr/testify/require"
)

type fakeGauge struct {
	values map[string]int64
}

func (g *fakeGauge) CollectGauge() map[string]int64 { return g.values }

func TestCollector_Poll(t *testing.T) {
	ethmetrics.Enabled = true

	c := NewCollector(context.Background())
	source := &fakeGauge{values: map[string]int64{
		"ember/test/peerCount": 5,
		"ember/test/poolSize":  12,
	}}
	c.AddGauge(source)
	c.poll()

	gauge := ethmetrics.GetOrRegisterGauge("ember/test/peerCount", ethmetrics.DefaultRegistry)
	require.Equal(t, int64(5), gauge.Value())
	gauge = ethmetrics.GetOrRegisterGauge("ember/test/poolSize", ethmetrics.DefaultRegistry)
	require.Equal(t, int64(12), gauge.Value())

	// subsequent polls overwrite with the latest value
	source.values["ember/test/peerCount"] = 2
	c.poll()
	gauge = ethmetrics.GetOrRegisterGauge("ember/test/peerCount", ethmetrics.DefaultRegistry)
	require.Equal(t, int64(2), gauge.Value())
}

func TestCollector_AddGauge(t *testing.T) {
	c := NewCollector(context.Background())
	require.Empty(t, c.gauges)

	c.AddGauge(&fakeGauge{})
	c.AddGauge(&fakeGauge{})
	require.Len(t, c.gauges, 2)
}
