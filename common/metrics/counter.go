// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type ValueGetter interface {
	GetValue() float64
	GetValueUint64() uint64
}

type Counter interface {
	prometheus.Counter
	ValueGetter
	AddInt(v int)
	AddUint64(v uint64)
}

type Gauge interface {
	prometheus.Gauge
	ValueGetter
	SetUint64(v uint64)
	SetInt(v int)
}

type Summary interface {
	prometheus.Summary
	ObserveDuration(start time.Time)
}

type counter struct {
	prometheus.Counter
}

// GetValue returns native float64 value stored by counter
func (c *counter) GetValue() float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		panic(err)
	}
	return m.GetCounter().GetValue()
}

// GetValueUint64 returns native float64 value stored by counter as uint64
func (c *counter) GetValueUint64() uint64 {
	return uint64(c.GetValue())
}

func (c *counter) AddInt(v int) {
	c.Add(float64(v))
}

func (c *counter) AddUint64(v uint64) {
	c.Add(float64(v))
}

type gauge struct {
	prometheus.Gauge
}

func (g *gauge) GetValue() float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		panic(err)
	}
	return m.GetGauge().GetValue()
}

func (g *gauge) GetValueUint64() uint64 {
	return uint64(g.GetValue())
}

func (g *gauge) SetUint64(v uint64) {
	g.Set(float64(v))
}

func (g *gauge) SetInt(v int) {
	g.Set(float64(v))
}

type summary struct {
	prometheus.Summary
}

func (s *summary) ObserveDuration(start time.Time) {
	s.Observe(time.Since(start).Seconds())
}
