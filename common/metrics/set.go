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
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricNameRe = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelRe      = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)="([^"]*)"$`)
)

// Set is a set of metrics registered in one prometheus registry.
type Set struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	metrics  map[string]any
}

// NewSet creates a metric set backed by a fresh registry.
func NewSet() *Set {
	return &Set{
		registry: prometheus.NewRegistry(),
		metrics:  map[string]any{},
	}
}

func (s *Set) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Set) NewCounter(name string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metrics[name]; ok {
		return nil, fmt.Errorf("metric %q is already registered", name)
	}
	return s.newCounter(name)
}

func (s *Set) GetOrCreateCounter(name string) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.metrics[name]; ok {
		c, ok := m.(*counter)
		if !ok {
			return nil, fmt.Errorf("metric %q isn't a counter", name)
		}
		return c, nil
	}
	return s.newCounter(name)
}

func (s *Set) NewGauge(name string) (Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metrics[name]; ok {
		return nil, fmt.Errorf("metric %q is already registered", name)
	}
	return s.newGauge(name)
}

func (s *Set) GetOrCreateGauge(name string) (Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.metrics[name]; ok {
		g, ok := m.(*gauge)
		if !ok {
			return nil, fmt.Errorf("metric %q isn't a gauge", name)
		}
		return g, nil
	}
	return s.newGauge(name)
}

func (s *Set) NewSummary(name string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metrics[name]; ok {
		return nil, fmt.Errorf("metric %q is already registered", name)
	}
	return s.newSummary(name)
}

func (s *Set) GetOrCreateSummary(name string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.metrics[name]; ok {
		sm, ok := m.(*summary)
		if !ok {
			return nil, fmt.Errorf("metric %q isn't a summary", name)
		}
		return sm, nil
	}
	return s.newSummary(name)
}

func (s *Set) newCounter(name string) (*counter, error) {
	metricName, labels, err := parseMetric(name)
	if err != nil {
		return nil, err
	}
	c := &counter{prometheus.NewCounter(prometheus.CounterOpts{
		Name:        metricName,
		Help:        metricName,
		ConstLabels: labels,
	})}
	if err := s.registry.Register(c.Counter); err != nil {
		return nil, err
	}
	s.metrics[name] = c
	return c, nil
}

func (s *Set) newGauge(name string) (*gauge, error) {
	metricName, labels, err := parseMetric(name)
	if err != nil {
		return nil, err
	}
	g := &gauge{prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        metricName,
		Help:        metricName,
		ConstLabels: labels,
	})}
	if err := s.registry.Register(g.Gauge); err != nil {
		return nil, err
	}
	s.metrics[name] = g
	return g, nil
}

func (s *Set) newSummary(name string) (*summary, error) {
	metricName, labels, err := parseMetric(name)
	if err != nil {
		return nil, err
	}
	sm := &summary{prometheus.NewSummary(prometheus.SummaryOpts{
		Name:        metricName,
		Help:        metricName,
		ConstLabels: labels,
		Objectives:  map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})}
	if err := s.registry.Register(sm.Summary); err != nil {
		return nil, err
	}
	s.metrics[name] = sm
	return sm, nil
}

// parseMetric splits `foo{bar="baz"}` into the metric name and its constant labels.
func parseMetric(s string) (string, prometheus.Labels, error) {
	name, rest, hasLabels := strings.Cut(s, "{")
	if !metricNameRe.MatchString(name) {
		return "", nil, fmt.Errorf("invalid metric name %q", s)
	}
	if !hasLabels {
		return name, nil, nil
	}
	if !strings.HasSuffix(rest, "}") {
		return "", nil, fmt.Errorf("missing closing curly brace in metric %q", s)
	}
	rest = strings.TrimSuffix(rest, "}")
	labels := prometheus.Labels{}
	if rest == "" {
		return name, labels, nil
	}
	for _, pair := range strings.Split(rest, ",") {
		m := labelRe.FindStringSubmatch(strings.TrimSpace(pair))
		if m == nil {
			return "", nil, fmt.Errorf("invalid label %q in metric %q", pair, s)
		}
		labels[m[1]] = m[2]
	}
	return name, labels, nil
}
