/*
 * TableVisor - A Multi-Switch OpenFlow Table Virtualizer
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package metrics exposes the Prometheus collectors of the virtualizer. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tablevisor"

type Metrics struct {
	Messages         *prometheus.CounterVec
	RoundsCompleted  *prometheus.CounterVec
	RoundDuration    *prometheus.HistogramVec
	DuplicateReplies *prometheus.CounterVec
	Unroutable       *prometheus.CounterVec
	CLIInvocations   *prometheus.CounterVec
	OpenRounds       prometheus.Gauge
	ConnectedDevices prometheus.Gauge
}

// New creates the collectors and registers them to reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "messages_total",
				Help:      "Total number of messages entering the stage pipeline",
			},
			[]string{"direction", "category"},
		),
		RoundsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "rounds_completed_total",
				Help:      "Total number of aggregation rounds answered to the controller",
			},
			[]string{"category"},
		),
		RoundDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "round_duration_seconds",
				Help:      "Time from the first to the last device reply of a round",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		DuplicateReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "duplicate_replies_total",
				Help:      "Total number of discarded duplicate device replies",
			},
			[]string{"category"},
		),
		Unroutable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "unroutable_total",
				Help:      "Total number of messages dropped due to an undefined logical table",
			},
			[]string{"category"},
		),
		CLIInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "p4",
				Name:      "cli_invocations_total",
				Help:      "Total number of command line tool invocations",
			},
			[]string{"result"},
		),
		OpenRounds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "aggregator",
				Name:      "open_rounds",
				Help:      "Number of aggregation rounds waiting for device replies",
			},
		),
		ConnectedDevices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "connected",
				Help:      "Number of connected devices",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.Messages, m.RoundsCompleted, m.RoundDuration, m.DuplicateReplies,
		m.Unroutable, m.CLIInvocations, m.OpenRounds, m.ConnectedDevices,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "registering metrics")
		}
	}

	return m, nil
}

func (r *Metrics) RecordMessage(direction, category string) {
	if r == nil {
		return
	}
	r.Messages.WithLabelValues(direction, category).Inc()
}

func (r *Metrics) RecordRoundCompleted(category string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.RoundsCompleted.WithLabelValues(category).Inc()
	r.RoundDuration.WithLabelValues(category).Observe(elapsed.Seconds())
}

func (r *Metrics) RecordDuplicate(category string) {
	if r == nil {
		return
	}
	r.DuplicateReplies.WithLabelValues(category).Inc()
}

func (r *Metrics) RecordUnroutable(category string) {
	if r == nil {
		return
	}
	r.Unroutable.WithLabelValues(category).Inc()
}

func (r *Metrics) RecordCLI(success bool) {
	if r == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	r.CLIInvocations.WithLabelValues(result).Inc()
}

func (r *Metrics) SetOpenRounds(n int) {
	if r == nil {
		return
	}
	r.OpenRounds.Set(float64(n))
}

func (r *Metrics) SetConnectedDevices(n int) {
	if r == nil {
		return
	}
	r.ConnectedDevices.Set(float64(n))
}
