// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package obs provides opt-in telemetry for the control loop: Prometheus
// counters/gauges plus a periodic console KPI summary. All exported
// functions are no-ops when the module has not been enabled, so callers on
// the hot path never pay for what they don't use.
package obs

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the behavior of the obs module.
type Config struct {
	Enabled     bool
	MetricsAddr string        // e.g. ":9090". Empty disables the standalone /metrics server.
	LogInterval time.Duration // 0 disables the console exporter loop.
	Window      time.Duration // KPI window; defaults to 1m if 0.
}

var (
	modEnabled atomic.Bool

	applyLatencyUS = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "adaptive_apply_latency_microseconds",
		Help:    "Distribution of safety-executor Apply call latency in microseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
	applyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_apply_total",
		Help: "Total number of proposals applied to the live configuration",
	})
	noChangeTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_no_change_total",
		Help: "Total number of proposals that resulted in no configuration change",
	})
	rollbackTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_rollback_total",
		Help: "Total number of rollbacks to the configuration baseline",
	})
	safeModeEntriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_safe_mode_entries_total",
		Help: "Total number of times the control-safety latch engaged",
	})
	safeModeActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adaptive_safe_mode_active",
		Help: "1 while SafeMode is latched, 0 otherwise",
	})
	auditQueueFillRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adaptive_audit_queue_fill_ratio",
		Help: "Audit queue length divided by its configured capacity",
	})
	configGeneration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adaptive_config_generation",
		Help: "Current configuration generation number",
	})
)

func init() {
	prometheus.MustRegister(applyLatencyUS, applyTotal, noChangeTotal, rollbackTotal,
		safeModeEntriesTotal, safeModeActive, auditQueueFillRatio, configGeneration)
}

// Enable configures the module. Safe to call multiple times; later calls
// replace the prior configuration.
func Enable(cfg Config) {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	modEnabled.Store(cfg.Enabled)
	startOrUpdateExporter(cfg)
	if cfg.MetricsAddr != "" {
		startMetricsEndpoint(cfg.MetricsAddr)
	}
}

// Enabled reports whether the obs module is active.
func Enabled() bool { return modEnabled.Load() }

// ObserveApply records one Apply call's outcome and latency.
func ObserveApply(noChange bool, latencyUS uint64) {
	if !modEnabled.Load() {
		return
	}
	applyLatencyUS.Observe(float64(latencyUS))
	if noChange {
		noChangeTotal.Inc()
		return
	}
	applyTotal.Inc()
	recordApplyPoint()
}

// ObserveRollback records one Rollback call.
func ObserveRollback() {
	if !modEnabled.Load() {
		return
	}
	rollbackTotal.Inc()
}

// ObserveSafeModeEntered records a SafeMode latch engagement.
func ObserveSafeModeEntered() {
	if !modEnabled.Load() {
		return
	}
	safeModeEntriesTotal.Inc()
	safeModeActive.Set(1)
}

// ObserveSafeModeExited records a SafeMode latch release.
func ObserveSafeModeExited() {
	if !modEnabled.Load() {
		return
	}
	safeModeActive.Set(0)
}

// ObserveAuditQueue records the audit queue's current length and capacity.
func ObserveAuditQueue(length, capacity int) {
	if !modEnabled.Load() || capacity <= 0 {
		return
	}
	ratio := float64(length) / float64(capacity)
	auditQueueFillRatio.Set(ratio)
	recordQueuePoint(ratio)
}

// ObserveConfigGeneration records the current configuration generation.
func ObserveConfigGeneration(generation uint64) {
	if !modEnabled.Load() {
		return
	}
	configGeneration.Set(float64(generation))
}

func startMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
