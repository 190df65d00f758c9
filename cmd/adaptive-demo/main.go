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

// Package main provides the entry point for the adaptive-demo application.
//
// This demo runs a two-tier online hyperparameter control loop
// (pkg/adaptiveengine) against a synthetic objective so its behavior can be
// observed without wiring it to a real production system: a ticker-driven
// generator feeds telemetry digests, the engine proposes and applies SPSA
// perturbations under safety guardrails, and an audit drainer ships every
// decision to a configurable sink.
package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/novelbytelabs/adaptive-engine/internal/adaptive/auditdrain"
	"github.com/novelbytelabs/adaptive-engine/internal/adaptive/auditsink"
	"github.com/novelbytelabs/adaptive-engine/internal/adaptive/guardconf"
	"github.com/novelbytelabs/adaptive-engine/internal/adaptive/telemetry/obs"
	"github.com/novelbytelabs/adaptive-engine/pkg/adaptiveengine"
)

func main() {
	root := &cobra.Command{
		Use:   "adaptive-demo",
		Short: "Run the adaptive-engine control loop against a synthetic objective",
		Long: `adaptive-demo drives pkg/adaptiveengine end to end: a synthetic telemetry
generator stands in for a production metrics pipeline, the engine proposes and
applies SPSA-perturbed configuration updates, and an audit drainer ships every
decision to a configurable sink (mock, redis, or kafka).`,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newGuardrailsTemplateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newGuardrailsTemplateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "guardrails-template",
		Short: "Print a starter guardrails.yaml seeded from the default guardrails",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := guardconf.Template()
			if err != nil {
				return fmt.Errorf("render template: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newRunCommand() *cobra.Command {
	var (
		runID          string
		paramNames     []string
		tickInterval   time.Duration
		drainInterval  time.Duration
		sinkAdapter    string
		guardrailsYAML string
		metricsAddr    string
		logInterval    time.Duration
		seed           int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the control loop against a synthetic objective until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(demoOptions{
				runID:          runID,
				paramNames:     paramNames,
				tickInterval:   tickInterval,
				drainInterval:  drainInterval,
				sinkAdapter:    sinkAdapter,
				guardrailsYAML: guardrailsYAML,
				metricsAddr:    metricsAddr,
				logInterval:    logInterval,
				seed:           seed,
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "demo-run", "identifier stamped on every audit event")
	cmd.Flags().StringSliceVar(&paramNames, "params", []string{"cache_ttl", "batch_size", "concurrency"}, "parameter names, in registry order")
	cmd.Flags().DurationVar(&tickInterval, "tick-interval", 200*time.Millisecond, "interval between synthetic telemetry digests")
	cmd.Flags().DurationVar(&drainInterval, "drain-interval", time.Second, "interval between audit queue drains")
	cmd.Flags().StringVar(&sinkAdapter, "sink", "mock", "audit sink adapter: mock, redis, or kafka")
	cmd.Flags().StringVar(&guardrailsYAML, "guardrails", "", "path to a guardrails.yaml file; empty uses built-in defaults")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if non-empty, expose Prometheus /metrics on this address")
	cmd.Flags().DurationVar(&logInterval, "log-interval", 5*time.Second, "console KPI summary interval; 0 disables it")
	cmd.Flags().Int64Var(&seed, "seed", 42, "SPSA perturbation seed")

	return cmd
}

type demoOptions struct {
	runID          string
	paramNames     []string
	tickInterval   time.Duration
	drainInterval  time.Duration
	sinkAdapter    string
	guardrailsYAML string
	metricsAddr    string
	logInterval    time.Duration
	seed           int64
}

func runDemo(o demoOptions) error {
	guardrails := adaptiveengine.DefaultGuardrails()
	if o.guardrailsYAML != "" {
		manager, err := guardconf.NewManager(o.guardrailsYAML)
		if err != nil {
			return fmt.Errorf("load guardrails: %w", err)
		}
		guardrails = manager.Current()
	}

	bounds := adaptiveengine.Bounds{
		Min: make(adaptiveengine.ParamVec, len(o.paramNames)),
		Max: make(adaptiveengine.ParamVec, len(o.paramNames)),
	}
	initial := make(adaptiveengine.ParamVec, len(o.paramNames))
	for i := range o.paramNames {
		bounds.Min[i] = 0.0
		bounds.Max[i] = 10.0
		initial[i] = 5.0
	}

	spsaCfg := adaptiveengine.DefaultSPSAConfig(uint64(o.seed), 0.05, 0.1)
	cfg := adaptiveengine.DefaultConfig(o.runID, o.paramNames, bounds, spsaCfg)
	cfg.Guardrails = guardrails

	engine := adaptiveengine.New(cfg, initial)
	engine.SetBaseline()

	sink, err := auditsink.Build(o.sinkAdapter, auditsink.Options{})
	if err != nil {
		return fmt.Errorf("build audit sink: %w", err)
	}
	drainer := auditdrain.NewDrainer(engine.AuditQueueHandle(), sink, o.drainInterval)
	drainer.Start()
	defer drainer.Stop()

	obs.Enable(obs.Config{
		Enabled:     true,
		MetricsAddr: o.metricsAddr,
		LogInterval: o.logInterval,
	})
	defer obs.Enable(obs.Config{Enabled: false})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("adaptive-demo: run_id=%s params=%v sink=%s\n", o.runID, o.paramNames, o.sinkAdapter)

	rng := rand.New(rand.NewSource(o.seed))
	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	wasSafeMode := false
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nadaptive-demo: shutting down")
			return nil
		case <-ticker.C:
			wasSafeMode = runTick(engine, rng, wasSafeMode)
		}
	}
}

// runTick feeds one synthetic telemetry digest through the engine and, if a
// real update is proposed, applies it. The synthetic objective, evaluated at
// the current snapshot, is a noisy bowl with its minimum at 5.0 in every
// dimension so the demo has something to optimize toward without any
// external dependency. It returns the current
// SafeMode state so the caller can track transitions across ticks.
func runTick(engine *adaptiveengine.Engine, rng *rand.Rand, wasSafeMode bool) bool {
	snapshot := engine.Snapshot()
	objective := syntheticObjective(snapshot.Params, rng)
	digest := adaptiveengine.Objective(objective)

	proposal := engine.Observe(digest)
	if proposal.Kind == adaptiveengine.ProposalUpdate {
		receipt, err := engine.Apply(proposal)
		if err != nil {
			fmt.Printf("apply rejected: %v\n", err)
		} else {
			obs.ObserveApply(receipt.NoChange, receipt.ApplyLatencyUS)
		}
	}

	isSafeMode := engine.SafeModeState() != nil
	switch {
	case isSafeMode && !wasSafeMode:
		obs.ObserveSafeModeEntered()
	case !isSafeMode && wasSafeMode:
		obs.ObserveSafeModeExited()
	}
	obs.ObserveConfigGeneration(engine.Snapshot().Generation)
	obs.ObserveAuditQueue(engine.AuditQueueHandle().Len(), engine.AuditQueueHandle().Capacity())
	return isSafeMode
}

func syntheticObjective(params adaptiveengine.ParamVec, rng *rand.Rand) float64 {
	var sum float64
	for _, p := range params {
		d := p - 5.0
		sum += d * d
	}
	noise := rng.NormFloat64() * 0.1
	return math.Sqrt(sum) + noise
}
