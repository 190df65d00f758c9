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

package adaptiveengine

import "time"

// Now is swappable in tests so the control loop's time source is
// deterministic, the same pattern the teacher's time-footprint plugin uses
// for its own event timestamps.
var Now = func() uint64 {
	return uint64(time.Now().UnixMicro())
}

// Config groups every knob the orchestrator needs, mirroring the original
// implementation's AdaptiveEngineConfig grouping rather than inventing a
// different shape.
type Config struct {
	RunID                   string
	ParamNames              []string
	Bounds                  Bounds
	SPSA                    SPSAConfig
	Guardrails              Guardrails
	TelemetryBufferCapacity int
	AuditQueueCapacity      int
}

// DefaultConfig returns a config with the original implementation's default
// capacities (1024 telemetry digests, 4096 audit events).
func DefaultConfig(runID string, paramNames []string, bounds Bounds, spsa SPSAConfig) Config {
	return Config{
		RunID:                   runID,
		ParamNames:              paramNames,
		Bounds:                  bounds,
		SPSA:                    spsa,
		Guardrails:              DefaultGuardrails(),
		TelemetryBufferCapacity: DefaultTelemetryBufferCapacity,
		AuditQueueCapacity:      DefaultAuditQueueCapacity,
	}
}

// Engine is the orchestrator wiring the parameter registry, atomic config
// cell, telemetry buffer, audit queue, SPSA proposer, and safety executor
// into the two verbs a caller needs: Observe and Apply.
type Engine struct {
	cfg      Config
	registry *ParamRegistry
	config   *AtomicConfig
	telemetry *TelemetryRingBuffer
	audit    *AuditQueue
	proposer *SPSAProposer
	safety   *ControlSafety
	executor *SafetyExecutor
}

// New constructs an engine over the given initial parameter values (in
// registry order).
func New(cfg Config, initialParams ParamVec) *Engine {
	registry := NewParamRegistry(cfg.ParamNames)
	config := NewAtomicConfig(initialParams)
	telemetry := NewTelemetryRingBuffer(cfg.TelemetryBufferCapacity)
	audit := NewAuditQueue(cfg.AuditQueueCapacity)
	proposer := NewSPSAProposer(cfg.SPSA, registry.Len())
	safety := NewControlSafety(cfg.Guardrails)
	executor := NewSafetyExecutor(cfg.Guardrails, cfg.Bounds, config, safety)

	return &Engine{
		cfg:       cfg,
		registry:  registry,
		config:    config,
		telemetry: telemetry,
		audit:     audit,
		proposer:  proposer,
		safety:    safety,
		executor:  executor,
	}
}

// Registry exposes the engine's parameter registry.
func (e *Engine) Registry() *ParamRegistry {
	return e.registry
}

// Snapshot returns the current configuration snapshot.
func (e *Engine) Snapshot() *ConfigSnapshot {
	return e.config.Snapshot()
}

// Iteration returns the proposer's completed-update count.
func (e *Engine) Iteration() uint64 {
	return e.proposer.Iteration()
}

// CurrentPerturbation returns the proposer's in-flight perturbation vector.
func (e *Engine) CurrentPerturbation() (ParamVec, bool) {
	return e.proposer.CurrentPerturbation()
}

// AuditQueueHandle exposes the shared audit queue for an external drainer.
func (e *Engine) AuditQueueHandle() *AuditQueue {
	return e.audit
}

// SafeModeState reports the control-safety latch state, if engaged.
func (e *Engine) SafeModeState() *SafeMode {
	return e.safety.SafeModeState()
}

// ResetSafeMode manually clears the control-safety latch.
func (e *Engine) ResetSafeMode() {
	e.safety.ResetSafeMode()
}

// SetBaseline captures the current snapshot as the rollback target.
func (e *Engine) SetBaseline() {
	e.executor.SetBaseline()
}

// Observe feeds one telemetry digest through the ring buffer and SPSA
// proposer, emitting Digest/Proposal audit events along the way. If the
// audit queue is full, SafeMode is latched and a NoChange proposal is
// returned without advancing the proposer state machine. SafeMode latched
// for any other reason does not gate Observe: the proposer's state machine
// keeps advancing, and it is Apply/C6 that refuses to commit while latched.
func (e *Engine) Observe(digest TelemetryDigest) Proposal {
	nowUS := digest.TimestampUS
	if nowUS == 0 {
		nowUS = Now()
		digest.TimestampUS = nowUS
	}

	if res := e.audit.Enqueue(AuditEvent{EventType: EventDigest, TimestampUS: nowUS, RunID: e.cfg.RunID, ConfigVersion: e.config.Generation()}); res == EnqueueFull {
		e.safety.EnterSafeMode(ReasonAuditQueueFull, nowUS, e.cfg.Guardrails.CooldownAfterFlipUS)
		return Proposal{Kind: ProposalNoChange, NoChangeReason: ReasonSafeMode}
	}

	e.telemetry.Push(digest)
	e.safety.RecordObjective(digest.ObjectiveValue, nowUS)

	if e.safety.IsSafeMode() {
		e.safety.TryExitSafeMode(nowUS)
	}

	proposal := e.proposer.Observe(digest)

	e.audit.Enqueue(AuditEvent{EventType: EventProposal, TimestampUS: nowUS, RunID: e.cfg.RunID, ConfigVersion: e.config.Generation()}.WithPayload(proposal.String()))

	return proposal
}

// Apply validates and, if accepted, commits a proposal's delta against the
// shared config cell, recording it with the control-safety latch.
func (e *Engine) Apply(proposal Proposal) (ApplyReceipt, error) {
	nowUS := Now()
	receipt, violation := e.executor.Apply(proposal, nowUS, e.audit, e.cfg.RunID)
	if violation != nil {
		return receipt, violation
	}
	return receipt, nil
}

// Rollback restores the baseline snapshot captured by SetBaseline.
func (e *Engine) Rollback() (RollbackReceipt, error) {
	return e.executor.Rollback(Now(), e.audit, e.cfg.RunID)
}
