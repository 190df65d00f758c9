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

import (
	"math"
	"time"
)

// Bounds gives the closed interval each parameter must stay within.
type Bounds struct {
	Min ParamVec
	Max ParamVec
}

// SafetyExecutor validates and applies proposed deltas against the atomic
// config cell, enforcing per-step magnitude, bounds, and rate-limit gates,
// then consults ControlSafety before committing.
type SafetyExecutor struct {
	guardrails Guardrails
	bounds     Bounds
	config     *AtomicConfig
	safety     *ControlSafety

	lastApplyUS     uint64
	windowStartUS   uint64
	updatesInWindow uint64
}

// NewSafetyExecutor wires a safety executor around a shared config cell.
func NewSafetyExecutor(guardrails Guardrails, bounds Bounds, config *AtomicConfig, safety *ControlSafety) *SafetyExecutor {
	return &SafetyExecutor{guardrails: guardrails, bounds: bounds, config: config, safety: safety}
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (e *SafetyExecutor) validateDelta(delta ParamVec) *Violation {
	dim := e.config.Snapshot().Params
	if len(delta) > len(dim) {
		return &Violation{Kind: ViolationUnknownParameter, ParamID: ParamID(len(dim))}
	}
	for i, d := range delta {
		if math.Abs(d) > e.guardrails.MaxDeltaPerStep {
			return &Violation{Kind: ViolationDeltaTooLarge, ParamID: ParamID(i), Delta: d}
		}
	}
	for i, d := range delta {
		newVal := dim[i] + d
		if i < len(e.bounds.Min) && i < len(e.bounds.Max) {
			if newVal < e.bounds.Min[i] || newVal > e.bounds.Max[i] {
				return &Violation{Kind: ViolationOutOfBounds, ParamID: ParamID(i), Value: newVal, Min: e.bounds.Min[i], Max: e.bounds.Max[i]}
			}
		}
	}
	return nil
}

func (e *SafetyExecutor) checkRateLimit(nowUS uint64) *Violation {
	if e.lastApplyUS != 0 && nowUS >= e.lastApplyUS && nowUS-e.lastApplyUS < e.guardrails.MinIntervalUS {
		return &Violation{Kind: ViolationRateLimitExceeded}
	}
	if nowUS-e.windowStartUS > 1_000_000 {
		e.windowStartUS = nowUS
		e.updatesInWindow = 0
	}
	if e.guardrails.MaxUpdatesPerSecond > 0 && float64(e.updatesInWindow) >= e.guardrails.MaxUpdatesPerSecond {
		return &Violation{Kind: ViolationRateLimitExceeded}
	}
	return nil
}

func (e *SafetyExecutor) recordUpdate(nowUS uint64) {
	e.lastApplyUS = nowUS
	e.updatesInWindow++
}

// Apply validates and, if successful, commits a proposal's delta against
// the shared config cell, following the original implementation's gate
// ordering: rate, magnitude, bounds, then control-safety.
func (e *SafetyExecutor) Apply(proposal Proposal, nowUS uint64, auditQueue *AuditQueue, runID string) (ApplyReceipt, *Violation) {
	start := time.Now()
	if proposal.Kind == ProposalNoChange {
		return ApplyReceipt{NoChange: true, Generation: e.config.Generation()}, nil
	}

	if v := e.checkRateLimit(nowUS); v != nil {
		return ApplyReceipt{}, v
	}
	if v := e.validateDelta(proposal.Delta); v != nil {
		return ApplyReceipt{}, v
	}

	if e.safety.IsSafeMode() {
		e.safety.TryExitSafeMode(nowUS)
		if e.safety.IsSafeMode() {
			return ApplyReceipt{NoChange: true, Generation: e.config.Generation()}, nil
		}
	}

	current := e.config.Snapshot().Params
	newParams := make(ParamVec, len(current))
	copy(newParams, current)
	for i, d := range proposal.Delta {
		if i >= len(newParams) {
			break
		}
		v := newParams[i] + d
		if i < len(e.bounds.Min) && i < len(e.bounds.Max) {
			v = clampF(v, e.bounds.Min[i], e.bounds.Max[i])
		}
		newParams[i] = v
	}

	e.safety.RecordDelta(proposal.Delta, nowUS)
	if sm := e.safety.SafeModeState(); sm != nil {
		return ApplyReceipt{}, &Violation{Kind: ViolationSafeModeLatched, Reason: sm.Reason}
	}

	gen := e.config.Swap(newParams)
	e.recordUpdate(nowUS)

	if auditQueue != nil {
		var pid *uint64
		if proposal.Kind == ProposalUpdate {
			id := proposal.Iteration
			pid = &id
		} else {
			id := proposal.PerturbationID
			pid = &id
		}
		event := AuditEvent{EventType: EventApply, TimestampUS: nowUS, RunID: runID, ConfigVersion: gen, ProposalID: pid}
		switch auditQueue.Enqueue(event) {
		case EnqueueFull:
			e.safety.EnterSafeMode(ReasonAuditQueueFull, nowUS, e.guardrails.CooldownAfterFlipUS)
			return ApplyReceipt{}, &Violation{Kind: ViolationAuditQueueFull}
		}
	}

	return ApplyReceipt{Generation: gen, ApplyLatencyUS: uint64(time.Since(start).Microseconds())}, nil
}

// Rollback restores the baseline snapshot, if one is set.
func (e *SafetyExecutor) Rollback(nowUS uint64, auditQueue *AuditQueue, runID string) (RollbackReceipt, error) {
	gen, ok := e.config.Rollback()
	if !ok {
		return RollbackReceipt{}, ErrNoBaseline
	}
	if auditQueue != nil {
		auditQueue.Enqueue(AuditEvent{EventType: EventRollback, TimestampUS: nowUS, RunID: runID, ConfigVersion: gen})
	}
	return RollbackReceipt{RevertedToGeneration: gen}, nil
}

// SetBaseline captures the current snapshot as the rollback target.
func (e *SafetyExecutor) SetBaseline() {
	e.config.SetBaseline()
}
