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

import "testing"

func newTestExecutor() (*SafetyExecutor, *AtomicConfig, *ControlSafety) {
	guardrails := DefaultGuardrails()
	guardrails.MinIntervalUS = 0
	guardrails.MaxUpdatesPerSecond = 1000
	bounds := Bounds{Min: ParamVec{0.0}, Max: ParamVec{1.0}}
	config := NewAtomicConfig(ParamVec{0.5})
	safety := NewControlSafety(guardrails)
	exec := NewSafetyExecutor(guardrails, bounds, config, safety)
	return exec, config, safety
}

func TestSafetyExecutorBoundsRejection(t *testing.T) {
	exec, config, _ := newTestExecutor()
	proposal := Proposal{Kind: ProposalUpdate, Delta: ParamVec{0.9}} // 0.5+0.9 = 1.4 > max 1.0, also exceeds max-delta-per-step
	_, violation := exec.Apply(proposal, 1_000_000, nil, "run-1")
	if violation == nil {
		t.Fatalf("expected a violation")
	}
	if config.Generation() != 0 {
		t.Fatalf("expected no swap on rejected proposal, generation=%d", config.Generation())
	}
}

func TestSafetyExecutorOutOfBoundsSpecifically(t *testing.T) {
	exec, config, _ := newTestExecutor()
	exec.guardrails.MaxDeltaPerStep = 10.0 // widen so only the bounds gate fires
	exec.bounds = Bounds{Min: ParamVec{0.0}, Max: ParamVec{0.6}}
	proposal := Proposal{Kind: ProposalUpdate, Delta: ParamVec{0.2}} // 0.5+0.2=0.7 > 0.6
	_, violation := exec.Apply(proposal, 1_000_000, nil, "run-1")
	if violation == nil || violation.Kind != ViolationOutOfBounds {
		t.Fatalf("expected OutOfBounds violation, got %+v", violation)
	}
	if config.Generation() != 0 {
		t.Fatalf("expected no swap, generation=%d", config.Generation())
	}
}

func TestSafetyExecutorAcceptsValidDelta(t *testing.T) {
	exec, config, _ := newTestExecutor()
	proposal := Proposal{Kind: ProposalUpdate, Delta: ParamVec{0.05}}
	receipt, violation := exec.Apply(proposal, 1_000_000, nil, "run-1")
	if violation != nil {
		t.Fatalf("unexpected violation: %v", violation)
	}
	if receipt.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", receipt.Generation)
	}
	if config.Snapshot().Params[0] != 0.55 {
		t.Fatalf("expected 0.55, got %v", config.Snapshot().Params[0])
	}
}

func TestSafetyExecutorRateLimit(t *testing.T) {
	exec, _, _ := newTestExecutor()
	exec.guardrails.MinIntervalUS = 1_000_000
	proposal := Proposal{Kind: ProposalUpdate, Delta: ParamVec{0.01}}

	if _, v := exec.Apply(proposal, 1_000_000, nil, "run-1"); v != nil {
		t.Fatalf("unexpected violation on first apply: %v", v)
	}
	if _, v := exec.Apply(proposal, 1_500_000, nil, "run-1"); v == nil || v.Kind != ViolationRateLimitExceeded {
		t.Fatalf("expected RateLimitExceeded, got %+v", v)
	}
}

func TestSafetyExecutorRollbackRoundTrip(t *testing.T) {
	exec, config, _ := newTestExecutor()
	exec.SetBaseline()
	exec.Apply(Proposal{Kind: ProposalUpdate, Delta: ParamVec{0.05}}, 1_000_000, nil, "run-1")
	if config.Snapshot().Params[0] != 0.55 {
		t.Fatalf("expected 0.55 after apply, got %v", config.Snapshot().Params[0])
	}
	receipt, err := exec.Rollback(2_000_000, nil, "run-1")
	if err != nil {
		t.Fatalf("unexpected rollback error: %v", err)
	}
	if config.Snapshot().Params[0] != 0.5 {
		t.Fatalf("expected rollback to restore 0.5, got %v", config.Snapshot().Params[0])
	}
	if receipt.RevertedToGeneration != 2 {
		t.Fatalf("expected generation 2, got %d", receipt.RevertedToGeneration)
	}
}

func TestSafetyExecutorRollbackWithoutBaseline(t *testing.T) {
	exec, _, _ := newTestExecutor()
	if _, err := exec.Rollback(1, nil, "run-1"); err != ErrNoBaseline {
		t.Fatalf("expected ErrNoBaseline, got %v", err)
	}
}

func TestSafetyExecutorAuditQueueFullLatchesSafeMode(t *testing.T) {
	exec, _, safety := newTestExecutor()
	audit := NewAuditQueue(1)
	audit.Enqueue(AuditEvent{}) // fill to capacity 1

	proposal := Proposal{Kind: ProposalUpdate, Delta: ParamVec{0.01}}
	_, violation := exec.Apply(proposal, 1_000_000, audit, "run-1")
	if violation == nil || violation.Kind != ViolationAuditQueueFull {
		t.Fatalf("expected AuditQueueFull violation, got %+v", violation)
	}
	if !safety.IsSafeMode() {
		t.Fatalf("expected SafeMode to be latched")
	}
	if safety.SafeModeState().Reason != ReasonAuditQueueFull {
		t.Fatalf("expected AuditQueueFull reason, got %v", safety.SafeModeState().Reason)
	}
}
