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
	"testing"
)

func TestSPSAStateMachineShape(t *testing.T) {
	cfg := DefaultSPSAConfig(42, 0.1, 0.1)
	p := NewSPSAProposer(cfg, 1)

	plus := p.Observe(TelemetryDigest{TimestampUS: 1, ObjectiveValue: 10.0})
	if plus.Kind != ProposalApplyPlus {
		t.Fatalf("expected ApplyPlus, got %v", plus.Kind)
	}
	if len(plus.Delta) != 1 {
		t.Fatalf("expected 1-dim delta, got %d", len(plus.Delta))
	}

	minus := p.Observe(TelemetryDigest{TimestampUS: 2, ObjectiveValue: 8.0})
	if minus.Kind != ProposalApplyMinus {
		t.Fatalf("expected ApplyMinus, got %v", minus.Kind)
	}
	if minus.Delta[0] != -plus.Delta[0] {
		t.Fatalf("expected minus delta to negate plus delta: %v vs %v", minus.Delta[0], plus.Delta[0])
	}

	update := p.Observe(TelemetryDigest{TimestampUS: 3, ObjectiveValue: 6.0})
	if update.Kind != ProposalUpdate {
		t.Fatalf("expected Update, got %v", update.Kind)
	}
	if update.Iteration != 0 {
		t.Fatalf("expected iteration 0, got %d", update.Iteration)
	}
	if p.Iteration() != 1 {
		t.Fatalf("expected proposer iteration 1 after first update, got %d", p.Iteration())
	}

	wantG := (10.0 - 8.0) / (2 * plus.Delta[0])
	wantUpdate := -p.akAt(0) * wantG
	if math.Abs(update.Gradient[0]-wantG) > 1e-12 {
		t.Fatalf("gradient mismatch: got %v want %v", update.Gradient[0], wantG)
	}
	if math.Abs(update.Delta[0]-wantUpdate) > 1e-12 {
		t.Fatalf("update mismatch: got %v want %v", update.Delta[0], wantUpdate)
	}

	// Back to Ready: next Observe starts a new perturbation.
	next := p.Observe(TelemetryDigest{TimestampUS: 4, ObjectiveValue: 5.0})
	if next.Kind != ProposalApplyPlus {
		t.Fatalf("expected new ApplyPlus after completing a cycle, got %v", next.Kind)
	}
}

// akAt lets tests compute the exact learning-rate schedule value at a given
// k without duplicating the formula.
func (p *SPSAProposer) akAt(k uint64) float64 {
	saved := p.k
	p.k = k
	v := p.ak()
	p.k = saved
	return v
}

// TestSPSADeterministicSeed mirrors the "deterministic two-step SPSA" test:
// two independently constructed proposers, seeded identically and fed the
// identical digest sequence, must produce bit-for-bit identical proposals.
func TestSPSADeterministicSeed(t *testing.T) {
	cfg := DefaultSPSAConfig(42, 0.1, 0.1)
	digests := []TelemetryDigest{
		{TimestampUS: 1, ObjectiveValue: 10.0},
		{TimestampUS: 2, ObjectiveValue: 8.0},
		{TimestampUS: 3, ObjectiveValue: 6.0},
	}

	run := func() []Proposal {
		p := NewSPSAProposer(cfg, 3)
		var out []Proposal
		for _, d := range digests {
			out = append(out, p.Observe(d))
		}
		return out
	}

	a := run()
	b := run()

	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Kind != b[i].Kind {
			t.Fatalf("step %d: kind mismatch %v vs %v", i, a[i].Kind, b[i].Kind)
		}
		for j := range a[i].Delta {
			if a[i].Delta[j] != b[i].Delta[j] {
				t.Fatalf("step %d dim %d: delta mismatch %v vs %v", i, j, a[i].Delta[j], b[i].Delta[j])
			}
		}
	}
}

func TestSPSAZeroDeltaGuard(t *testing.T) {
	cfg := DefaultSPSAConfig(7, 0.1, 0.1)
	p := NewSPSAProposer(cfg, 1)
	plus := p.Observe(TelemetryDigest{TimestampUS: 1, ObjectiveValue: 1.0})
	p.delta[0] = 0 // force the guarded near-zero perturbation case
	p.Observe(TelemetryDigest{TimestampUS: 2, ObjectiveValue: 1.0})
	update := p.Observe(TelemetryDigest{TimestampUS: 3, ObjectiveValue: 1.0})
	if update.Kind != ProposalUpdate {
		t.Fatalf("expected Update, got %v", update.Kind)
	}
	if update.Gradient[0] != 0 || update.Delta[0] != 0 {
		t.Fatalf("expected zero gradient/update when delta is zero, got grad=%v delta=%v", update.Gradient[0], update.Delta[0])
	}
	_ = plus
}

func TestSPSAEvalWindowTimeout(t *testing.T) {
	cfg := DefaultSPSAConfig(1, 0.1, 0.1)
	cfg.MaxWindowDurationUS = 100
	p := NewSPSAProposer(cfg, 1)
	p.Observe(TelemetryDigest{TimestampUS: 1000, ObjectiveValue: 1.0})
	timeout := p.Observe(TelemetryDigest{TimestampUS: 1000 + 1000, ObjectiveValue: 1.0})
	if timeout.Kind != ProposalNoChange || timeout.NoChangeReason != ReasonEvalTimeout {
		t.Fatalf("expected NoChange/EvalTimeout, got %+v", timeout)
	}
}
