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

func TestControlSafetyEntryAndManualReset(t *testing.T) {
	cs := NewControlSafety(DefaultGuardrails())
	if cs.IsSafeMode() {
		t.Fatalf("expected not in SafeMode initially")
	}
	cs.EnterSafeMode(ReasonThrashing, 1000, 30_000_000)
	if !cs.IsSafeMode() || cs.SafeModeState().Reason != ReasonThrashing {
		t.Fatalf("expected Thrashing SafeMode, got %+v", cs.SafeModeState())
	}
	cs.ResetSafeMode()
	if cs.IsSafeMode() {
		t.Fatalf("expected SafeMode cleared after manual reset")
	}
}

func TestControlSafetyTimerExit(t *testing.T) {
	cs := NewControlSafety(DefaultGuardrails())
	cs.EnterSafeMode(ReasonThrashing, 1000, 100)

	if cs.TryExitSafeMode(1050) {
		t.Fatalf("expected latch to still be engaged before timer elapses")
	}
	if !cs.IsSafeMode() {
		t.Fatalf("expected still in SafeMode")
	}
	if !cs.TryExitSafeMode(1200) {
		t.Fatalf("expected latch to clear once timer elapses")
	}
	if cs.IsSafeMode() {
		t.Fatalf("expected SafeMode cleared")
	}
}

// TestControlSafetyDirectionFlipThrashing mirrors the original
// implementation's test: with directionFlipLimit=2, the third flip (not
// the second) must trigger SafeMode.
func TestControlSafetyDirectionFlipThrashing(t *testing.T) {
	guardrails := DefaultGuardrails()
	guardrails.DirectionFlipLimit = 2
	guardrails.CooldownAfterFlipUS = 1000
	cs := NewControlSafety(guardrails)

	cs.RecordDelta(ParamVec{0.05}, 1000)
	cs.RecordDelta(ParamVec{-0.05}, 2000) // flip 1
	cs.RecordDelta(ParamVec{0.05}, 3000)  // flip 2

	if cs.IsSafeMode() {
		t.Fatalf("expected no SafeMode yet after 2 flips with limit 2")
	}

	cs.RecordDelta(ParamVec{-0.05}, 4000) // flip 3 -> exceeds limit
	if !cs.IsSafeMode() {
		t.Fatalf("expected SafeMode after 3rd flip")
	}
	if cs.SafeModeState().Reason != ReasonThrashing {
		t.Fatalf("expected Thrashing reason, got %v", cs.SafeModeState().Reason)
	}
}

func TestControlSafetyBudgetExhaustion(t *testing.T) {
	guardrails := DefaultGuardrails()
	guardrails.MaxCumulativeDeltaPerMinute = 0.1
	cs := NewControlSafety(guardrails)

	cs.RecordDelta(ParamVec{0.05}, 1000)
	if cs.IsSafeMode() {
		t.Fatalf("expected no SafeMode yet")
	}
	cs.RecordDelta(ParamVec{0.06}, 2000) // cumulative 0.11 > 0.1
	if !cs.IsSafeMode() || cs.SafeModeState().Reason != ReasonBudgetExhausted {
		t.Fatalf("expected BudgetExhausted, got %+v", cs.SafeModeState())
	}
}

func TestControlSafetyBudgetWindowReset(t *testing.T) {
	guardrails := DefaultGuardrails()
	guardrails.MaxCumulativeDeltaPerMinute = 0.1
	cs := NewControlSafety(guardrails)

	cs.RecordDelta(ParamVec{0.08}, 1000)
	cs.RecordDelta(ParamVec{0.08}, 1000+minuteUS+1) // window reset, fresh budget
	if cs.IsSafeMode() {
		t.Fatalf("expected budget window to have reset, got SafeMode %+v", cs.SafeModeState())
	}
}

func TestControlSafetyObjectiveRegression(t *testing.T) {
	guardrails := DefaultGuardrails()
	guardrails.RegressionCountLimit = 2
	cs := NewControlSafety(guardrails)

	cs.RecordObjective(1.0, 1000)
	cs.RecordObjective(1.5, 2000) // regression 1
	if cs.IsSafeMode() {
		t.Fatalf("expected no SafeMode after single regression")
	}
	cs.RecordObjective(2.0, 3000) // regression 2 -> latch
	if !cs.IsSafeMode() || cs.SafeModeState().Reason != ReasonObjectiveRegression {
		t.Fatalf("expected ObjectiveRegression, got %+v", cs.SafeModeState())
	}
}

func TestControlSafetyObjectiveRecoveryResetsStreak(t *testing.T) {
	guardrails := DefaultGuardrails()
	guardrails.RegressionCountLimit = 2
	cs := NewControlSafety(guardrails)

	cs.RecordObjective(1.0, 1000)
	cs.RecordObjective(1.5, 2000) // regression 1
	cs.RecordObjective(1.0, 3000) // improvement resets streak
	cs.RecordObjective(1.5, 4000) // regression 1 again (not 3rd cumulative)
	if cs.IsSafeMode() {
		t.Fatalf("expected regression streak to have reset on improvement")
	}
}
