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

import "math"

const minuteUS uint64 = 60_000_000

// direction history per parameter, for thrashing detection.
type directionHistory struct {
	hasLast      bool
	lastDir      int8
	flipCount    uint32
	windowStart  uint64
}

// cumulative |delta| history per parameter, for budget-exhaustion detection.
type deltaBudget struct {
	cumulative  float64
	windowStart uint64
}

// ControlSafety tracks per-parameter direction flips and cumulative delta
// budget over 60-second rolling windows, plus consecutive objective
// regressions, latching SafeMode when any guardrail is exceeded.
type ControlSafety struct {
	guardrails           Guardrails
	directionTracker     map[ParamID]*directionHistory
	budgetTracker        map[ParamID]*deltaBudget
	consecutiveRegressions uint32
	hasLastObjective     bool
	lastObjective        float64
	safeMode             *SafeMode
}

// NewControlSafety constructs a latch bound to the given guardrails.
func NewControlSafety(guardrails Guardrails) *ControlSafety {
	return &ControlSafety{
		guardrails:       guardrails,
		directionTracker: make(map[ParamID]*directionHistory),
		budgetTracker:    make(map[ParamID]*deltaBudget),
	}
}

// IsSafeMode reports whether the latch is currently engaged.
func (c *ControlSafety) IsSafeMode() bool {
	return c.safeMode != nil
}

// SafeModeState returns the active latch state, if any.
func (c *ControlSafety) SafeModeState() *SafeMode {
	return c.safeMode
}

// EnterSafeMode engages the latch with a timer-based exit condition.
func (c *ControlSafety) EnterSafeMode(reason SafeModeReason, nowUS, cooldownUS uint64) {
	c.safeMode = &SafeMode{
		EnteredAtUS: nowUS,
		Reason:      reason,
		Exit:        SafeModeExit{Kind: ExitTimer, RemainingUS: cooldownUS},
	}
}

// TryExitSafeMode clears the latch if its timer has elapsed. It returns
// true if the latch was cleared.
func (c *ControlSafety) TryExitSafeMode(nowUS uint64) bool {
	if c.safeMode == nil {
		return false
	}
	if c.safeMode.Exit.Kind == ExitTimer {
		elapsed := saturatingSub(nowUS, c.safeMode.EnteredAtUS)
		if elapsed >= c.safeMode.Exit.RemainingUS {
			c.safeMode = nil
			return true
		}
	}
	return false
}

// ResetSafeMode manually clears the latch regardless of its exit condition.
func (c *ControlSafety) ResetSafeMode() {
	c.safeMode = nil
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// RecordDelta updates direction-flip and cumulative-budget tracking for
// every dimension touched by delta, latching SafeMode if either guardrail
// is exceeded. Thrashing takes priority over budget exhaustion, matching
// the original implementation's check order.
func (c *ControlSafety) RecordDelta(delta ParamVec, nowUS uint64) {
	enterThrashing := false
	enterBudget := false

	for i, d := range delta {
		id := ParamID(i)
		var direction int8
		switch {
		case d > 0:
			direction = 1
		case d < 0:
			direction = -1
		}

		hist, ok := c.directionTracker[id]
		if !ok {
			hist = &directionHistory{}
			c.directionTracker[id] = hist
		}
		if saturatingSub(nowUS, hist.windowStart) > minuteUS {
			hist.flipCount = 0
			hist.windowStart = nowUS
		}
		if direction != 0 {
			if hist.hasLast && hist.lastDir != 0 && hist.lastDir != direction {
				hist.flipCount++
				if hist.flipCount > c.guardrails.DirectionFlipLimit {
					enterThrashing = true
				}
			}
			hist.lastDir = direction
			hist.hasLast = true
		}

		budget, ok := c.budgetTracker[id]
		if !ok {
			budget = &deltaBudget{}
			c.budgetTracker[id] = budget
		}
		if saturatingSub(nowUS, budget.windowStart) > minuteUS {
			budget.cumulative = 0
			budget.windowStart = nowUS
		}
		budget.cumulative += math.Abs(d)
		if budget.cumulative > c.guardrails.MaxCumulativeDeltaPerMinute {
			enterBudget = true
		}
	}

	if enterThrashing {
		c.EnterSafeMode(ReasonThrashing, nowUS, c.guardrails.CooldownAfterFlipUS)
	} else if enterBudget {
		c.EnterSafeMode(ReasonBudgetExhausted, nowUS, c.guardrails.CooldownAfterFlipUS)
	}
}

// RecordObjective feeds one objective-value observation into the
// consecutive-regression detector. A regression is a worsening (higher,
// under minimization) by more than 0.01 versus the prior value.
func (c *ControlSafety) RecordObjective(value float64, nowUS uint64) {
	if c.hasLastObjective {
		if value > c.lastObjective+0.01 {
			c.consecutiveRegressions++
			if c.consecutiveRegressions >= c.guardrails.RegressionCountLimit {
				c.EnterSafeMode(ReasonObjectiveRegression, nowUS, c.guardrails.CooldownAfterFlipUS)
			}
		} else {
			c.consecutiveRegressions = 0
		}
	}
	c.lastObjective = value
	c.hasLastObjective = true
}
