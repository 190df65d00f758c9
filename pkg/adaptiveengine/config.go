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

import "sync/atomic"

// AtomicConfig holds the live configuration snapshot behind an atomic
// pointer so readers never block a writer and never observe a torn
// snapshot. A separate baseline pointer supports rollback.
type AtomicConfig struct {
	current    atomic.Pointer[ConfigSnapshot]
	generation atomic.Uint64
	baseline   atomic.Pointer[ConfigSnapshot]
}

// NewAtomicConfig constructs a cell at generation 0 with the given initial
// parameters.
func NewAtomicConfig(params ParamVec) *AtomicConfig {
	c := &AtomicConfig{}
	c.current.Store(NewConfigSnapshot(params))
	return c
}

// Snapshot returns the current snapshot. The handle remains valid even
// after subsequent swaps.
func (c *AtomicConfig) Snapshot() *ConfigSnapshot {
	return c.current.Load()
}

// Generation returns the current generation counter.
func (c *AtomicConfig) Generation() uint64 {
	return c.generation.Load()
}

// Swap atomically publishes newParams as the next generation and returns
// the new generation number.
func (c *AtomicConfig) Swap(newParams ParamVec) uint64 {
	newGen := c.generation.Add(1)
	c.current.Store(WithGeneration(newParams, newGen))
	return newGen
}

// SetBaseline captures the current snapshot as the rollback target,
// overwriting any previously set baseline.
func (c *AtomicConfig) SetBaseline() {
	c.baseline.Store(c.current.Load())
}

// Baseline returns the current baseline snapshot, or nil if none is set.
func (c *AtomicConfig) Baseline() *ConfigSnapshot {
	return c.baseline.Load()
}

// Rollback publishes a new snapshot with the baseline's parameters. It
// returns ok=false if no baseline has been set.
func (c *AtomicConfig) Rollback() (newGeneration uint64, ok bool) {
	base := c.baseline.Load()
	if base == nil {
		return 0, false
	}
	newGen := c.generation.Add(1)
	c.current.Store(WithGeneration(base.Params, newGen))
	return newGen, true
}
