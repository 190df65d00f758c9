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

// Six properties this package's tests hold the engine to:
//
//  1. Deterministic SPSA: with a fixed seed and a fixed digest sequence,
//     Observe produces bit-for-bit identical ApplyPlus/ApplyMinus/Update
//     proposals across runs.
//  2. Bounds rejection: a delta pushing any parameter outside its bounds is
//     rejected before any config swap occurs.
//  3. Thrashing latch: repeated direction flips beyond the configured limit
//     engage SafeMode(Thrashing) and subsequent proposals become no-ops
//     until the cooldown timer elapses.
//  4. Rollback round trip: SetBaseline followed by one or more swaps
//     followed by Rollback restores exactly the baseline parameter values
//     and bumps the generation counter.
//  5. Audit queue full: enqueuing past capacity returns Full (never a
//     silent drop) and latches SafeMode(AuditQueueFull).
//  6. Snapshot concurrency: many concurrent readers calling Snapshot while
//     a writer performs Swap never observe a torn or stale-after-its-time
//     snapshot.
package adaptiveengine
