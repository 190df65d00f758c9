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

package auditsink

import (
	"context"
	"fmt"
	"sync"
)

// mockSink is an in-memory idempotent sink, useful for demos and tests.
type mockSink struct {
	mu      sync.Mutex
	applied map[string]struct{}
	total   int
}

// NewMockSink returns a sink that keeps applied commits in memory.
func NewMockSink() Sink {
	return &mockSink{applied: make(map[string]struct{})}
}

func (m *mockSink) CommitBatch(ctx context.Context, commits []AuditCommit) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	applied := 0
	for _, c := range commits {
		if _, seen := m.applied[c.CommitID]; seen {
			continue
		}
		m.applied[c.CommitID] = struct{}{}
		applied++
	}
	m.total += applied
	fmt.Printf("[auditsink-mock] batch=%d applied=%d total=%d\n", len(commits), applied, m.total)
	return nil
}
