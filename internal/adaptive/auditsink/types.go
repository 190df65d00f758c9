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

// Package auditsink provides idempotent durable sinks for drained audit
// events (mock, Redis, Kafka). A commit is identified by (RunID, EventType,
// ProposalID), or by (RunID, EventType, TimestampUS) for events without a
// proposal id; re-delivering the same commit must be a no-op.
package auditsink

import (
	"context"

	"github.com/novelbytelabs/adaptive-engine/pkg/adaptiveengine"
)

// AuditCommit is the sink-facing shape for one drained audit event: an
// idempotency key (CommitID) derived from the event plus the event payload.
type AuditCommit struct {
	RunID      string
	ProposalID uint64
	CommitID   string
	Event      adaptiveengine.AuditEvent
}

// Sink is the minimal API every adapter implements: apply a batch of
// commits atomically with respect to each entry's idempotency key, safe to
// retry.
type Sink interface {
	CommitBatch(ctx context.Context, commits []AuditCommit) error
}

// ToCommits converts a batch of drained audit events into idempotent
// commits, synthesizing a CommitID from RunID+EventType+ProposalID when the event
// carries a proposal id, or from RunID+EventType+Timestamp otherwise.
func ToCommits(events []adaptiveengine.AuditEvent) []AuditCommit {
	out := make([]AuditCommit, 0, len(events))
	for _, e := range events {
		var proposalID uint64
		var commitID string
		if e.ProposalID != nil {
			proposalID = *e.ProposalID
			commitID = commitKey(e.RunID, e.EventType, proposalID)
		} else {
			commitID = commitKeyTimestamp(e.RunID, e.EventType, e.TimestampUS)
		}
		out = append(out, AuditCommit{RunID: e.RunID, ProposalID: proposalID, CommitID: commitID, Event: e})
	}
	return out
}
