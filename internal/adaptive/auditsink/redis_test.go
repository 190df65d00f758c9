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
	"errors"
	"testing"
	"time"
)

type fakeRedisEvaler struct {
	calls     int
	lastKeys  []string
	returnErr error
}

func (f *fakeRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	if f.returnErr != nil {
		return nil, f.returnErr
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f.calls++
	f.lastKeys = append([]string{}, keys...)
	return int64(1), nil
}

func TestNewRedisSinkDefaultTTL(t *testing.T) {
	r := NewRedisSink(&fakeRedisEvaler{}, 0)
	if r.markerTTL != 24*time.Hour {
		t.Fatalf("expected default TTL 24h, got %v", r.markerTTL)
	}
}

func TestRedisSinkCommitBatchEmpty(t *testing.T) {
	r := NewRedisSink(&fakeRedisEvaler{}, time.Hour)
	if err := r.CommitBatch(context.Background(), nil); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestRedisSinkCommitBatchSuccess(t *testing.T) {
	fake := &fakeRedisEvaler{}
	r := NewRedisSink(fake, 0)
	commits := []AuditCommit{{RunID: "run-1", CommitID: "run-1:apply:7"}}
	if err := r.CommitBatch(context.Background(), commits); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 call, got %d", fake.calls)
	}
	wantKeys := []string{redisStreamKey("run-1"), redisCommitMarkerKey("run-1:apply:7")}
	if len(fake.lastKeys) != 2 || fake.lastKeys[0] != wantKeys[0] || fake.lastKeys[1] != wantKeys[1] {
		t.Fatalf("keys mismatch: got %v want %v", fake.lastKeys, wantKeys)
	}
}

func TestRedisSinkCommitBatchCommitIDRequired(t *testing.T) {
	r := NewRedisSink(&fakeRedisEvaler{}, time.Second)
	err := r.CommitBatch(context.Background(), []AuditCommit{{RunID: "run-1"}})
	if err == nil || err.Error() != "AuditCommit.CommitID must be set" {
		t.Fatalf("expected commit id error, got: %v", err)
	}
}

func TestRedisSinkCommitBatchClientErrorPropagates(t *testing.T) {
	fake := &fakeRedisEvaler{returnErr: errors.New("boom")}
	r := NewRedisSink(fake, time.Second)
	err := r.CommitBatch(context.Background(), []AuditCommit{{RunID: "run-1", CommitID: "c"}})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}
}
