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
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisEvaler abstracts the minimal surface needed from a Redis client.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// GoRedisEvaler wraps github.com/redis/go-redis/v9.
type GoRedisEvaler struct{ c *redis.Client }

// NewGoRedisEvaler dials a Redis client at addr.
func NewGoRedisEvaler(addr string) *GoRedisEvaler {
	return &GoRedisEvaler{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.c.Eval(ctx, script, keys, args...).Result()
}

// LoggingRedisEvaler is a demo client that logs the evaluation instead of
// talking to a real server.
type LoggingRedisEvaler struct{}

func (LoggingRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	fmt.Printf("[auditsink-redis-demo] EVAL script(len=%d) KEYS=%v ARGS=%v\n", len(script), keys, args)
	return int64(1), nil
}

// RedisSink applies audit commits idempotently via a Lua script:
//  1. SETNX auditcommit:<commit_id> 1
//  2. If set -> HINCRBY auditstream:<run_id> events 1 (tracks a running count per
//     run so operators can see drain progress without XRANGE scans)
//  3. EXPIRE the marker
//
// The same idempotency mechanism the teacher uses for rate-limiter commits
// (SETNX+HINCRBY+EXPIRE) is reused here; only the key shape and payload
// differ.
type RedisSink struct {
	client    RedisEvaler
	markerTTL time.Duration
}

// NewRedisSink returns a sink bound to client with the given marker TTL.
func NewRedisSink(client RedisEvaler, markerTTL time.Duration) *RedisSink {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisSink{client: client, markerTTL: markerTTL}
}

const redisLuaScript = `
local counterKey = KEYS[1]
local markerKey = KEYS[2]
local ttlSeconds = tonumber(ARGV[1])
local set = redis.call('SETNX', markerKey, 1)
if set == 1 then
  redis.call('HINCRBY', counterKey, 'events', 1)
  if ttlSeconds and ttlSeconds > 0 then
    redis.call('EXPIRE', markerKey, ttlSeconds)
  end
  return 1
else
  return 0
end
`

func redisStreamKey(runID string) string        { return fmt.Sprintf("auditstream:%s", runID) }
func redisCommitMarkerKey(commitID string) string { return fmt.Sprintf("auditcommit:%s", commitID) }

func (r *RedisSink) CommitBatch(ctx context.Context, commits []AuditCommit) error {
	if len(commits) == 0 {
		return nil
	}
	for _, c := range commits {
		if c.CommitID == "" {
			return errors.New("AuditCommit.CommitID must be set")
		}
		keys := []string{redisStreamKey(c.RunID), redisCommitMarkerKey(c.CommitID)}
		args := []interface{}{int(r.markerTTL.Seconds())}
		if _, err := r.client.Eval(ctx, redisLuaScript, keys, args...); err != nil {
			return fmt.Errorf("redis eval run=%s commit=%s: %w", c.RunID, c.CommitID, err)
		}
	}
	return nil
}
