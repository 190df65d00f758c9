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
	"errors"
	"fmt"
	"time"
)

// Options carries the minimal knobs needed to build demo sinks without
// requiring real infrastructure.
type Options struct {
	RedisMarkerTTL time.Duration
	RedisAddr      string
	KafkaTopic     string
}

// Build constructs a Sink for the given adapter selector:
//   - "mock" (default): in-process idempotent logger
//   - "redis": idempotent Redis adapter, using a real client if RedisAddr is
//     set or a logging client otherwise
//   - "kafka": publishes to a topic via a logging producer (no broker)
//   - "postgres": intentionally unwired, same stance as the teacher's demo
//     factory — no SPEC_FULL.md component needs durable relational storage
func Build(adapter string, opts Options) (Sink, error) {
	switch adapter {
	case "", "mock":
		return NewMockSink(), nil
	case "redis":
		ttl := opts.RedisMarkerTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		var evaler RedisEvaler
		if opts.RedisAddr != "" {
			evaler = NewGoRedisEvaler(opts.RedisAddr)
		} else {
			evaler = LoggingRedisEvaler{}
		}
		return NewRedisSink(evaler, ttl), nil
	case "kafka":
		topic := opts.KafkaTopic
		if topic == "" {
			topic = "adaptive-engine-audit"
		}
		return NewKafkaSink(LoggingProducer{}, topic), nil
	case "postgres":
		return nil, errors.New("postgres adapter is not enabled in the demo build; please wire a real *sql.DB")
	default:
		return nil, fmt.Errorf("unknown audit sink adapter: %s", adapter)
	}
}
