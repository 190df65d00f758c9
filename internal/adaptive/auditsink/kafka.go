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
)

// Producer abstracts the minimal surface needed from a Kafka client.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// LoggingProducer is a demo producer that logs instead of talking to a
// real broker, mirroring the teacher's LoggingKafkaProducer stance: no
// broker dependency is pulled in for the demo build.
type LoggingProducer struct{}

func (LoggingProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if headers == nil {
		headers = map[string]string{}
	}
	fmt.Printf("[auditsink-kafka-demo] TOPIC=%s KEY=%s VALUE=%s HEADERS=%v\n", topic, string(key), truncate(string(value), 256), headers)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// KafkaSink publishes each commit's event as a keyed Kafka message. Since
// the broker never rejects a duplicate key on its own, idempotency here is
// advisory: consumers are expected to dedupe on CommitID, carried as a
// header.
type KafkaSink struct {
	producer Producer
	topic    string
}

// NewKafkaSink returns a sink publishing to topic via producer.
func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (k *KafkaSink) CommitBatch(ctx context.Context, commits []AuditCommit) error {
	for _, c := range commits {
		headers := map[string]string{"commit_id": c.CommitID, "run_id": c.RunID}
		value := fmt.Sprintf("type=%s generation=%d payload=%s", c.Event.EventType, c.Event.ConfigVersion, c.Event.Payload)
		if err := k.producer.Produce(ctx, k.topic, []byte(c.RunID), []byte(value), headers); err != nil {
			return fmt.Errorf("kafka produce run=%s commit=%s: %w", c.RunID, c.CommitID, err)
		}
	}
	return nil
}
