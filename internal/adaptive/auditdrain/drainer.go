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

// Package auditdrain runs a background goroutine draining an engine's audit
// queue on an interval and routing each batch to one of several sinks by
// rendezvous hashing on run id, so sink load spreads across shards without
// any coordination between drainers.
package auditdrain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgryski/go-farm"
	"github.com/dgryski/go-rendezvous"

	"github.com/novelbytelabs/adaptive-engine/internal/adaptive/auditsink"
	"github.com/novelbytelabs/adaptive-engine/pkg/adaptiveengine"
)

func farmHash(s string, seed uint64) uint64 {
	return farm.Hash64WithSeed([]byte(s), seed)
}

// ShardedSink routes commits to one of several named sinks by rendezvous
// hashing on RunID, so the same run consistently lands on the same shard
// while load still spreads across all configured sinks.
type ShardedSink struct {
	names []string
	sinks map[string]auditsink.Sink
	rv    *rendezvous.Rendezvous
}

// NewShardedSink builds a router over the given name->sink map.
func NewShardedSink(sinks map[string]auditsink.Sink) *ShardedSink {
	names := make([]string, 0, len(sinks))
	for name := range sinks {
		names = append(names, name)
	}
	return &ShardedSink{
		names: names,
		sinks: sinks,
		rv:    rendezvous.New(names, farmHash),
	}
}

// CommitBatch groups commits by their rendezvous-selected shard and commits
// each group to its sink.
func (s *ShardedSink) CommitBatch(ctx context.Context, commits []auditsink.AuditCommit) error {
	if len(s.names) == 0 {
		return nil
	}
	grouped := make(map[string][]auditsink.AuditCommit)
	for _, c := range commits {
		shard := s.rv.Lookup(c.RunID)
		grouped[shard] = append(grouped[shard], c)
	}
	for shard, batch := range grouped {
		if err := s.sinks[shard].CommitBatch(ctx, batch); err != nil {
			return fmt.Errorf("shard %s: %w", shard, err)
		}
	}
	return nil
}

// Drainer periodically drains an engine's audit queue and forwards the
// batch to a sink, following the teacher's worker.go shape: a ticker loop
// gated by a stop channel, a WaitGroup for graceful shutdown, and a final
// flush on stop.
type Drainer struct {
	queue         *adaptiveengine.AuditQueue
	sink          auditsink.Sink
	drainInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
	stopped       atomic.Bool
}

// NewDrainer constructs a drainer over queue, forwarding batches to sink
// every drainInterval.
func NewDrainer(queue *adaptiveengine.AuditQueue, sink auditsink.Sink, drainInterval time.Duration) *Drainer {
	return &Drainer{
		queue:         queue,
		sink:          sink,
		drainInterval: drainInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start launches the drain loop on a background goroutine.
func (d *Drainer) Start() {
	fmt.Println("Starting audit drainer...")
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.drainLoop()
	}()
}

// Stop gracefully stops the drainer, performing a final drain first.
func (d *Drainer) Stop() {
	if !d.stopped.CompareAndSwap(false, true) {
		return
	}
	fmt.Println("Stopping audit drainer...")
	close(d.stopChan)
	d.wg.Wait()
}

func (d *Drainer) drainLoop() {
	ticker := time.NewTicker(d.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.runDrainCycle()
		case <-d.stopChan:
			d.runDrainCycle()
			return
		}
	}
}

func (d *Drainer) runDrainCycle() {
	events := d.queue.Drain()
	if len(events) == 0 {
		return
	}
	commits := auditsink.ToCommits(events)
	if err := d.sink.CommitBatch(context.Background(), commits); err != nil {
		fmt.Printf("ERROR: audit drain commit failed: %v\n", err)
	}
}
