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

// Package guardconf loads Guardrails from a YAML file and, if asked, watches
// it for changes with fsnotify so an operator can retune thresholds without
// restarting the control loop.
package guardconf

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/novelbytelabs/adaptive-engine/pkg/adaptiveengine"
)

// Document is the on-disk YAML shape for a Guardrails configuration.
type Document struct {
	MaxDeltaPerStep             float64 `yaml:"max_delta_per_step"`
	MaxUpdatesPerSecond         float64 `yaml:"max_updates_per_second"`
	MinIntervalUS               uint64  `yaml:"min_interval_us"`
	DirectionFlipLimit          uint32  `yaml:"direction_flip_limit"`
	CooldownAfterFlipUS         uint64  `yaml:"cooldown_after_flip_us"`
	MaxCumulativeDeltaPerMinute float64 `yaml:"max_cumulative_delta_per_minute"`
	RegressionCountLimit        uint32  `yaml:"regression_count_limit"`
}

// ToGuardrails converts the document to the engine's runtime type.
func (d Document) ToGuardrails() adaptiveengine.Guardrails {
	return adaptiveengine.Guardrails{
		MaxDeltaPerStep:             d.MaxDeltaPerStep,
		MaxUpdatesPerSecond:         d.MaxUpdatesPerSecond,
		MinIntervalUS:               d.MinIntervalUS,
		DirectionFlipLimit:          d.DirectionFlipLimit,
		CooldownAfterFlipUS:         d.CooldownAfterFlipUS,
		MaxCumulativeDeltaPerMinute: d.MaxCumulativeDeltaPerMinute,
		RegressionCountLimit:        d.RegressionCountLimit,
	}
}

// FromGuardrails builds the YAML-serializable document from runtime values.
func FromGuardrails(g adaptiveengine.Guardrails) Document {
	return Document{
		MaxDeltaPerStep:             g.MaxDeltaPerStep,
		MaxUpdatesPerSecond:         g.MaxUpdatesPerSecond,
		MinIntervalUS:               g.MinIntervalUS,
		DirectionFlipLimit:          g.DirectionFlipLimit,
		CooldownAfterFlipUS:         g.CooldownAfterFlipUS,
		MaxCumulativeDeltaPerMinute: g.MaxCumulativeDeltaPerMinute,
		RegressionCountLimit:        g.RegressionCountLimit,
	}
}

// Template returns the starter YAML document seeded from
// adaptiveengine.DefaultGuardrails, for the CLI's guardrails-template
// subcommand.
func Template() ([]byte, error) {
	return yaml.Marshal(FromGuardrails(adaptiveengine.DefaultGuardrails()))
}

// Manager loads a Guardrails document from disk and hands out the current
// value under a read lock, the way RuntimeConfigManager guards
// currentConfig, narrowed to the single Guardrails document this repository
// needs (no version history, no A/B testing).
type Manager struct {
	path     string
	mu       sync.RWMutex
	current  adaptiveengine.Guardrails
	checksum string
}

// NewManager constructs a manager over path, loading the initial value if
// the file exists or falling back to defaults otherwise.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path, current: adaptiveengine.DefaultGuardrails()}
	if err := m.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return m, nil
}

// Current returns the most recently loaded Guardrails.
func (m *Manager) Current() adaptiveengine.Guardrails {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) reload() error {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return err
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read guardrails file: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse guardrails file: %w", err)
	}
	sum := checksum(doc)
	m.mu.Lock()
	changed := sum != m.checksum
	m.current = doc.ToGuardrails()
	m.checksum = sum
	m.mu.Unlock()
	if !changed {
		return nil
	}
	return nil
}

func checksum(doc Document) string {
	data, _ := json.Marshal(doc)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// Watch starts an fsnotify watch on the manager's file and reloads Current
// on every write, emitting the newly loaded value on the returned channel
// only when its checksum differs from the previously loaded one.
// The watch stops when ctx is cancelled.
func (m *Manager) Watch(ctx context.Context) (<-chan adaptiveengine.Guardrails, <-chan error) {
	changes := make(chan adaptiveengine.Guardrails, 4)
	errs := make(chan error, 4)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errs <- fmt.Errorf("create file watcher: %w", err)
		close(changes)
		close(errs)
		return changes, errs
	}
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		errs <- fmt.Errorf("watch dir %s: %w", dir, err)
		watcher.Close()
		close(changes)
		close(errs)
		return changes, errs
	}

	go func() {
		defer watcher.Close()
		defer close(changes)
		defer close(errs)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != m.path || ev.Op&fsnotify.Write == 0 {
					continue
				}
				before := m.checksumSnapshot()
				if err := m.reload(); err != nil {
					errs <- err
					continue
				}
				if m.checksumSnapshot() != before {
					changes <- m.Current()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()
	return changes, errs
}

func (m *Manager) checksumSnapshot() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checksum
}

// debounce guards against fsnotify's occasional duplicate write events on
// some filesystems; callers that need it can sleep this long after Watch
// reports a change before reading Current again.
const debounce = 20 * time.Millisecond
