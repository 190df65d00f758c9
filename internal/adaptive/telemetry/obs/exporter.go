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

package obs

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type point struct {
	ts        time.Time
	applies   int64
	queueFill float64
}

var (
	applyCountInternal atomic.Int64
	lastQueueFill      atomic.Value // float64

	exporterMu   sync.Mutex
	exporterStop chan struct{}
	exporterDone chan struct{}
	currCfg      atomic.Value // Config

	windowPoints []point
	windowMu     sync.Mutex

	livePrinted   atomic.Bool
	ansiSupported atomic.Bool
	colorOn       atomic.Bool
)

func recordApplyPoint() {
	applyCountInternal.Add(1)
}

func recordQueuePoint(ratio float64) {
	lastQueueFill.Store(ratio)
}

func startOrUpdateExporter(cfg Config) {
	exporterMu.Lock()
	defer exporterMu.Unlock()

	currCfg.Store(cfg)

	if os.Getenv("NO_COLOR") != "" {
		colorOn.Store(false)
	} else {
		colorOn.Store(true)
	}
	ansiSupported.Store(detectANSISupport())

	if exporterStop != nil {
		close(exporterStop)
		<-exporterDone
		exporterStop, exporterDone = nil, nil
	}
	if !cfg.Enabled || cfg.LogInterval <= 0 {
		return
	}
	exporterStop = make(chan struct{})
	exporterDone = make(chan struct{})
	go exporterLoop(exporterStop, exporterDone)
}

func exporterLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	cfgAny := currCfg.Load()
	cfg, _ := cfgAny.(Config)
	ticker := time.NewTicker(cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			publishSnapshot()
		case <-stop:
			return
		}
	}
}

func publishSnapshot() {
	cfgAny := currCfg.Load()
	cfg, _ := cfgAny.(Config)

	fillAny := lastQueueFill.Load()
	fill, _ := fillAny.(float64)

	now := time.Now()
	pt := point{ts: now, applies: applyCountInternal.Load(), queueFill: fill}

	windowMu.Lock()
	windowPoints = append(windowPoints, pt)
	winStart := now.Add(-cfg.Window)
	idx := 0
	for idx < len(windowPoints) && windowPoints[idx].ts.Before(winStart) {
		idx++
	}
	if idx > 0 {
		windowPoints = windowPoints[idx:]
	}
	old := windowPoints[0]
	windowMu.Unlock()

	dApplies := pt.applies - old.applies
	rate := float64(dApplies) / cfg.Window.Seconds()

	fillTxt := fmt.Sprintf("%.2f", fill)
	if colorOn.Load() {
		fillTxt = colorFill(fill, fillTxt)
	}
	summary := fmt.Sprintf("adaptive-engine: applies_in_window=%d apply_rate=%.2f/s audit_fill=%s",
		dApplies, rate, fillTxt)

	if ansiSupported.Load() {
		renderLive(summary)
	} else {
		fmt.Printf("[%s] %s\n", now.Format(time.RFC3339), summary)
	}
}

const (
	ansiClearLine  = "\x1b[2K"
	ansiPrevLine1  = "\x1b[1F"
	ansiReset      = "\x1b[0m"
	ansiBold       = "\x1b[1m"
	ansiRed        = "\x1b[31m"
	ansiGreen      = "\x1b[32m"
	ansiYellow     = "\x1b[33m"
)

func renderLive(summary string) {
	if !livePrinted.Load() {
		fmt.Println(summary)
		livePrinted.Store(true)
		return
	}
	fmt.Print(ansiPrevLine1)
	fmt.Printf("%s%s\n", ansiClearLine, summary)
}

func colorFill(val float64, txt string) string {
	if !colorOn.Load() {
		return txt
	}
	switch {
	case val >= 0.8:
		return ansiBold + ansiRed + txt + ansiReset
	case val >= 0.5:
		return ansiYellow + txt + ansiReset
	default:
		return ansiGreen + txt + ansiReset
	}
}

func detectANSISupport() bool {
	term := strings.ToLower(os.Getenv("TERM"))
	if term == "" {
		return false
	}
	return strings.Contains(term, "xterm") || strings.Contains(term, "screen") || strings.Contains(term, "tmux") || strings.Contains(term, "ansi")
}
