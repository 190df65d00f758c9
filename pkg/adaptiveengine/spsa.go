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

package adaptiveengine

import (
	"math"
	"math/rand"
)

// splitmix64Source is a small, self-contained rand.Source64 so that
// Observe's perturbation sequence is bit-for-bit reproducible for a given
// seed regardless of the Go toolchain's own default generator, which the
// standard library explicitly does not promise to keep stable release to
// release.
type splitmix64Source struct {
	state uint64
}

func newSplitmix64Source(seed uint64) *splitmix64Source {
	return &splitmix64Source{state: seed}
}

func (s *splitmix64Source) Uint64() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func (s *splitmix64Source) Int63() int64 {
	return int64(s.Uint64() >> 1)
}

func (s *splitmix64Source) Seed(seed int64) {
	s.state = uint64(seed)
}

// SPSAConfig parameterizes the learning-rate and perturbation-size
// schedules, plus the windowed multi-sample evaluation this implementation
// adds on top of the original single-sample-per-state design.
type SPSAConfig struct {
	Seed                uint64
	LearningRate        float64 // a
	PerturbationScale   float64 // c
	BigA                float64
	Alpha               float64
	Gamma               float64
	MinSamplesPerWindow int
	MaxWindowDurationUS uint64
}

// DefaultSPSAConfig mirrors the original implementation's schedule
// constants (big_a=100, alpha=0.602, gamma=0.101).
func DefaultSPSAConfig(seed uint64, learningRate, perturbationScale float64) SPSAConfig {
	return SPSAConfig{
		Seed:                seed,
		LearningRate:        learningRate,
		PerturbationScale:   perturbationScale,
		BigA:                100.0,
		Alpha:               0.602,
		Gamma:               0.101,
		MinSamplesPerWindow: 1,
		MaxWindowDurationUS: 5_000_000,
	}
}

type spsaPhase int

const (
	spsaReady spsaPhase = iota
	spsaWaitingPlus
	spsaWaitingMinus
)

// SPSAProposer implements the simultaneous perturbation stochastic
// approximation state machine: two objective evaluations regardless of
// dimensionality, windowed to average out measurement noise.
type SPSAProposer struct {
	cfg   SPSAConfig
	dim   int
	rng   *rand.Rand
	k     uint64
	perturbCounter uint64

	phase      spsaPhase
	perturbID  uint64
	delta      ParamVec // current perturbation vector (c_k * sign)
	startedUS  uint64
	samples    int
	sumPlus    float64
	sumMinus   float64
	yPlusCache float64
}

// NewSPSAProposer constructs a proposer over a dim-dimensional parameter
// space.
func NewSPSAProposer(cfg SPSAConfig, dim int) *SPSAProposer {
	return &SPSAProposer{
		cfg: cfg,
		dim: dim,
		rng: rand.New(newSplitmix64Source(cfg.Seed)),
	}
}

// Iteration returns the number of completed gradient updates.
func (p *SPSAProposer) Iteration() uint64 {
	return p.k
}

// CurrentPerturbation returns the in-flight perturbation vector, if any.
func (p *SPSAProposer) CurrentPerturbation() (ParamVec, bool) {
	if p.phase == spsaReady {
		return nil, false
	}
	return p.delta, true
}

func (p *SPSAProposer) ak() float64 {
	return p.cfg.LearningRate / math.Pow(float64(p.k+1)+p.cfg.BigA, p.cfg.Alpha)
}

func (p *SPSAProposer) ck() float64 {
	return p.cfg.PerturbationScale / math.Pow(float64(p.k+1), p.cfg.Gamma)
}

func (p *SPSAProposer) generatePerturbation() ParamVec {
	ck := p.ck()
	delta := make(ParamVec, p.dim)
	for i := range delta {
		if p.rng.Float64() < 0.5 {
			delta[i] = ck
		} else {
			delta[i] = -ck
		}
	}
	return delta
}

// Observe advances the state machine with one telemetry digest and returns
// the resulting proposal. The digest's TimestampUS gates the
// evaluation-window timeout.
func (p *SPSAProposer) Observe(digest TelemetryDigest) Proposal {
	nowUS := digest.TimestampUS

	if p.phase != spsaReady && p.cfg.MaxWindowDurationUS > 0 &&
		nowUS > p.startedUS && nowUS-p.startedUS > p.cfg.MaxWindowDurationUS {
		p.phase = spsaReady
		p.samples = 0
		p.sumPlus = 0
		p.sumMinus = 0
		return Proposal{Kind: ProposalNoChange, NoChangeReason: ReasonEvalTimeout}
	}

	switch p.phase {
	case spsaReady:
		p.perturbCounter++
		p.delta = p.generatePerturbation()
		p.perturbID = p.perturbCounter
		p.startedUS = nowUS
		p.samples = 0
		p.sumPlus = 0
		p.phase = spsaWaitingPlus
		return Proposal{Kind: ProposalApplyPlus, PerturbationID: p.perturbID, Delta: p.delta}

	case spsaWaitingPlus:
		p.sumPlus += digest.ObjectiveValue
		p.samples++
		if p.samples < minSamples(p.cfg.MinSamplesPerWindow) {
			return Proposal{Kind: ProposalNoChange, NoChangeReason: ReasonEvalTimeout}
		}
		yPlus := p.sumPlus / float64(p.samples)
		p.sumMinus = 0
		p.samples = 0
		p.phase = spsaWaitingMinus
		negDelta := make(ParamVec, len(p.delta))
		for i, d := range p.delta {
			negDelta[i] = -d
		}
		p.yPlusCache = yPlus
		return Proposal{Kind: ProposalApplyMinus, PerturbationID: p.perturbID, Delta: negDelta}

	case spsaWaitingMinus:
		p.sumMinus += digest.ObjectiveValue
		p.samples++
		if p.samples < minSamples(p.cfg.MinSamplesPerWindow) {
			return Proposal{Kind: ProposalNoChange, NoChangeReason: ReasonEvalTimeout}
		}
		yMinus := p.sumMinus / float64(p.samples)
		yPlus := p.yPlusCache

		gradient := make(ParamVec, p.dim)
		update := make(ParamVec, p.dim)
		ak := p.ak()
		for i, d := range p.delta {
			if math.Abs(d) < 1e-10 {
				gradient[i] = 0
				update[i] = 0
				continue
			}
			g := (yPlus - yMinus) / (2 * d)
			gradient[i] = g
			update[i] = -ak * g
		}

		p.k++
		p.phase = spsaReady
		p.samples = 0
		return Proposal{Kind: ProposalUpdate, Iteration: p.k - 1, Delta: update, Gradient: gradient}

	default:
		return Proposal{Kind: ProposalNoChange, NoChangeReason: ReasonEvalTimeout}
	}
}

func minSamples(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
