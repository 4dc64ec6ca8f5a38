package publisher

import (
	"math/rand/v2"
	"sync"
)

// Sampler thins high-volume operations events. Compliance and security
// events are never passed to it.
type Sampler struct {
	mu           sync.RWMutex
	defaultRate  float64
	rateByAction map[string]float64
	roll         func() float64
}

// NewSampler keeps each event with probability rate, clamped to [0, 1].
func NewSampler(rate float64) *Sampler {
	return &Sampler{
		defaultRate:  clampRate(rate),
		rateByAction: make(map[string]float64),
		roll:         rand.Float64,
	}
}

// SetRate overrides the rate for one action.
func (s *Sampler) SetRate(action string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByAction[action] = clampRate(rate)
}

// Keep reports whether an event with this action should be persisted.
func (s *Sampler) Keep(action string) bool {
	s.mu.RLock()
	rate, ok := s.rateByAction[action]
	if !ok {
		rate = s.defaultRate
	}
	s.mu.RUnlock()
	switch rate {
	case 0:
		return false
	case 1:
		return true
	}
	return s.roll() < rate //nolint:gosec // sampling doesn't need crypto rand
}

func clampRate(rate float64) float64 {
	return max(0, min(1, rate))
}
