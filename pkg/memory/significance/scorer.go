// Package significance computes the composite importance score that drives
// tier demotion, pruning protection and permanent locking.
package significance

import (
	"math"
	"time"
)

// Params are the scoring weights and thresholds. Weights should sum to 1;
// NewScorer normalizes them if they do not.
type Params struct {
	RecencyWeight   float64 `json:"recency_weight" mapstructure:"recency_weight"`
	FrequencyWeight float64 `json:"frequency_weight" mapstructure:"frequency_weight"`
	TrustWeight     float64 `json:"trust_weight" mapstructure:"trust_weight"`
	EmotionWeight   float64 `json:"emotion_weight" mapstructure:"emotion_weight"`

	// RecencyHalfLife is how long it takes the recency component to fall to
	// one half.
	RecencyHalfLife time.Duration `json:"recency_half_life" mapstructure:"recency_half_life"`

	// FrequencySaturation is the access count at which the frequency
	// component reaches ~1. Growth is logarithmic below it.
	FrequencySaturation int64 `json:"frequency_saturation" mapstructure:"frequency_saturation"`

	// LockThreshold is the score at or above which a record locks
	// permanently. Locking is one-way.
	LockThreshold float64 `json:"lock_threshold" mapstructure:"lock_threshold"`
}

// DefaultParams returns the default scoring parameters.
func DefaultParams() Params {
	return Params{
		RecencyWeight:       0.30,
		FrequencyWeight:     0.25,
		TrustWeight:         0.25,
		EmotionWeight:       0.20,
		RecencyHalfLife:     7 * 24 * time.Hour,
		FrequencySaturation: 50,
		LockThreshold:       0.85,
	}
}

// Input is the per-record signal set the scorer consumes.
type Input struct {
	CreatedAt          time.Time
	LastAccessedAt     time.Time
	AccessCount        int64
	SourceTrust        float64
	EmotionalIntensity float64
}

// Scorer computes significance scores. It is safe for concurrent use.
type Scorer struct {
	params Params
	now    func() time.Time
}

// NewScorer builds a scorer, normalizing the weights so components cannot
// push the score outside [0,1].
func NewScorer(p Params) *Scorer {
	total := p.RecencyWeight + p.FrequencyWeight + p.TrustWeight + p.EmotionWeight
	if total <= 0 {
		p = DefaultParams()
		total = p.RecencyWeight + p.FrequencyWeight + p.TrustWeight + p.EmotionWeight
	}
	p.RecencyWeight /= total
	p.FrequencyWeight /= total
	p.TrustWeight /= total
	p.EmotionWeight /= total

	if p.RecencyHalfLife <= 0 {
		p.RecencyHalfLife = DefaultParams().RecencyHalfLife
	}
	if p.FrequencySaturation <= 0 {
		p.FrequencySaturation = DefaultParams().FrequencySaturation
	}
	if p.LockThreshold <= 0 || p.LockThreshold > 1 {
		p.LockThreshold = DefaultParams().LockThreshold
	}

	return &Scorer{params: p, now: time.Now}
}

// Params returns the normalized parameters in effect.
func (s *Scorer) Params() Params {
	return s.params
}

// Score computes the composite significance in [0,1].
func (s *Scorer) Score(in Input) float64 {
	score := s.params.RecencyWeight*s.recency(in) +
		s.params.FrequencyWeight*s.frequency(in.AccessCount) +
		s.params.TrustWeight*clamp01(in.SourceTrust) +
		s.params.EmotionWeight*clamp01(in.EmotionalIntensity)
	return clamp01(score)
}

// ShouldLock reports whether a score crosses the permanent lock threshold.
func (s *Scorer) ShouldLock(score float64) bool {
	return score >= s.params.LockThreshold
}

// recency decays exponentially with time since the record was last touched
// (access or creation, whichever is later).
func (s *Scorer) recency(in Input) float64 {
	ref := in.CreatedAt
	if in.LastAccessedAt.After(ref) {
		ref = in.LastAccessedAt
	}
	if ref.IsZero() {
		return 0
	}
	age := s.now().Sub(ref)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-age.Hours() / s.params.RecencyHalfLife.Hours())
}

// frequency grows logarithmically and saturates at FrequencySaturation, so a
// handful of repeat accesses matters more than the hundredth.
func (s *Scorer) frequency(count int64) float64 {
	if count <= 0 {
		return 0
	}
	return clamp01(math.Log1p(float64(count)) / math.Log1p(float64(s.params.FrequencySaturation)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
