// Package reflection implements the in-process failure/success pattern
// tables and async persistence queue of spec.md §4.6: a lightweight
// learning loop that surfaces recurring failures without itself
// attempting to learn new repair strategies.
package reflection

import (
	"sync"
	"time"
)

// FailurePatternKey identifies a recurring failure shape.
type FailurePatternKey struct {
	ErrorType     string
	FailureReason string
}

// FailurePattern is one row of the FailurePattern table.
type FailurePattern struct {
	ErrorType     string         `json:"errorType"`
	FailureReason string         `json:"failureReason"`
	Frequency     int            `json:"frequency"`
	FirstSeen     time.Time      `json:"firstSeen"`
	LastSeen      time.Time      `json:"lastSeen"`
	AttemptedFix  string         `json:"attemptedFix,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

// SuccessPattern is one row of the SuccessPattern table, keyed by
// errorType with the implicit outcome "success".
type SuccessPattern struct {
	ErrorType string         `json:"errorType"`
	LastSeen  time.Time      `json:"lastSeen"`
	Context   map[string]any `json:"context,omitempty"`
}

// Insight is one ranked finding from Reflect().
type Insight struct {
	ErrorType      string  `json:"errorType"`
	FailureReason  string  `json:"failureReason"`
	Frequency      int     `json:"frequency"`
	FailureRate    float64 `json:"failureRate"`
	Suggestion     string  `json:"suggestion,omitempty"`
}

// minFrequencyForInsight is the frequency floor below which a pattern
// is too sparse to rank (spec.md §4.6: "frequency ≥ 3").
const minFrequencyForInsight = 3

// failureRateSuggestionThreshold is the failure-rate floor above which
// Reflect emits an improvement suggestion for that error type.
const failureRateSuggestionThreshold = 0.5

// PatternStore holds the FailurePattern and SuccessPattern tables for
// one process, guarded by a single RWMutex (teacher's pattern for
// small shared in-memory state — compare pkg/queue's WorkerPool health
// map).
type PatternStore struct {
	mu         sync.RWMutex
	failures   map[FailurePatternKey]*FailurePattern
	successes  map[string]*SuccessPattern
	successCnt map[string]int
}

// NewPatternStore constructs an empty PatternStore.
func NewPatternStore() *PatternStore {
	return &PatternStore{
		failures:   make(map[FailurePatternKey]*FailurePattern),
		successes:  make(map[string]*SuccessPattern),
		successCnt: make(map[string]int),
	}
}

// RecordFailure increments the matching FailurePattern's frequency (or
// creates it), and returns the updated pattern so callers may enqueue
// it for async persistence.
func (s *PatternStore) RecordFailure(errorType, failureReason, attemptedFix string, context map[string]any) FailurePattern {
	key := FailurePatternKey{ErrorType: errorType, FailureReason: failureReason}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.failures[key]
	if !ok {
		p = &FailurePattern{ErrorType: errorType, FailureReason: failureReason, FirstSeen: now}
		s.failures[key] = p
	}
	p.Frequency++
	p.LastSeen = now
	if attemptedFix != "" {
		p.AttemptedFix = attemptedFix
	}
	if context != nil {
		p.Context = context
	}
	return *p
}

// RecordSuccess overwrites the SuccessPattern for errorType.
func (s *PatternStore) RecordSuccess(errorType string, context map[string]any) SuccessPattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := SuccessPattern{ErrorType: errorType, LastSeen: time.Now(), Context: context}
	s.successes[errorType] = &p
	s.successCnt[errorType]++
	return p
}

// Reflect ranks failure patterns with frequency ≥ 3 by frequency
// descending, computing a per-error-type failure rate against that
// type's recorded successes, and attaching a suggestion whenever the
// rate exceeds 50%.
func (s *PatternStore) Reflect() []Insight {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failureCountByType := make(map[string]int)
	for _, p := range s.failures {
		failureCountByType[p.ErrorType] += p.Frequency
	}

	var insights []Insight
	for _, p := range s.failures {
		if p.Frequency < minFrequencyForInsight {
			continue
		}

		successes := s.successCnt[p.ErrorType]
		total := failureCountByType[p.ErrorType] + successes
		rate := 0.0
		if total > 0 {
			rate = float64(failureCountByType[p.ErrorType]) / float64(total)
		}

		insight := Insight{
			ErrorType:     p.ErrorType,
			FailureReason: p.FailureReason,
			Frequency:     p.Frequency,
			FailureRate:   rate,
		}
		if rate > failureRateSuggestionThreshold {
			insight.Suggestion = suggestionFor(p)
		}
		insights = append(insights, insight)
	}

	sortInsightsByFrequencyDesc(insights)
	return insights
}

func suggestionFor(p *FailurePattern) string {
	if p.AttemptedFix != "" {
		return "Reconsider the repeated fix attempt (" + p.AttemptedFix + ") for " + p.ErrorType + " — it has not reduced the failure rate"
	}
	return "Failure rate for " + p.ErrorType + " exceeds 50%; consider an alternative repair strategy"
}

func sortInsightsByFrequencyDesc(insights []Insight) {
	for i := 1; i < len(insights); i++ {
		for j := i; j > 0 && insights[j].Frequency > insights[j-1].Frequency; j-- {
			insights[j], insights[j-1] = insights[j-1], insights[j]
		}
	}
}
