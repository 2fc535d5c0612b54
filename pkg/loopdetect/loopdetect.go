// Package loopdetect fingerprints per-iteration repair state to detect
// oscillating fixes, and tracks hallucinated file-path references to
// trigger a strategy shift (spec.md §4.3).
package loopdetect

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

// DetectResult is the outcome of checking a snapshot against history.
type DetectResult struct {
	Detected            bool
	DuplicateOfIteration int
	Message              string
}

// Detector is per-session: it owns the iteration history, the
// fingerprint index, and hallucination counters for one AgentRun. It is
// not safe for concurrent use across sessions by design — callers hold
// one Detector per running graph.
type Detector struct {
	mu       sync.Mutex
	history  []models.LoopStateSnapshot
	stateMap map[string]int // fingerprint -> first iteration

	hallucinationCounts map[string]int
	lastPath            string
	consecutive         int

	strategyShiftConsecutive int
}

// New constructs a Detector. strategyShiftConsecutive is the number of
// consecutive hallucinations on the same path required to trigger a
// strategy shift (config default 2).
func New(strategyShiftConsecutive int) *Detector {
	return &Detector{
		stateMap:                 make(map[string]int),
		hallucinationCounts:      make(map[string]int),
		strategyShiftConsecutive: strategyShiftConsecutive,
	}
}

// Fingerprint computes the deterministic identity string for an
// iteration's externally observable state: sorted changed files, a
// content checksum, and the error fingerprint, pipe-joined.
func Fingerprint(filesChanged []string, contentChecksum, errorFingerprint string) string {
	sorted := append([]string(nil), filesChanged...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s|%s|%s", strings.Join(sorted, ","), contentChecksum, errorFingerprint)
}

// Checksum hashes file contents into the ContentChecksum used by
// Fingerprint, in a stable order independent of map iteration order.
func Checksum(contents map[string]string) string {
	keys := make([]string, 0, len(contents))
	for k := range contents {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		h.WriteString(k)
		h.WriteString("\x00")
		h.WriteString(contents[k])
		h.WriteString("\x00")
	}
	return fmt.Sprintf("%x", h.Sum64())
}

// DetectLoop records snapshot in history and reports whether its
// fingerprint duplicates an earlier iteration's.
func (d *Detector) DetectLoop(snapshot models.LoopStateSnapshot) DetectResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	fp := Fingerprint(snapshot.FilesChanged, snapshot.ContentChecksum, snapshot.ErrorFingerprint)

	d.history = append(d.history, snapshot)

	if firstIteration, ok := d.stateMap[fp]; ok {
		return DetectResult{
			Detected:             true,
			DuplicateOfIteration: firstIteration,
			Message:              fmt.Sprintf("iteration %d repeats the state first seen at iteration %d", snapshot.Iteration, firstIteration),
		}
	}

	d.stateMap[fp] = snapshot.Iteration
	return DetectResult{}
}

// RecordHallucination notes that path was referenced but does not exist,
// tracking consecutive repeats of the same path.
func (d *Detector) RecordHallucination(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hallucinationCounts[path]++
	if d.lastPath == path {
		d.consecutive++
	} else {
		d.lastPath = path
		d.consecutive = 1
	}
}

// ShouldTriggerStrategyShift reports whether path has been hallucinated
// consecutively enough times to warrant steering the next LLM turn.
func (d *Detector) ShouldTriggerStrategyShift(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.lastPath == path && d.consecutive >= d.strategyShiftConsecutive
}

// TriggerAutomatedRecovery emits a canned advisory appended to sandbox
// tool output to steer the model toward a different tactic (e.g. glob
// search instead of a direct path read).
func (d *Detector) TriggerAutomatedRecovery(path string) string {
	return fmt.Sprintf("[SYSTEM ADVICE] %q could not be resolved after repeated attempts; use glob(...) to locate the intended file instead of guessing exact paths.", path)
}

// HallucinationCount returns how many times path has been recorded as a
// hallucinated reference, for telemetry/testing.
func (d *Detector) HallucinationCount(path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hallucinationCounts[path]
}
