package loopdetect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/repairagent/pkg/models"
)

func TestFingerprintSortsFilesChanged(t *testing.T) {
	a := Fingerprint([]string{"b.go", "a.go"}, "h1", "e1")
	b := Fingerprint([]string{"a.go", "b.go"}, "h1", "e1")
	assert.Equal(t, a, b)
}

func TestChecksumStableAcrossMapOrder(t *testing.T) {
	a := Checksum(map[string]string{"x": "1", "y": "2"})
	b := Checksum(map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)
}

func TestDetectLoopFirstOccurrenceNotDetected(t *testing.T) {
	d := New(2)
	result := d.DetectLoop(models.LoopStateSnapshot{
		Iteration: 0, FilesChanged: []string{"src/app.ts"},
		ContentChecksum: "h1", ErrorFingerprint: "e1", Timestamp: time.Now(),
	})
	assert.False(t, result.Detected)
}

func TestDetectLoopDuplicateFingerprintReportsEarlierIteration(t *testing.T) {
	d := New(2)
	snap := func(iter int) models.LoopStateSnapshot {
		return models.LoopStateSnapshot{
			Iteration: iter, FilesChanged: []string{"src/app.ts"},
			ContentChecksum: "h1", ErrorFingerprint: "e1",
		}
	}

	first := d.DetectLoop(snap(1))
	require.False(t, first.Detected)

	second := d.DetectLoop(snap(2))
	require.True(t, second.Detected)
	assert.Equal(t, 1, second.DuplicateOfIteration)
}

func TestShouldTriggerStrategyShiftAfterConsecutiveHallucinations(t *testing.T) {
	d := New(2)
	d.RecordHallucination("pkg/missing.go")
	assert.False(t, d.ShouldTriggerStrategyShift("pkg/missing.go"))

	d.RecordHallucination("pkg/missing.go")
	assert.True(t, d.ShouldTriggerStrategyShift("pkg/missing.go"))
}

func TestHallucinationCounterResetsOnDifferentPath(t *testing.T) {
	d := New(2)
	d.RecordHallucination("a.go")
	d.RecordHallucination("b.go")
	assert.False(t, d.ShouldTriggerStrategyShift("b.go"))
	assert.Equal(t, 1, d.HallucinationCount("a.go"))
	assert.Equal(t, 1, d.HallucinationCount("b.go"))
}

func TestTriggerAutomatedRecoveryMentionsPath(t *testing.T) {
	d := New(2)
	advice := d.TriggerAutomatedRecovery("pkg/ghost.go")
	assert.Contains(t, advice, "pkg/ghost.go")
	assert.Contains(t, advice, "glob")
}
