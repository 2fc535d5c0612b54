package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTimeoutRetriesWithBackoff(t *testing.T) {
	err := &TimeoutError{Operation: "llm.generate", Err: fmt.Errorf("deadline exceeded")}
	assert.Equal(t, RecoveryRetryWithBackoff, Classify(err))
}

func TestClassifyResourceExhaustedIsFatal(t *testing.T) {
	err := &ResourceExhaustedError{Resource: "memory", Err: fmt.Errorf("oom")}
	assert.Equal(t, RecoveryFatal, Classify(err))
}

func TestClassifyHallucinationShiftsStrategy(t *testing.T) {
	err := &HallucinationError{Reference: "pkg/nope.go", Err: errors.New("not found")}
	assert.Equal(t, RecoveryStrategyShift, Classify(err))
}

func TestClassifyWrappedErrorUnwraps(t *testing.T) {
	inner := &TimeoutError{Operation: "sandbox.exec", Err: errors.New("ctx done")}
	wrapped := fmt.Errorf("running step: %w", inner)
	assert.Equal(t, RecoveryRetryWithBackoff, Classify(wrapped))
}

func TestClassifyClientErrorRateLimitRetries(t *testing.T) {
	err := &ClientError{Target: "llm", Status: 429, Err: errors.New("rate limited")}
	assert.Equal(t, RecoveryRetryWithBackoff, Classify(err))
}

func TestClassifyClientErrorOtherIsFatal(t *testing.T) {
	err := &ClientError{Target: "llm", Status: 400, Err: errors.New("bad request")}
	assert.Equal(t, RecoveryFatal, Classify(err))
}

func TestClassifyNilIsRetry(t *testing.T) {
	assert.Equal(t, RecoveryRetry, Classify(nil))
}

func TestRecoveryActionString(t *testing.T) {
	assert.Equal(t, "strategy_shift", RecoveryStrategyShift.String())
	assert.Equal(t, "fatal", RecoveryFatal.String())
}

func TestCommandNotFoundErrorMessage(t *testing.T) {
	err := &CommandNotFoundError{Command: "pytest"}
	assert.Contains(t, err.Error(), "pytest")
	assert.Equal(t, RecoveryStrategyShift, Classify(err))
}

func TestOverloadedErrorRetriesWithBackoff(t *testing.T) {
	err := &OverloadedError{QueueDepth: 10, Capacity: 10}
	assert.Contains(t, err.Error(), "10/10")
	assert.Equal(t, RecoveryRetryWithBackoff, Classify(err))
}
