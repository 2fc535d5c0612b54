package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/repairagent/pkg/config"
	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
	"github.com/codeready-toolchain/repairagent/pkg/sandbox"
)

func TestWatchResourcesNoopsWhenThresholdsDisabled(t *testing.T) {
	pool := NewPool(1, Dependencies{})
	defer pool.Stop()

	box := newFakeSandbox()
	box.stats = &sandbox.ResourceStats{CPUPercent: 99, MemPercent: 99, PIDs: 100000}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var outcome atomic.Value

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.watchResources(ctx, "run-1", box, config.ResourceThresholds{}, cancel, &outcome)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("watchResources with disabled thresholds should return immediately")
	}
	assert.Nil(t, outcome.Load())
}

func TestWatchResourcesAbortsSessionOnCriticalSample(t *testing.T) {
	original := resourceSampleInterval
	resourceSampleInterval = 5 * time.Millisecond
	defer func() { resourceSampleInterval = original }()

	pool := NewPool(1, Dependencies{})
	defer pool.Stop()

	box := newFakeSandbox()
	box.stats = &sandbox.ResourceStats{CPUPercent: 99, MemPercent: 10, PIDs: 5}

	thresholds := config.ResourceThresholds{
		CPUWarnPercent: 80, CPUCritPercent: 95,
		MemWarnPercent: 80, MemCritPercent: 95,
		PIDsWarn: 1000, PIDsCrit: 2000,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var outcome atomic.Value

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.watchResources(ctx, "run-1", box, thresholds, cancel, &outcome)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchResources never reacted to a critical sample")
	}

	require.Error(t, ctx.Err())
	resErr, ok := outcome.Load().(*repairerrors.ResourceExhaustedError)
	require.True(t, ok)
	assert.Equal(t, "sandbox", resErr.Resource)
}
