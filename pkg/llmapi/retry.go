package llmapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	repairerrors "github.com/codeready-toolchain/repairagent/pkg/errors"
)

// maxGenerateAttempts bounds retries per call site; repairerrors.Classify
// decides whether a given failure is worth retrying at all (spec.md §5:
// "no retry on 4xx").
const maxGenerateAttempts = 4

// withRetry runs op, retrying on errors repairerrors.Classify marks
// RecoveryRetry or RecoveryRetryWithBackoff, up to maxGenerateAttempts.
// A RecoveryStrategyShift or RecoveryFatal classification is returned
// immediately via backoff.Permanent so backoff.Retry stops at once.
func withRetry(ctx context.Context, log *slog.Logger, op func() (Response, error)) (Response, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Second
	exp.MaxInterval = 8 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(exp, maxGenerateAttempts-1), ctx)

	var resp Response
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		var opErr error
		resp, opErr = op()
		if opErr == nil {
			return nil
		}
		switch repairerrors.Classify(opErr) {
		case repairerrors.RecoveryRetry, repairerrors.RecoveryRetryWithBackoff:
			return opErr
		default:
			return backoff.Permanent(opErr)
		}
	}, b, func(err error, d time.Duration) {
		log.Warn("llm call failed, retrying", "attempt", attempt, "backoff", d, "error", err)
	})

	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return Response{}, perm.Unwrap()
		}
		return Response{}, err
	}
	return resp, nil
}
