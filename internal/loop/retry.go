package loop

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pair-run/pair/pkg/types"
)

// navigatorEmptyBatchMaxRetries and navigatorEmptyBatchInterval implement
// spec.md §4.6's Navigator empty-response retry policy: a fixed one-second
// backoff, up to five retries after the first attempt (six attempts in
// all), before the loop gives up and falls back to
// EXECUTING with a neutral prompt.
const (
	navigatorEmptyBatchMaxRetries = 5
	navigatorEmptyBatchInterval   = time.Second
)

// retryNavigatorReview calls attempt (a review-context
// ProcessDriverMessage) and, for as long as it keeps returning an empty
// command batch, re-invokes it with a one-second pause between tries. A
// transport error from attempt is treated as permanent and returned
// immediately. Returns ErrNavigatorEmptyBatch once retries are exhausted.
func retryNavigatorReview(ctx context.Context, attempt func() ([]types.NavigatorCommand, error)) ([]types.NavigatorCommand, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(navigatorEmptyBatchInterval), navigatorEmptyBatchMaxRetries),
		ctx,
	)

	var cmds []types.NavigatorCommand
	err := backoff.Retry(func() error {
		var attemptErr error
		cmds, attemptErr = attempt()
		if attemptErr != nil {
			return backoff.Permanent(attemptErr)
		}
		if len(cmds) == 0 {
			return ErrNavigatorEmptyBatch
		}
		return nil
	}, b)

	if err != nil {
		return nil, err
	}
	return cmds, nil
}
