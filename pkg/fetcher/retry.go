package fetcher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	error
}

func (e permanentError) Unwrap() error { return e.error }

func permanent(err error) error {
	return permanentError{err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// sleepFunc waits for d or until ctx is done.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// retry calls f up to retries+1 times. After failed attempt i (0-based) it
// sleeps (i+1)*backoff. A permanent error or a done context stops early.
func retry[T any](ctx context.Context, logger zerolog.Logger, retries int, backoff time.Duration, f func() (T, error)) (T, error) {
	var result T
	var err error

	for i := 0; i <= retries; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, errors.Wrap(ctxErr, "giving up")
		}

		result, err = f()
		if err == nil {
			return result, nil
		}
		if isPermanent(err) || i == retries {
			break
		}

		wait := time.Duration(i+1) * backoff
		logger.Warn().Err(err).Int("attempt", i+1).Dur("backoff", wait).Msg("retrying")
		if sleepErr := sleepFunc(ctx, wait); sleepErr != nil {
			return result, errors.Wrap(sleepErr, "giving up")
		}
	}

	var p permanentError
	if errors.As(err, &p) {
		return result, p.error
	}
	return result, err
}
