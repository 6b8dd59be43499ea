package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck returns a liveness check that fails when the process
// exceeds the given goroutine count, a cheap proxy for leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("too many goroutines: %d > %d", n, threshold)
		}
		return nil
	}
}
