package preload

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrAlreadyStarted is returned by Configure once the shared cache exists.
var ErrAlreadyStarted = errors.New("preload: shared cache already in use")

var (
	sharedMu      sync.Mutex
	shared        *Cache
	sharedFetcher Fetcher
	sharedOpts    []Option
)

// Configure sets the fetcher and options for the process-wide cache. It must
// be called before the first call to Shared.
func Configure(fetcher Fetcher, workers int, log *zap.Logger) error {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		return ErrAlreadyStarted
	}
	sharedFetcher = fetcher
	sharedOpts = []Option{WithWorkers(workers), WithLogger(log)}
	return nil
}

// Shared returns the process-wide cache, creating it on first use. It lives
// until the process exits.
func Shared() *Cache {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = New(sharedFetcher, sharedOpts...)
	}
	return shared
}
