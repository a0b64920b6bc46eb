package signup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service validates, stores and fans a signup out to its hooks.
type Service struct {
	store       Store
	hooks       []Hook
	log         *zap.Logger
	hookTimeout time.Duration
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHooks adds hooks run after every successful create.
func WithHooks(hooks ...Hook) Option {
	return func(s *Service) { s.hooks = append(s.hooks, hooks...) }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithHookTimeout bounds how long hooks may run.
func WithHookTimeout(d time.Duration) Option {
	return func(s *Service) { s.hookTimeout = d }
}

// WithClock sets the submission time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		log:         zap.NewNop(),
		hookTimeout: 10 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates req and stores it. Hooks run once the record exists;
// their failures are logged and never returned.
func (s *Service) Submit(ctx context.Context, req Request) (Record, error) {
	r, err := NewRecord(req, s.now())
	if err != nil {
		return Record{}, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		return Record{}, err
	}
	s.log.Info("signup stored",
		zap.String("device", r.DeviceType),
		zap.String("locale", r.Locale),
	)

	if err := s.runHooks(context.WithoutCancel(ctx), r); err != nil {
		s.log.Warn("signup hooks failed", zap.Error(err))
	}
	return r, nil
}

// runHooks runs every hook concurrently and combines their failures.
func (s *Service) runHooks(ctx context.Context, r Record) error {
	if len(s.hooks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.hookTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		errs error
	)
	var g errgroup.Group
	for _, h := range s.hooks {
		g.Go(func() error {
			if err := h.OnCreate(ctx, r); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", h.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}
