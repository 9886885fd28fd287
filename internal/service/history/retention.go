package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	store "github.com/zooconnect/ambassador-chat/internal/store/history"
)

// Sweeper is the background retention worker: it closes idle sessions and
// deletes sessions past the retention horizon. The sweep is the sole
// deletion mechanism; reads never filter out expired-but-unswept data.
type Sweeper struct {
	store       store.Store
	retention   time.Duration
	idleTimeout time.Duration
	interval    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSweeper configures the retention worker.
func NewSweeper(st store.Store, retention, idleTimeout, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:       st,
		retention:   retention,
		idleTimeout: idleTimeout,
		interval:    interval,
		logger:      logger.With().Str("component", "sweeper").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.interval).
		Dur("retention", s.retention).
		Msg("retention sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass: close idle sessions, then delete expired ones.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	closed, err := s.store.CloseIdleSessions(ctx, now.Add(-s.idleTimeout))
	if err != nil {
		s.logger.Error().Err(err).Msg("close idle sessions failed")
	}

	deleted, err := s.store.DeleteOlderThan(ctx, now.Add(-s.retention))
	if err != nil {
		s.logger.Error().Err(err).Msg("retention delete failed")
	}

	if closed > 0 || deleted > 0 {
		s.logger.Info().Int("closed", closed).Int("deleted", deleted).Msg("sweep completed")
	}
}
