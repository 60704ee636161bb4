package noncestore

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/bridge-oracle/oracleClient/metrics"
)

const (
	defaultCheckInterval = 60 * time.Second
	defaultRetention     = 120 * time.Second
)

// Config holds configuration for the nonce sweeper.
type Config struct {
	Store         *Store
	CheckInterval time.Duration
	Retention     time.Duration // must cover the auth skew window
	Logger        zerolog.Logger
}

// Sweeper periodically deletes nonces older than the retention window. A nonce
// younger than the skew window is never deleted, since its request could still
// be replayed.
type Sweeper struct {
	store         *Store
	checkInterval time.Duration
	retention     time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// NewSweeper creates a new nonce sweeper.
func NewSweeper(cfg Config) *Sweeper {
	interval := cfg.CheckInterval
	if interval == 0 {
		interval = defaultCheckInterval
	}
	retention := cfg.Retention
	if retention == 0 {
		retention = defaultRetention
	}
	return &Sweeper{
		store:         cfg.Store,
		checkInterval: interval,
		retention:     retention,
		now:           time.Now,
		logger:        cfg.Logger.With().Str("component", "nonce_sweeper").Logger(),
	}
}

// Run sweeps on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.store.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to sweep hub nonces")
		return
	}
	if remaining, err := s.store.Count(); err == nil {
		metrics.NoncesStored.Set(float64(remaining))
	}
	if deleted == 0 {
		return
	}
	metrics.NoncesSwept.Add(float64(deleted))
	s.logger.Debug().
		Int64("deleted_count", deleted).
		Time("cutoff", cutoff).
		Msg("swept expired hub nonces")
}
