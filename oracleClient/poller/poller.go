// Package poller implements a primary/fallback polling loop with per-round
// timeouts and jitter, used for hub event and hub signature ingestion.
package poller

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushchain/bridge-oracle/oracleClient/metrics"
)

// ErrAlreadyStarted is returned by Start when the poller is already running.
var ErrAlreadyStarted = errors.New("poller already started")

// FetchFunc performs one request against endpoint. It must honour ctx so a
// timeout aborts the underlying request.
type FetchFunc[T any] func(ctx context.Context, endpoint string) (T, error)

// RoundFunc receives the outcome of a round. ok is false when both endpoints failed.
type RoundFunc[T any] func(ctx context.Context, resp T, ok bool, rc RoundContext)

// RoundContext describes which endpoint served a round.
type RoundContext struct {
	Round     uint64
	StartedAt time.Time
	Primary   string
	Fallback  string
	Used      string // "" when no endpoint answered
}

// Config holds poller settings.
type Config struct {
	Name      string
	Primary   string
	Fallback  string
	Interval  time.Duration
	Timeout   time.Duration
	MaxJitter time.Duration
}

// Poller repeatedly fetches from a primary endpoint, falling back to a
// secondary one when the primary fails.
type Poller[T any] struct {
	cfg     Config
	fetch   FetchFunc[T]
	onRound RoundFunc[T]
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	round   uint64
}

// New creates a poller. It does nothing until Start is called.
func New[T any](cfg Config, fetch FetchFunc[T], onRound RoundFunc[T], logger zerolog.Logger) *Poller[T] {
	return &Poller[T]{
		cfg:     cfg,
		fetch:   fetch,
		onRound: onRound,
		logger:  logger.With().Str("component", "poller").Str("poller", cfg.Name).Logger(),
	}
}

// Start launches the polling loop. Rounds run until Stop is called or ctx is done.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyStarted
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.run(ctx, p.stopCh, p.doneCh)

	p.logger.Info().
		Str("primary", p.cfg.Primary).
		Str("fallback", p.cfg.Fallback).
		Dur("interval", p.cfg.Interval).
		Msg("poller started")
	return nil
}

// Stop requests termination and waits for the in-flight round to finish.
// Safe to call multiple times.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	p.mu.Unlock()

	<-doneCh

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Poller[T]) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	for {
		started := time.Now()

		if !p.sleep(ctx, stopCh, p.jitter()) {
			return
		}
		p.runRound(ctx)

		if !p.sleep(ctx, stopCh, p.cfg.Interval-time.Since(started)) {
			return
		}
	}
}

// sleep waits for d and reports whether the loop should keep going.
func (p *Poller[T]) sleep(ctx context.Context, stopCh chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stopCh:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stopCh:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Poller[T]) jitter() time.Duration {
	if p.cfg.MaxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(p.cfg.MaxJitter)))
}

func (p *Poller[T]) runRound(ctx context.Context) {
	p.round++
	rc := RoundContext{
		Round:     p.round,
		StartedAt: time.Now(),
		Primary:   p.cfg.Primary,
		Fallback:  p.cfg.Fallback,
	}

	resp, err := p.fetchWithTimeout(ctx, p.cfg.Primary)
	if err == nil {
		rc.Used = p.cfg.Primary
		p.finish(ctx, resp, true, rc, "primary")
		return
	}
	p.logger.Warn().Err(err).Uint64("round", rc.Round).Str("endpoint", p.cfg.Primary).Msg("primary fetch failed")

	if p.cfg.Fallback != "" {
		resp, err = p.fetchWithTimeout(ctx, p.cfg.Fallback)
		if err == nil {
			rc.Used = p.cfg.Fallback
			p.finish(ctx, resp, true, rc, "fallback")
			return
		}
		p.logger.Warn().Err(err).Uint64("round", rc.Round).Str("endpoint", p.cfg.Fallback).Msg("fallback fetch failed")
	}

	var zero T
	p.finish(ctx, zero, false, rc, "none")
}

func (p *Poller[T]) fetchWithTimeout(ctx context.Context, endpoint string) (T, error) {
	fetchCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	return p.fetch(fetchCtx, endpoint)
}

func (p *Poller[T]) finish(ctx context.Context, resp T, ok bool, rc RoundContext, endpoint string) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	metrics.PollRounds.WithLabelValues(p.cfg.Name, endpoint, outcome).Inc()

	if p.onRound == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Uint64("round", rc.Round).Msg("round callback panicked")
		}
	}()
	p.onRound(ctx, resp, ok, rc)
}
