package view

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"roadsafety/internal/logger"
)

const DefaultInterval = time.Second

// StepFunc moves the shared time cursor to year. ctx is cancelled when the
// player stops, so a step that waited on a lock can tell it is stale.
type StepFunc func(ctx context.Context, year int) error

// Player advances the year on a fixed interval until it reaches the last
// year, then stops. It does not loop.
type Player struct {
	interval time.Duration
	step     StepFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewPlayer(interval time.Duration, step StepFunc) *Player {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Player{interval: interval, step: step}
}

// Play starts stepping from the year after from up to and including last.
// The first step happens immediately. Calling Play while playing restarts
// from the new position.
func (p *Player) Play(ctx context.Context, from, last int) {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		p.run(ctx, from, last)
	}()
}

func (p *Player) run(ctx context.Context, year, last int) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for year < last {
		year++
		if err := p.step(ctx, year); err != nil {
			if ctx.Err() == nil {
				logger.Log.WithFields(logrus.Fields{"year": year}).WithError(err).Error("playback step failed")
			}
			return
		}
		if year >= last {
			logger.Log.WithField("year", year).Debug("playback reached the last year")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels playback. It does not wait for an in-flight step; use Wait
// for that.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the current playback, if any, has finished.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
