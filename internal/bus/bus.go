// Package bus carries transient cross-view events such as "highlight this
// year" between views that do not know about each other.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"roadsafety/internal/logger"
	"roadsafety/internal/models"
)

const (
	Highlight        = "highlight"
	Unhighlight      = "unhighlight"
	YearChanged      = "yearChanged"
	CountryHovered   = "countryHovered"
	AttributeChanged = "attributeChanged"
)

// Channels lists every channel in a stable order.
var Channels = []string{Highlight, Unhighlight, YearChanged, CountryHovered, AttributeChanged}

var ErrUnknownChannel = errors.New("unknown channel")

// Handler reacts to one event. A returned error is logged and reported by
// Publish but never stops the other handlers.
type Handler func(models.HighlightEvent) error

type subscription struct {
	id int
	fn Handler
}

// Bus is a synchronous publish/subscribe hub. Events are not stored:
// a subscriber only sees events published after it subscribed.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]subscription
	nextID int
}

func New() *Bus {
	b := &Bus{subs: make(map[string][]subscription, len(Channels))}
	for _, ch := range Channels {
		b.subs[ch] = nil
	}
	return b
}

// Known reports whether ch is a valid channel name.
func Known(ch string) bool {
	for _, c := range Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// Subscribe registers fn on ch and returns a function that removes it.
func (b *Bus) Subscribe(ch string, fn Handler) (unsubscribe func(), err error) {
	if !Known(ch) {
		return nil, fmt.Errorf("subscribe %q: %w", ch, ErrUnknownChannel)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[ch] = append(b.subs[ch], subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[ch]
		for i, s := range list {
			if s.id == id {
				b.subs[ch] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}, nil
}

// SubscribeAll registers fn on every channel.
func (b *Bus) SubscribeAll(fn Handler) func() {
	unsubs := make([]func(), 0, len(Channels))
	for _, ch := range Channels {
		u, _ := b.Subscribe(ch, fn)
		unsubs = append(unsubs, u)
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Publish delivers ev to every handler on ch in subscription order.
// Handlers run outside the bus lock, so they may publish or subscribe.
func (b *Bus) Publish(ch string, ev models.HighlightEvent) error {
	if !Known(ch) {
		return fmt.Errorf("publish %q: %w", ch, ErrUnknownChannel)
	}
	ev.Channel = ch

	b.mu.Lock()
	handlers := append([]subscription(nil), b.subs[ch]...)
	b.mu.Unlock()

	var errs []error
	for _, s := range handlers {
		if err := invoke(s.fn, ev); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"channel": ch,
				"handler": s.id,
			}).WithError(err).Warn("bus handler failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of handlers on ch.
func (b *Bus) Len(ch string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[ch])
}

func invoke(fn Handler, ev models.HighlightEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ev)
}
