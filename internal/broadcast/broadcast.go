// Package broadcast fans standings events out to live subscribers,
// typically SSE streams held open by browsers watching a contest.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/programme-lv/judge/api"
)

// subscriber channel depth; a consumer this far behind is dropped
const subscriberBuffer = 16

// Sink receives standings events for a contest. Implementations must
// not block: publishing happens on the judging path.
type Sink interface {
	Publish(contestID int64, ev api.StandingsEvent)
}

// MultiSink fans one publish out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Publish(contestID int64, ev api.StandingsEvent) {
	for _, s := range m {
		s.Publish(contestID, ev)
	}
}

// Subscriber is one live consumer of a contest's event stream. mu makes
// sends and the close mutually exclusive, so a publish racing a detach
// can never hit a closed channel.
type Subscriber struct {
	contestID int64
	ch        chan api.StandingsEvent
	mu        sync.Mutex
	closed    bool
	b         *Broadcaster
}

// Events is the stream to consume; it is closed when the subscriber is
// dropped or closes itself.
func (s *Subscriber) Events() <-chan api.StandingsEvent {
	return s.ch
}

// Close unregisters the subscriber. Safe to call more than once and
// concurrently with a publish.
func (s *Subscriber) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	s.b.unregister(s)
}

// send delivers one event without blocking. A closed subscriber absorbs
// the event; a full buffer reports false so the caller can drop the
// subscriber.
func (s *Subscriber) send(ev api.StandingsEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// Broadcaster tracks subscribers per contest and delivers events to all
// of them without ever blocking the publisher. A subscriber whose
// buffer is full is closed and dropped; the rest are unaffected.
type Broadcaster struct {
	subs *xsync.MapOf[int64, *xsync.MapOf[*Subscriber, struct{}]]
	log  *slog.Logger
}

func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs: xsync.NewMapOf[int64, *xsync.MapOf[*Subscriber, struct{}]](),
		log:  log,
	}
}

// Register subscribes to one contest's events. The new subscriber
// immediately receives a heartbeat so the consumer knows the stream is
// live before the first real update.
func (b *Broadcaster) Register(contestID int64) *Subscriber {
	set, _ := b.subs.LoadOrCompute(contestID, func() *xsync.MapOf[*Subscriber, struct{}] {
		return xsync.NewMapOf[*Subscriber, struct{}]()
	})
	sub := &Subscriber{
		contestID: contestID,
		ch:        make(chan api.StandingsEvent, subscriberBuffer),
		b:         b,
	}
	// heartbeat goes in before the subscriber is published to the set
	sub.ch <- api.StandingsEvent{Type: api.HeartbeatEvent, ContestID: contestID}
	set.Store(sub, struct{}{})
	b.log.Debug("standings subscriber registered",
		"contest", contestID, "subscribers", set.Size())
	return sub
}

// Publish delivers the event to every subscriber of the contest. Slow
// subscribers are dropped rather than stalling the publisher.
func (b *Broadcaster) Publish(contestID int64, ev api.StandingsEvent) {
	set, ok := b.subs.Load(contestID)
	if !ok {
		return
	}
	var stale []*Subscriber
	set.Range(func(sub *Subscriber, _ struct{}) bool {
		if !sub.send(ev) {
			stale = append(stale, sub)
		}
		return true
	})
	for _, sub := range stale {
		b.log.Warn("dropping slow standings subscriber", "contest", contestID)
		sub.Close()
	}
}

// Subscribers reports the live subscriber count of one contest.
func (b *Broadcaster) Subscribers(contestID int64) int {
	set, ok := b.subs.Load(contestID)
	if !ok {
		return 0
	}
	return set.Size()
}

func (b *Broadcaster) unregister(sub *Subscriber) {
	if set, ok := b.subs.Load(sub.contestID); ok {
		set.Delete(sub)
	}
}
