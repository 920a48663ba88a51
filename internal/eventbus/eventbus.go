// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventbus

import (
	"sync"

	"github.com/decred/dcrd/dcrutil/v4"
)

// Topic identifies a stream of events published on the bus.
type Topic string

// These constants define the topics used by the node.
const (
	// TopicBlockAdded is published whenever a block is appended to the
	// chain, regardless of who produced it.  The payload is the appended
	// *blockchain.Block.
	TopicBlockAdded = Topic("block-added")

	// TopicMineStop is published when the operator requests that mining
	// halt.  The payload is nil.
	TopicMineStop = Topic("mine-stop")

	// TopicBlockAddedByMe is published when a block solved by the local
	// miner was accepted by the chain.  The payload is the
	// *blockchain.Block.
	TopicBlockAddedByMe = Topic("block-added-by-me")

	// TopicBalanceUpdated is published after a locally mined block credits
	// the reward address.  The payload is a BalanceUpdate.
	TopicBalanceUpdated = Topic("balance-updated")
)

// BalanceUpdate is the payload published on TopicBalanceUpdated.
type BalanceUpdate struct {
	Address string
	Balance dcrutil.Amount
}

// String returns the topic as a human-readable name.
func (t Topic) String() string {
	return string(t)
}

// defaultBufferSize is the channel buffer used for persistent subscriptions
// when the caller does not request a specific size.
const defaultBufferSize = 16

// Subscription is a registration for events of a single topic.
//
// Notifications are delivered on the channel returned by C.  Persistent
// subscriptions drop notifications when their buffer is full in order to
// make up for slow receivers.
type Subscription struct {
	bus   *Bus
	topic Topic
	match func(payload any) bool
	once  bool
	privC chan any

	stopOnce sync.Once
}

// C returns the channel that produces the events delivered to the
// subscription.  Successive calls to C return the same channel.
//
// NOTE: The channel is never closed to prevent a read from the channel
// succeeding incorrectly after Stop.
func (s *Subscription) C() <-chan any {
	return s.privC
}

// Stop prevents any future events from being delivered and detaches the
// subscription from the bus.  It is safe to call Stop multiple times and
// after a one-shot subscription already fired.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		s.bus.mtx.Lock()
		s.bus.removeLocked(s)
		s.bus.mtx.Unlock()
	})
}

// deliver sends the payload on the subscription channel without blocking.
// It returns whether the payload was accepted by the match function.
func (s *Subscription) deliver(payload any) bool {
	if s.match != nil && !s.match(payload) {
		return false
	}
	select {
	case s.privC <- payload:
	default:
		log.Debugf("Dropping %s notification for slow subscriber", s.topic)
	}
	return true
}

// Bus is a concurrency safe publish/subscribe event bus.
type Bus struct {
	mtx  sync.Mutex
	subs map[Topic]map[*Subscription]struct{}
}

// New returns a new empty event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[Topic]map[*Subscription]struct{}),
	}
}

// addLocked registers the subscription.
//
// This function MUST be called with the bus mutex held (for writes).
func (b *Bus) addLocked(s *Subscription) {
	topicSubs, ok := b.subs[s.topic]
	if !ok {
		topicSubs = make(map[*Subscription]struct{})
		b.subs[s.topic] = topicSubs
	}
	topicSubs[s] = struct{}{}
}

// removeLocked unregisters the subscription.
//
// This function MUST be called with the bus mutex held (for writes).
func (b *Bus) removeLocked(s *Subscription) {
	topicSubs, ok := b.subs[s.topic]
	if !ok {
		return
	}
	delete(topicSubs, s)
	if len(topicSubs) == 0 {
		delete(b.subs, s.topic)
	}
}

// Subscribe registers a persistent subscription for all events published to
// the given topic.  A buffer size of zero selects a reasonable default.
func (b *Bus) Subscribe(topic Topic, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultBufferSize
	}
	s := &Subscription{
		bus:   b,
		topic: topic,
		privC: make(chan any, buffer),
	}
	b.mtx.Lock()
	b.addLocked(s)
	b.mtx.Unlock()
	return s
}

// SubscribeOnce registers a one-shot subscription for the given topic.  The
// first published payload for which match returns true is delivered and the
// subscription is detached from the bus in the same critical section, so at
// most one event is ever delivered.  A nil match accepts every payload.
func (b *Bus) SubscribeOnce(topic Topic, match func(payload any) bool) *Subscription {
	s := &Subscription{
		bus:   b,
		topic: topic,
		match: match,
		once:  true,
		privC: make(chan any, 1),
	}
	b.mtx.Lock()
	b.addLocked(s)
	b.mtx.Unlock()
	return s
}

// Publish delivers the payload to every subscription registered for the
// topic.  It never blocks.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for s := range b.subs[topic] {
		if s.deliver(payload) && s.once {
			b.removeLocked(s)
		}
	}
}

// NumSubscribers returns the number of subscriptions currently registered
// for the given topic.
func (b *Bus) NumSubscribers(topic Topic) int {
	b.mtx.Lock()
	n := len(b.subs[topic])
	b.mtx.Unlock()
	return n
}
