// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package eventbus

import (
	"sync"
	"testing"
	"time"
)

// recvTimeout waits for a payload on the subscription channel and fails the
// test when none arrives in a reasonable amount of time.
func recvTimeout(t *testing.T, s *Subscription) any {
	t.Helper()
	select {
	case payload := <-s.C():
		return payload
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s notification", s.topic)
	}
	return nil
}

// assertNoDelivery ensures nothing is pending on the subscription channel.
func assertNoDelivery(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case payload := <-s.C():
		t.Fatalf("unexpected %s notification: %v", s.topic, payload)
	default:
	}
}

// TestSubscribe ensures persistent subscriptions receive every payload
// published to their topic and nothing published to other topics.
func TestSubscribe(t *testing.T) {
	bus := New()
	sub := bus.Subscribe(TopicBlockAdded, 4)
	other := bus.Subscribe(TopicMineStop, 4)
	defer other.Stop()

	bus.Publish(TopicBlockAdded, 1)
	bus.Publish(TopicBlockAdded, 2)
	if got := recvTimeout(t, sub); got != 1 {
		t.Fatalf("unexpected first payload: got %v, want 1", got)
	}
	if got := recvTimeout(t, sub); got != 2 {
		t.Fatalf("unexpected second payload: got %v, want 2", got)
	}
	assertNoDelivery(t, other)

	sub.Stop()
	sub.Stop()
	bus.Publish(TopicBlockAdded, 3)
	assertNoDelivery(t, sub)
	if n := bus.NumSubscribers(TopicBlockAdded); n != 0 {
		t.Fatalf("unexpected subscriber count after stop: got %d, want 0", n)
	}
}

// TestSubscribeOnce ensures one-shot subscriptions only deliver the first
// matching payload and detach themselves from the bus when they fire.
func TestSubscribeOnce(t *testing.T) {
	tests := []struct {
		name      string
		match     func(any) bool
		published []int
		want      int
	}{{
		name:      "nil match accepts first payload",
		published: []int{5, 6, 7},
		want:      5,
	}, {
		name:      "skips non-matching payloads",
		match:     func(p any) bool { return p.(int) >= 6 },
		published: []int{4, 5, 6, 7},
		want:      6,
	}, {
		name:      "matches equal index",
		match:     func(p any) bool { return p.(int) >= 1 },
		published: []int{1},
		want:      1,
	}}

	for _, test := range tests {
		bus := New()
		sub := bus.SubscribeOnce(TopicBlockAdded, test.match)
		for _, p := range test.published {
			bus.Publish(TopicBlockAdded, p)
		}
		if got := recvTimeout(t, sub); got != test.want {
			t.Errorf("%q: unexpected payload: got %v, want %d", test.name,
				got, test.want)
			continue
		}
		assertNoDelivery(t, sub)
		if n := bus.NumSubscribers(TopicBlockAdded); n != 0 {
			t.Errorf("%q: one-shot subscription still registered", test.name)
		}

		// Stopping after firing must be harmless.
		sub.Stop()
	}
}

// TestSubscribeOnceNoMatch ensures a one-shot subscription that never sees a
// matching payload stays registered until stopped.
func TestSubscribeOnceNoMatch(t *testing.T) {
	bus := New()
	sub := bus.SubscribeOnce(TopicBlockAdded, func(p any) bool {
		return p.(int) >= 10
	})
	bus.Publish(TopicBlockAdded, 9)
	assertNoDelivery(t, sub)
	if n := bus.NumSubscribers(TopicBlockAdded); n != 1 {
		t.Fatalf("unexpected subscriber count: got %d, want 1", n)
	}
	sub.Stop()
	if n := bus.NumSubscribers(TopicBlockAdded); n != 0 {
		t.Fatalf("unexpected subscriber count after stop: got %d, want 0", n)
	}
}

// TestPublishSlowReceiver ensures publishing never blocks when a subscriber
// does not drain its channel.
func TestPublishSlowReceiver(t *testing.T) {
	bus := New()
	sub := bus.Subscribe(TopicBalanceUpdated, 1)
	defer sub.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(TopicBalanceUpdated, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow receiver")
	}
	if got := recvTimeout(t, sub); got != 0 {
		t.Fatalf("unexpected buffered payload: got %v, want 0", got)
	}
}

// TestSubscribeOnceConcurrent ensures concurrent publishers can never deliver
// more than one payload to a one-shot subscription.
func TestSubscribeOnceConcurrent(t *testing.T) {
	for round := 0; round < 50; round++ {
		bus := New()
		sub := bus.SubscribeOnce(TopicMineStop, nil)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				bus.Publish(TopicMineStop, i)
			}(i)
		}
		wg.Wait()

		recvTimeout(t, sub)
		assertNoDelivery(t, sub)
	}
}
