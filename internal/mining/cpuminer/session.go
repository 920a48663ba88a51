// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/eventbus"
	"github.com/grigorovich-alex/sonomacoin/internal/mining"
)

// sessionState describes the outcome of a search session.
type sessionState int32

const (
	// sessionRunning is the only non-terminal state.
	sessionRunning sessionState = iota

	// sessionFound indicates the worker solved the candidate.
	sessionFound

	// sessionCancelled indicates the session was preempted by a block at or
	// beyond the candidate index, a stop request, or an explicit cancel.
	sessionCancelled

	// sessionFailed indicates the worker terminated with an error.
	sessionFailed
)

// sessionStateStrings maps session states to human-readable strings.
var sessionStateStrings = map[sessionState]string{
	sessionRunning:   "running",
	sessionFound:     "found",
	sessionCancelled: "cancelled",
	sessionFailed:    "failed",
}

// String returns the session state as a human-readable string.
func (s sessionState) String() string {
	if str, ok := sessionStateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("unknown session state (%d)", int32(s))
}

// sessionConfig houses the parameters of the hash search a session runs.
type sessionConfig struct {
	hashFn           mining.HashFunc
	progressInterval uint64
	dispatchDelay    time.Duration
	progress         func(hashes uint64)
}

// workerResult is the single message a worker sends back to its session.
type workerResult struct {
	block *blockchain.Block
	err   error
}

// session is one bounded attempt to solve a single block candidate.  It owns
// exactly one worker goroutine which searches a private copy of the
// candidate, and it races the worker result against the block-added and
// mine-stop events.
//
// The first outcome wins.  Resolution detaches both subscriptions, cancels
// the worker, and waits for the worker goroutine to exit, all exactly once.
type session struct {
	candidateIndex int64
	blockAddedSub  *eventbus.Subscription
	mineStopSub    *eventbus.Subscription
	progress       func(hashes uint64)

	cancelWorker context.CancelFunc
	result       chan workerResult
	workerDone   chan struct{}

	state       atomic.Int32
	resolveOnce sync.Once
	done        chan struct{}
}

// openSession subscribes to the events that preempt the search for the
// candidate and then dispatches a worker with a deep copy of it.
func openSession(ctx context.Context, bus *eventbus.Bus, candidate *blockchain.Block, cfg *sessionConfig) *session {
	index := candidate.Index
	s := &session{
		candidateIndex: index,
		progress:       cfg.progress,
		result:         make(chan workerResult, 1),
		workerDone:     make(chan struct{}),
		done:           make(chan struct{}),
	}
	s.blockAddedSub = bus.SubscribeOnce(eventbus.TopicBlockAdded,
		func(payload any) bool {
			block, ok := payload.(*blockchain.Block)
			return ok && block != nil && block.Index >= index
		})
	s.mineStopSub = bus.SubscribeOnce(eventbus.TopicMineStop, nil)

	wCtx, wCancel := context.WithCancel(ctx)
	s.cancelWorker = wCancel
	go s.runWorker(wCtx, candidate.Copy(), candidate.Bits, cfg)
	return s
}

// runWorker runs the hash search and delivers its outcome.  It must be run as
// a goroutine.
func (s *session) runWorker(ctx context.Context, work *blockchain.Block, bits uint32, cfg *sessionConfig) {
	defer close(s.workerDone)
	defer func() {
		if r := recover(); r != nil {
			str := fmt.Sprintf("hash search for block %d panicked: %v",
				work.Index, r)
			s.result <- workerResult{err: mining.MakeError(mining.ErrWorkerPanic, str)}
		}
	}()

	if cfg.dispatchDelay > 0 {
		log.Debugf("Delaying hash search for block %d by %v", work.Index,
			cfg.dispatchDelay)
		timer := time.NewTimer(cfg.dispatchDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			s.result <- workerResult{}
			return
		}
	}

	block, err := solveBlock(ctx, work, bits, cfg.hashFn, cfg.progressInterval,
		s.reportProgress)
	s.result <- workerResult{block: block, err: err}
}

// reportProgress passes worker progress on to the session observer until the
// session resolves.
func (s *session) reportProgress(hashes uint64) {
	if s.progress == nil || s.currentState() != sessionRunning {
		return
	}
	s.progress(hashes)
}

// currentState returns the state of the session.
//
// This function is safe for concurrent access.
func (s *session) currentState() sessionState {
	return sessionState(s.state.Load())
}

// resolve moves the session to the provided terminal state unless it was
// already resolved and returns the final state.  Only the first call has any
// effect.  Every call returns after the worker goroutine exited.
func (s *session) resolve(state sessionState) sessionState {
	s.resolveOnce.Do(func() {
		s.state.Store(int32(state))
		s.blockAddedSub.Stop()
		s.mineStopSub.Stop()
		s.cancelWorker()
		<-s.workerDone
		close(s.done)
	})
	return s.currentState()
}

// cancel resolves the session as cancelled.  It is safe to call multiple
// times and concurrently with wait.
func (s *session) cancel() {
	s.resolve(sessionCancelled)
}

// wait blocks until the session resolves and returns the solved block when
// the worker won.  A nil block and error mean the session was cancelled.  An
// error is only returned when the worker failed.
func (s *session) wait(ctx context.Context) (*blockchain.Block, error) {
	var res workerResult
	state := sessionCancelled
	select {
	case res = <-s.result:
		switch {
		case res.err != nil:
			state = sessionFailed
		case res.block != nil:
			state = sessionFound
		}

	case <-s.blockAddedSub.C():
		log.Debugf("Search for block %d preempted by a new block",
			s.candidateIndex)

	case <-s.mineStopSub.C():
		log.Debugf("Search for block %d stopped", s.candidateIndex)

	case <-s.done:
	case <-ctx.Done():
	}

	switch s.resolve(state) {
	case sessionFound:
		return res.block, nil
	case sessionFailed:
		return nil, res.err
	}
	return nil, nil
}
