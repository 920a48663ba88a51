// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/eventbus"
	"github.com/grigorovich-alex/sonomacoin/internal/mining"
	"github.com/grigorovich-alex/sonomacoin/internal/progresslog"
)

const (
	// hpsUpdateSecs is the number of seconds to wait in between each
	// update to the hashes per second monitor.
	hpsUpdateSecs = 10
)

// Chain is the chain storage the miner builds on and submits solved blocks
// to.
type Chain interface {
	// MempoolTransactions returns the unconfirmed transactions to include
	// in the next block.
	MempoolTransactions() []*blockchain.Transaction

	// LastBlock returns the current tip.
	LastBlock() *blockchain.Block

	// CurrentDifficulty returns the compact target difficulty required for
	// the block after the current tip.
	CurrentDifficulty() uint32

	// RewardAddress returns the address to pay the block reward to.  An
	// empty string means no address is available.
	RewardAddress() string

	// AppendBlock validates the block and connects it to the tip.  Blocks
	// that violate the rules are rejected with a blockchain.RuleError or
	// blockchain.TxRuleError.
	AppendBlock(block *blockchain.Block) error

	// BalanceOf returns the confirmed balance of the address.
	BalanceOf(addr string) dcrutil.Amount
}

// speedStats houses tracking information used to monitor the hashing speed of
// the CPU miner.
type speedStats struct {
	totalHashes atomic.Uint64
}

// Config is a descriptor containing the CPU miner configuration.
type Config struct {
	// ChainParams identifies which chain parameters the CPU miner is
	// associated with.
	ChainParams *blockchain.Params

	// Chain is the chain the miner extends.
	Chain Chain

	// Bus is the event bus the miner listens to for preemption and stop
	// requests and publishes solved blocks and balance updates to.
	Bus *eventbus.Bus

	// HashFunc is the proof of work hash function.  It defaults to
	// mining.ComputeHash.
	HashFunc mining.HashFunc

	// TimeSource defines the time source used for block timestamps.  It
	// defaults to time.Now.
	TimeSource func() time.Time

	// ProgressInterval is the number of hashes between progress reports of
	// a hash search.  It also bounds the cancellation latency.
	ProgressInterval uint64

	// DispatchDelay is an optional delay before each hash search starts.
	// It is intended for demonstrations on networks with trivial
	// difficulty.  Searches remain cancellable during the delay.
	DispatchDelay time.Duration

	// ProgressLogger, when set, periodically logs the hash search
	// progress.
	ProgressLogger *progresslog.Logger
}

// CPUMiner provides facilities for solving blocks (mining) using the CPU in a
// concurrency-safe manner.  It consists of two main modes -- a normal mining
// mode that tries to solve blocks continuously while the mining flag is set and
// a discrete mining mode, which is accessible via GenerateNBlocks, that
// generates a specific number of blocks that extend the chain.
//
// Both modes run at most one search session at a time.  Each session races a
// single hash search worker against blocks added by anyone at or beyond the
// candidate index and requests to stop mining.
//
// When the CPU miner is first started via the Run method it will be idle until
// SetGenerate enables the mining flag.
type CPUMiner struct {
	// enabled is the mining flag.  It is read at the top of every normal
	// mode mining loop iteration.
	enabled atomic.Bool

	sync.Mutex
	cfg               *Config
	g                 *mining.CandidateGenerator
	hashFn            mining.HashFunc
	normalMining      bool
	discreteMining    bool
	haltErr           error
	wg                sync.WaitGroup
	startMining       chan struct{}
	queryHashesPerSec chan float64
	speedStats        speedStats
	quit              chan struct{}
}

// speedMonitor handles tracking the number of hashes per second the mining
// process is performing.  It must be run as a goroutine.
func (m *CPUMiner) speedMonitor(ctx context.Context) {
	log.Trace("CPU miner speed monitor started")

	var hashesPerSec float64
	ticker := time.NewTicker(time.Second * hpsUpdateSecs)
	defer ticker.Stop()

out:
	for {
		select {
		// Time to update the hashes per second.
		case <-ticker.C:
			totalHashes := m.speedStats.totalHashes.Swap(0)
			curHashesPerSec := float64(totalHashes) / hpsUpdateSecs
			if hashesPerSec == 0 {
				hashesPerSec = curHashesPerSec
			}
			hashesPerSec = (hashesPerSec + curHashesPerSec) / 2
			prometheusMinerHashesPerSec.Set(hashesPerSec)
			if hashesPerSec != 0 {
				log.Debugf("Hash speed: %6.0f kilohashes/s",
					hashesPerSec/1000)
			}

		// Request for the number of hashes per second.
		case m.queryHashesPerSec <- hashesPerSec:
			// Nothing to do.

		case <-ctx.Done():
			break out
		}
	}

	m.wg.Done()
	log.Trace("CPU miner speed monitor done")
}

// submitBlock appends the passed solved block to the chain and announces it
// when accepted.
//
// A block rejected for violating the rules is logged and reported as not
// accepted without an error since another attempt with a fresh candidate may
// succeed.  Any other failure is returned.
func (m *CPUMiner) submitBlock(block *blockchain.Block) (bool, error) {
	chain := m.cfg.Chain
	if err := chain.AppendBlock(block); err != nil {
		if !blockchain.IsRuleError(err) {
			return false, err
		}
		prometheusMinerBlocksRejected.Inc()
		log.Errorf("Block submitted via CPU miner rejected: %v", err)
		return false, nil
	}

	prometheusMinerBlocksMined.Inc()
	log.Infof("Block submitted via CPU miner accepted (hash %s, index %d, "+
		"amount %v)", block.Hash, block.Index, block.Transactions[0].Amount)

	bus := m.cfg.Bus
	bus.Publish(eventbus.TopicBlockAddedByMe, block)
	bus.Publish(eventbus.TopicBalanceUpdated, eventbus.BalanceUpdate{
		Address: block.RewardAddress,
		Balance: chain.BalanceOf(block.RewardAddress),
	})
	return true, nil
}

// mineBlock builds a candidate on the current tip and searches for a solution
// in a session that is preempted by a block at or beyond the candidate index
// or by a stop request.  The keepMining function is consulted once the
// session is open so a stop request issued while the candidate was built is
// not missed.
//
// The accepted block is returned when the candidate was solved and appended.
// A nil block without an error means the attempt was preempted or rejected.
// Errors are only returned for failures that are not expected outcomes of
// mining.
func (m *CPUMiner) mineBlock(ctx context.Context, keepMining func() bool) (*blockchain.Block, error) {
	chain := m.cfg.Chain
	rewardAddr := chain.RewardAddress()
	if rewardAddr == "" {
		return nil, mining.MakeError(mining.ErrNoMiningAddrs,
			"no mining addresses are available to pay the block reward to")
	}
	prev := chain.LastBlock()
	candidate := m.g.BuildCandidate(chain.MempoolTransactions(), prev,
		rewardAddr, chain.CurrentDifficulty())

	progressLogger := m.cfg.ProgressLogger
	start := time.Now()
	s := openSession(ctx, m.cfg.Bus, candidate, &sessionConfig{
		hashFn:           m.hashFn,
		progressInterval: m.cfg.ProgressInterval,
		dispatchDelay:    m.cfg.DispatchDelay,
		progress: func(hashes uint64) {
			m.speedStats.totalHashes.Add(hashes)
			prometheusMinerHashes.Add(float64(hashes))
			if progressLogger != nil {
				progressLogger.LogProgress(hashes, candidate.Index, false)
			}
		},
	})

	// The events that preempt the session might have already happened
	// before it subscribed to them.
	if !keepMining() || chain.LastBlock().Index >= candidate.Index {
		s.cancel()
	}

	solved, err := s.wait(ctx)
	prometheusMinerSessionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if solved == nil {
		prometheusMinerSessionsCanceled.Inc()
		log.Debugf("Abandoned search for block %d (%d %s)", candidate.Index,
			len(candidate.Transactions), pickNoun(uint64(len(candidate.Transactions)),
				"transaction", "transactions"))
		return nil, nil
	}

	accepted, err := m.submitBlock(solved)
	if err != nil || !accepted {
		return nil, err
	}
	return solved, nil
}

// miningLoop repeatedly mines blocks while the mining flag is set.  It
// returns nil when the flag is cleared or the context is cancelled and
// returns an error when mining must halt.
func (m *CPUMiner) miningLoop(ctx context.Context) error {
	log.Info("CPU miner started")
	defer log.Info("CPU miner stopped")

	for m.enabled.Load() && ctx.Err() == nil {
		if _, err := m.mineBlock(ctx, m.enabled.Load); err != nil {
			return err
		}
	}
	return nil
}

// miningController runs the mining loop each time the mining flag is enabled
// and records the error that halted it, if any.
//
// It must be run as a goroutine.
func (m *CPUMiner) miningController(ctx context.Context) {
out:
	for {
		select {
		case <-m.startMining:
		case <-ctx.Done():
			break out
		}

		for {
			err := m.miningLoop(ctx)

			// The flag might have been set again after the loop observed
			// it cleared, in which case the loop is restarted since no
			// new start signal is sent while normal mining is active.
			m.Lock()
			if err != nil {
				log.Criticalf("CPU miner halted: %v", err)
				m.haltErr = err
				m.enabled.Store(false)
			}
			restart := err == nil && ctx.Err() == nil && m.enabled.Load()
			if !restart {
				m.normalMining = false
			}
			m.Unlock()
			if !restart {
				break
			}
		}
	}

	m.wg.Done()
}

// Run starts the CPU miner in the idle state.  It blocks until the provided
// context is cancelled.
//
// Use the SetGenerate method to start solving blocks in the normal mining
// mode.
func (m *CPUMiner) Run(ctx context.Context) {
	log.Trace("Starting CPU miner in idle state")

	m.wg.Add(3)
	go m.speedMonitor(ctx)
	go m.miningController(ctx)
	go func(ctx context.Context) {
		<-ctx.Done()
		close(m.quit)
		m.wg.Done()
	}(ctx)

	m.wg.Wait()
	log.Trace("CPU miner stopped")
}

// SetGenerate sets the mining flag.  Enabling it starts the normal mining mode
// unless it is already active and clears any error that previously halted the
// miner.  Disabling it publishes a stop request which cancels the search in
// progress, after which the mining loop exits.
//
// An error is returned when enabling the flag while the discrete mining mode
// is active.
//
// This function is safe for concurrent access.
func (m *CPUMiner) SetGenerate(enable bool) error {
	m.Lock()
	if !enable {
		wasEnabled := m.enabled.Swap(false)
		m.Unlock()
		if wasEnabled {
			m.cfg.Bus.Publish(eventbus.TopicMineStop, struct{}{})
		}
		return nil
	}
	defer m.Unlock()

	if m.discreteMining {
		return mining.MakeError(mining.ErrAlreadyMining, "server is "+
			"already discrete mining -- please wait until the existing "+
			"call completes or cancel it")
	}

	m.haltErr = nil
	m.enabled.Store(true)
	if !m.normalMining {
		m.normalMining = true
		select {
		case m.startMining <- struct{}{}:
		default:
		}
	}
	return nil
}

// Generating returns whether or not the mining flag is set.
//
// This function is safe for concurrent access.
func (m *CPUMiner) Generating() bool {
	return m.enabled.Load()
}

// IsMining returns whether or not the CPU miner is currently mining in either
// the normal or discrete mining modes.
//
// This function is safe for concurrent access.
func (m *CPUMiner) IsMining() bool {
	m.Lock()
	defer m.Unlock()

	return m.normalMining || m.discreteMining
}

// Err returns the error that halted the normal mining mode, if any.  It is
// cleared when the mining flag is enabled again.
//
// This function is safe for concurrent access.
func (m *CPUMiner) Err() error {
	m.Lock()
	defer m.Unlock()

	return m.haltErr
}

// HashesPerSecond returns the number of hashes per second the mining process
// is performing.  0 is returned if the miner is not currently mining.
//
// This function is safe for concurrent access.
func (m *CPUMiner) HashesPerSecond() float64 {
	m.Lock()
	defer m.Unlock()

	// Nothing to do if the miner is not currently mining anything.
	if !m.normalMining && !m.discreteMining {
		return 0
	}

	var hashesPerSec float64
	select {
	case hps := <-m.queryHashesPerSec:
		hashesPerSec = hps
	case <-m.quit:
	}

	return hashesPerSec
}

// GenerateNBlocks generates the requested number of blocks in the discrete
// mining mode and returns a list of the hashes of generated blocks that were
// appended to the chain.
//
// Only blocks that are successfully appended count towards the total, so more
// blocks than requested might be solved when some of them are preempted or
// rejected.  The hashes of the blocks generated so far are returned along
// with an error when mining must halt.
func (m *CPUMiner) GenerateNBlocks(ctx context.Context, n uint32) ([]*chainhash.Hash, error) {
	// Nothing to do.
	if n == 0 {
		return nil, nil
	}

	// Respond with an error if server is already mining.
	m.Lock()
	if m.normalMining {
		m.Unlock()
		return nil, mining.MakeError(mining.ErrAlreadyMining, "server is "+
			"already CPU mining -- please call `setgenerate 0` before "+
			"calling discrete `generate` commands")
	}
	if m.discreteMining {
		m.Unlock()
		return nil, mining.MakeError(mining.ErrAlreadyMining, "server is "+
			"already discrete mining -- please wait until the existing "+
			"call completes or cancel it")
	}
	m.discreteMining = true
	m.Unlock()

	log.Tracef("Generating %d blocks", n)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	var err error
	blockHashes := make([]*chainhash.Hash, 0, n)
	keepMining := func() bool { return true }
	for uint32(len(blockHashes)) < n && ctx.Err() == nil {
		var block *blockchain.Block
		block, err = m.mineBlock(ctx, keepMining)
		if err != nil {
			log.Errorf("Discrete mining halted: %v", err)
			break
		}
		if block != nil {
			hash := block.Hash
			blockHashes = append(blockHashes, &hash)
		}
	}

	// Disable discrete mining mode and return the results.
	log.Tracef("Generated %d %s", len(blockHashes),
		pickNoun(uint64(len(blockHashes)), "block", "blocks"))
	m.Lock()
	m.discreteMining = false
	m.Unlock()
	return blockHashes, err
}

// pickNoun returns the singular or plural form of a noun depending on the
// provided count.
func pickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// New returns a new instance of a CPU miner for the provided configuration
// options.
//
// Use Run to initialize the CPU miner and then either use SetGenerate to start
// the normal continuous mining mode or use GenerateNBlocks to mine a discrete
// number of blocks.
//
// See the documentation for CPUMiner type for more details.
func New(cfg *Config) *CPUMiner {
	initPrometheusMetrics()

	hashFn := cfg.HashFunc
	if hashFn == nil {
		hashFn = mining.ComputeHash
	}
	return &CPUMiner{
		cfg:               cfg,
		g:                 mining.NewCandidateGenerator(cfg.ChainParams, cfg.TimeSource),
		hashFn:            hashFn,
		startMining:       make(chan struct{}, 1),
		queryHashesPerSec: make(chan float64),
		quit:              make(chan struct{}),
	}
}
