// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/eventbus"
	"github.com/grigorovich-alex/sonomacoin/internal/mining"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// mockChain is a chain that accepts every block unless an append error is
// queued.  Appended blocks are announced on the bus like the real chain does.
type mockChain struct {
	bus *eventbus.Bus

	mtx         sync.Mutex
	tip         *blockchain.Block
	appendErrs  []error
	appendCalls int
	appended    []*blockchain.Block
	balances    map[string]dcrutil.Amount
}

func newMockChain(bus *eventbus.Bus, appendErrs ...error) *mockChain {
	return &mockChain{
		bus:        bus,
		tip:        testParams.GenesisBlock(),
		appendErrs: appendErrs,
		balances:   make(map[string]dcrutil.Amount),
	}
}

func (c *mockChain) MempoolTransactions() []*blockchain.Transaction {
	return nil
}

func (c *mockChain) LastBlock() *blockchain.Block {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.tip
}

func (c *mockChain) CurrentDifficulty() uint32 {
	return toyBits
}

func (c *mockChain) RewardAddress() string {
	return testRewardAddr
}

func (c *mockChain) AppendBlock(block *blockchain.Block) error {
	c.mtx.Lock()
	c.appendCalls++
	if len(c.appendErrs) > 0 {
		err := c.appendErrs[0]
		c.appendErrs = c.appendErrs[1:]
		if err != nil {
			c.mtx.Unlock()
			return err
		}
	}
	c.tip = block
	c.appended = append(c.appended, block)
	c.balances[block.RewardAddress] += block.Transactions[0].Amount
	c.mtx.Unlock()

	c.bus.Publish(eventbus.TopicBlockAdded, block)
	return nil
}

func (c *mockChain) BalanceOf(addr string) dcrutil.Amount {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.balances[addr]
}

// numAppendCalls returns the number of append attempts.
func (c *mockChain) numAppendCalls() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.appendCalls
}

// appendedBlocks returns the accepted blocks.
func (c *mockChain) appendedBlocks() []*blockchain.Block {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]*blockchain.Block(nil), c.appended...)
}

// extendExternally appends a block built by another party on the current tip.
func (c *mockChain) extendExternally() {
	tip := c.LastBlock()
	block := &blockchain.Block{
		Index:         tip.Index + 1,
		PrevHash:      tip.Hash,
		Timestamp:     tip.Timestamp,
		Bits:          toyBits,
		RewardAddress: "external",
		Transactions: []*blockchain.Transaction{
			blockchain.NewRewardTx(tip.Index+1, "external", 1, 0),
		},
	}
	block.Hash = toyHash(block)
	if err := c.AppendBlock(block); err != nil {
		panic(err)
	}
}

// runTestMiner creates a miner for the chain and runs it until the test ends.
func runTestMiner(t *testing.T, chain *mockChain, hashFn mining.HashFunc) *CPUMiner {
	t.Helper()

	miner := New(&Config{
		ChainParams:      testParams,
		Chain:            chain,
		Bus:              chain.bus,
		HashFunc:         hashFn,
		ProgressInterval: 16,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		miner.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return miner
}

// TestGenerateNBlocks ensures the discrete mining mode appends the requested
// number of blocks and announces each of them along with the reward balance.
func TestGenerateNBlocks(t *testing.T) {
	bus := eventbus.New()
	byMeSub := bus.Subscribe(eventbus.TopicBlockAddedByMe, 10)
	defer byMeSub.Stop()
	balanceSub := bus.Subscribe(eventbus.TopicBalanceUpdated, 10)
	defer balanceSub.Stop()

	chain := newMockChain(bus)
	miner := runTestMiner(t, chain, toyHash)

	const numBlocks = 3
	hashes, err := miner.GenerateNBlocks(context.Background(), numBlocks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hashes) != numBlocks {
		t.Fatalf("unexpected number of hashes: got %d, want %d", len(hashes),
			numBlocks)
	}
	if miner.IsMining() {
		t.Fatal("miner still mining after discrete generation")
	}

	blocks := chain.appendedBlocks()
	var wantBalance dcrutil.Amount
	for i, block := range blocks {
		if block.Index != int64(i+1) {
			t.Fatalf("block %d has index %d", i, block.Index)
		}
		if *hashes[i] != block.Hash {
			t.Fatalf("block %d hash mismatch: got %v, want %v", i,
				*hashes[i], block.Hash)
		}
		hash := toyHash(block)
		if hash != block.Hash || !mining.MeetsDifficulty(&hash, toyBits) {
			t.Fatalf("block %d has an invalid proof of work: %s", i,
				spew.Sdump(block))
		}
		wantBalance += block.Transactions[0].Amount

		announced := (<-byMeSub.C()).(*blockchain.Block)
		if announced.Hash != block.Hash {
			t.Fatalf("announced block %v, want %v", announced.Hash,
				block.Hash)
		}
		update := (<-balanceSub.C()).(eventbus.BalanceUpdate)
		if update.Address != testRewardAddr {
			t.Fatalf("balance update for %q, want %q", update.Address,
				testRewardAddr)
		}
	}
	if got := chain.BalanceOf(testRewardAddr); got != wantBalance {
		t.Fatalf("unexpected balance: got %v, want %v", got, wantBalance)
	}
}

// TestRetryAfterRuleError ensures blocks rejected for violating the rules are
// recorded, do not halt the miner, and that it commits a block on the next
// attempt.
func TestRetryAfterRuleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{{
		name: "invalid block",
		err: blockchain.RuleError{
			Err:         blockchain.ErrBadMerkleRoot,
			Description: "merkle root mismatch",
		},
	}, {
		name: "invalid transaction",
		err: blockchain.TxRuleError{
			Err:         blockchain.ErrInsufficientFunds,
			Description: "insufficient funds",
		},
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := eventbus.New()
			byMeSub := bus.Subscribe(eventbus.TopicBlockAddedByMe, 10)
			defer byMeSub.Stop()

			chain := newMockChain(bus, test.err)
			miner := runTestMiner(t, chain, toyHash)
			rejected := testutil.ToFloat64(prometheusMinerBlocksRejected)
			if err := miner.SetGenerate(true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			block := (<-byMeSub.C()).(*blockchain.Block)
			if err := miner.SetGenerate(false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			waitFor(t, "miner to stop", func() bool { return !miner.IsMining() })

			if block.Index != 1 {
				t.Fatalf("unexpected block index: got %d, want 1",
					block.Index)
			}
			if n := chain.numAppendCalls(); n < 2 {
				t.Fatalf("unexpected number of appends: got %d, want >= 2", n)
			}
			if err := miner.Err(); err != nil {
				t.Fatalf("miner halted: %v", err)
			}
			got := testutil.ToFloat64(prometheusMinerBlocksRejected) - rejected
			if got != 1 {
				t.Fatalf("unexpected number of recorded rejections: got %v, "+
					"want 1", got)
			}
		})
	}
}

// TestFatalAppendError ensures an unrecognized append error halts the miner
// visibly and that the miner can be restarted.
func TestFatalAppendError(t *testing.T) {
	errDatabase := errors.New("database failure")
	bus := eventbus.New()
	chain := newMockChain(bus, errDatabase)
	miner := runTestMiner(t, chain, toyHash)

	if err := miner.SetGenerate(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "miner to halt", func() bool { return miner.Err() != nil })
	waitFor(t, "miner to stop", func() bool { return !miner.IsMining() })

	if err := miner.Err(); !errors.Is(err, errDatabase) {
		t.Fatalf("unexpected halt error: got %v, want %v", err, errDatabase)
	}
	if miner.Generating() {
		t.Fatal("mining flag still set after halting")
	}
	if n := len(chain.appendedBlocks()); n != 0 {
		t.Fatalf("unexpected number of blocks appended: %d", n)
	}

	// Restarting clears the halt error and mines again.
	byMeSub := bus.Subscribe(eventbus.TopicBlockAddedByMe, 10)
	defer byMeSub.Stop()
	if err := miner.SetGenerate(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := miner.Err(); err != nil {
		t.Fatalf("halt error not cleared: %v", err)
	}
	<-byMeSub.C()
	if err := miner.SetGenerate(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "miner to stop", func() bool { return !miner.IsMining() })
}

// TestSetGenerateStop ensures clearing the mining flag cancels the search in
// progress and stops the mining loop without appending anything.
func TestSetGenerateStop(t *testing.T) {
	bus := eventbus.New()
	chain := newMockChain(bus)
	hashFn, started, _ := startedHashFunc()
	miner := runTestMiner(t, chain, hashFn)

	if err := miner.SetGenerate(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started
	if !miner.IsMining() || !miner.Generating() {
		t.Fatal("miner is not mining")
	}

	if err := miner.SetGenerate(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "miner to stop", func() bool { return !miner.IsMining() })

	if n := chain.numAppendCalls(); n != 0 {
		t.Fatalf("unexpected number of appends: %d", n)
	}
	for _, topic := range []eventbus.Topic{eventbus.TopicBlockAdded,
		eventbus.TopicMineStop} {

		if n := bus.NumSubscribers(topic); n != 0 {
			t.Fatalf("%d %s subscribers remain after stopping", n, topic)
		}
	}
	if miner.HashesPerSecond() != 0 {
		t.Fatal("nonzero hash rate while not mining")
	}
}

// TestPreemptionRestartsOnNewTip ensures a block appended by another party
// cancels the search and the miner moves on to the new tip.
func TestPreemptionRestartsOnNewTip(t *testing.T) {
	bus := eventbus.New()
	chain := newMockChain(bus)

	var mtx sync.Mutex
	searched := make(map[int64]struct{})
	searchedNext := make(chan struct{})
	var once sync.Once
	hashFn := func(block *blockchain.Block) chainhash.Hash {
		mtx.Lock()
		searched[block.Index] = struct{}{}
		mtx.Unlock()
		if block.Index == 2 {
			once.Do(func() { close(searchedNext) })
		}
		return unsatisfiableHash(block)
	}
	isSearched := func(index int64) bool {
		mtx.Lock()
		defer mtx.Unlock()
		_, ok := searched[index]
		return ok
	}

	miner := runTestMiner(t, chain, hashFn)
	if err := miner.SetGenerate(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "search for block 1", func() bool { return isSearched(1) })

	chain.extendExternally()
	<-searchedNext

	if err := miner.SetGenerate(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "miner to stop", func() bool { return !miner.IsMining() })
	if n := chain.numAppendCalls(); n != 1 {
		t.Fatalf("unexpected number of appends: got %d, want 1", n)
	}
}

// TestMiningModesExclusive ensures the discrete mining mode cannot be started
// while the normal mode is active.
func TestMiningModesExclusive(t *testing.T) {
	bus := eventbus.New()
	chain := newMockChain(bus)
	hashFn, started, _ := startedHashFunc()
	miner := runTestMiner(t, chain, hashFn)

	if err := miner.SetGenerate(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started

	_, err := miner.GenerateNBlocks(context.Background(), 1)
	if !errors.Is(err, mining.ErrAlreadyMining) {
		t.Fatalf("unexpected error: got %v, want %v", err,
			mining.ErrAlreadyMining)
	}

	if err := miner.SetGenerate(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, "miner to stop", func() bool { return !miner.IsMining() })
}
