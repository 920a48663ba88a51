// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/container/apbf"
	"github.com/decred/dcrd/container/lru"
	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	// defaultBlockCacheSize is the number of recent blocks kept in memory
	// when the configuration does not specify a size.
	defaultBlockCacheSize = 128

	// defaultMaxMempoolSize is the maximum number of transactions the
	// mempool holds when the configuration does not specify a size.
	defaultMaxMempoolSize = 5000

	// maxRecentlyConfirmedTxns is the maximum number of recently confirmed
	// transactions tracked to quickly reject replays.
	maxRecentlyConfirmedTxns = 23000

	// recentlyConfirmedTxnsFPRate is the false positive rate for the APBF
	// used to track them.  A positive result is confirmed against the
	// database.
	recentlyConfirmedTxnsFPRate = 0.000001
)

// Config is a descriptor which specifies the chain instance configuration.
type Config struct {
	// DB defines the database which houses the blocks, balances, and
	// transaction index.
	//
	// This field is required.
	DB *leveldb.DB

	// Params identifies which network the chain is associated with.
	//
	// This field is required.
	Params *Params

	// TimeSource defines the time source to use when validating block
	// timestamps.  It defaults to time.Now.
	TimeSource func() time.Time

	// BlockCacheSize is the number of recent blocks to keep in memory.
	BlockCacheSize uint32

	// SigCacheSize is the number of verified transaction signatures to keep
	// in memory.
	SigCacheSize uint32

	// MaxMempoolSize is the maximum number of unconfirmed transactions.
	MaxMempoolSize int

	// Notify is invoked with every block appended to the chain, after the
	// block has been persisted and without any chain locks held.
	Notify func(block *Block)
}

// Chain provides functions for working with the chain: appending blocks,
// tracking balances, and holding unconfirmed transactions.
//
// It is safe for concurrent access.
type Chain struct {
	params       *Params
	db           *leveldb.DB
	timeSource   func() time.Time
	subsidyCache *SubsidyCache
	sigCache     *sigCache
	notify       func(*Block)

	// The following fields are protected by mtx.
	//
	// tip is the last block of the chain.  Blocks are never mutated once
	// appended.
	//
	// recentBlocks caches recently appended and fetched blocks by hash.
	//
	// recentlyConfirmedTxns tracks transactions confirmed in recent blocks.
	// Since the filter retains at least its capacity of the most recently
	// added items, a negative result is definitive as long as the total
	// number of confirmed transactions does not exceed the capacity.
	mtx                   sync.RWMutex
	tip                   *Block
	balances              map[string]dcrutil.Amount
	recentBlocks          *lru.Map[chainhash.Hash, *Block]
	recentlyConfirmedTxns *apbf.Filter
	numConfirmedTxns      uint64
	mempool               *mempool
}

// New returns a Chain instance using the provided configuration details.  A
// new database is initialized with the genesis block of the network.
func New(config *Config) (*Chain, error) {
	if config.DB == nil {
		return nil, AssertError("blockchain.New database is nil")
	}
	if config.Params == nil {
		return nil, AssertError("blockchain.New chain parameters are nil")
	}

	state, err := dbInitChain(config.DB, config.Params)
	if err != nil {
		return nil, err
	}

	timeSource := config.TimeSource
	if timeSource == nil {
		timeSource = time.Now
	}
	blockCacheSize := config.BlockCacheSize
	if blockCacheSize == 0 {
		blockCacheSize = defaultBlockCacheSize
	}
	maxMempoolSize := config.MaxMempoolSize
	if maxMempoolSize <= 0 {
		maxMempoolSize = defaultMaxMempoolSize
	}

	c := &Chain{
		params:       config.Params,
		db:           config.DB,
		timeSource:   timeSource,
		subsidyCache: NewSubsidyCache(config.Params),
		sigCache:     newSigCache(config.SigCacheSize),
		notify:       config.Notify,
		tip:          state.tip,
		balances:     state.balances,
		recentBlocks: lru.NewMap[chainhash.Hash, *Block](blockCacheSize),
		recentlyConfirmedTxns: apbf.NewFilter(maxRecentlyConfirmedTxns,
			recentlyConfirmedTxnsFPRate),
		mempool: newMempool(maxMempoolSize),
	}
	c.recentBlocks.Put(state.tip.Hash, state.tip)
	c.numConfirmedTxns, err = dbLoadConfirmedTxns(c.db,
		c.recentlyConfirmedTxns, maxRecentlyConfirmedTxns)
	if err != nil {
		return nil, err
	}

	log.Infof("Chain state (index %d, hash %s, bits %08x)", c.tip.Index,
		c.tip.Hash, c.tip.Bits)
	return c, nil
}

// Params returns the network parameters of the chain.
func (c *Chain) Params() *Params {
	return c.params
}

// LastBlock returns the current tip of the chain.  The returned block MUST
// NOT be modified.
func (c *Chain) LastBlock() *Block {
	c.mtx.RLock()
	tip := c.tip
	c.mtx.RUnlock()
	return tip
}

// CurrentDifficulty returns the difficulty in compact form required for the
// next block.
func (c *Chain) CurrentDifficulty() uint32 {
	return calcNextRequiredDifficulty(c.params, c.LastBlock())
}

// CalcBlockSubsidy returns the subsidy paid to the miner of the block at the
// given index.
func (c *Chain) CalcBlockSubsidy(index int64) dcrutil.Amount {
	return c.subsidyCache.CalcBlockSubsidy(index)
}

// BalanceOf returns the confirmed balance of the address.
func (c *Chain) BalanceOf(addr string) dcrutil.Amount {
	c.mtx.RLock()
	balance := c.balances[addr]
	c.mtx.RUnlock()
	return balance
}

// BlockByIndex returns the main chain block at the given index.
func (c *Chain) BlockByIndex(index int64) (*Block, error) {
	c.mtx.RLock()
	tip := c.tip
	c.mtx.RUnlock()
	if index < 0 || index > tip.Index {
		str := fmt.Sprintf("no block at index %d exists", index)
		return nil, contextError(ErrUnknownBlock, str)
	}
	if index == tip.Index {
		return tip, nil
	}

	block, err := dbFetchBlock(c.db, index)
	if err != nil {
		return nil, err
	}
	if block == nil {
		str := fmt.Sprintf("block at index %d is missing", index)
		return nil, contextError(ErrChainDBCorruption, str)
	}
	return block, nil
}

// BlockByHash returns the main chain block with the given hash.
func (c *Chain) BlockByHash(hash *chainhash.Hash) (*Block, error) {
	c.mtx.RLock()
	block, ok := c.recentBlocks.Get(*hash)
	c.mtx.RUnlock()
	if ok {
		return block, nil
	}

	index, err := dbFetchBlockIndex(c.db, hash)
	if err != nil {
		return nil, err
	}
	block, err = c.BlockByIndex(index)
	if err != nil {
		return nil, err
	}
	c.mtx.Lock()
	c.recentBlocks.Put(block.Hash, block)
	c.mtx.Unlock()
	return block, nil
}

// txConfirmed returns whether the transaction was already confirmed.  The
// recently confirmed filter is consulted first so the database is only hit
// for likely replays.
//
// This function MUST be called with the chain lock held (for reads).
func (c *Chain) txConfirmed(txHash *chainhash.Hash) (bool, error) {
	if !c.recentlyConfirmedTxns.Contains(txHash[:]) &&
		c.numConfirmedTxns <= maxRecentlyConfirmedTxns {

		return false, nil
	}
	return dbTxConfirmed(c.db, txHash)
}

// AppendBlock validates the block against the current tip and, when valid,
// appends it to the chain, credits the balances it modifies, and removes its
// transactions from the mempool.
//
// Rule violations are returned as RuleError for problems with the block
// itself and TxRuleError for problems with one of its transactions.  Any
// other error indicates a storage failure.
func (c *Chain) AppendBlock(block *Block) error {
	c.mtx.Lock()
	err := c.connectBlock(block)
	c.mtx.Unlock()
	if err != nil {
		return err
	}

	log.Infof("Appended block %s (index %d, %d %s)", block.Hash, block.Index,
		len(block.Transactions), pickNoun(len(block.Transactions),
			"transaction", "transactions"))

	if c.notify != nil {
		c.notify(block)
	}
	return nil
}

// connectBlock performs all validation of the block and persists it.
//
// This function MUST be called with the chain lock held (for writes).
func (c *Chain) connectBlock(block *Block) error {
	if c.recentBlocks.Exists(block.Hash) {
		str := fmt.Sprintf("already have block %s", block.Hash)
		return ruleError(ErrDuplicateBlock, str)
	}
	if err := checkBlockSanity(block, c.params); err != nil {
		return err
	}
	if err := checkBlockContext(block, c.tip, c.params, c.timeSource()); err != nil {
		return err
	}

	// Apply the regular transactions to a view of the modified balances.
	view := make(map[string]dcrutil.Amount)
	balanceOf := func(addr string) dcrutil.Amount {
		if balance, ok := view[addr]; ok {
			return balance
		}
		return c.balances[addr]
	}
	seen := make(map[chainhash.Hash]struct{}, len(block.Transactions))
	var fees dcrutil.Amount
	for _, tx := range block.Transactions[1:] {
		txHash := tx.TxHash()
		if _, ok := seen[txHash]; ok {
			str := fmt.Sprintf("block contains duplicate transaction %s",
				txHash)
			return txRuleError(ErrDuplicateTx, str)
		}
		seen[txHash] = struct{}{}

		err := checkTransactionSanity(tx, &txHash, c.params, c.sigCache)
		if err != nil {
			return err
		}
		confirmed, err := c.txConfirmed(&txHash)
		if err != nil {
			return err
		}
		if confirmed {
			str := fmt.Sprintf("transaction %s is already confirmed", txHash)
			return txRuleError(ErrTxAlreadyConfirmed, str)
		}

		sender := AddressFromPubKey(tx.From, c.params)
		debit := tx.Amount + tx.Fee
		if balanceOf(sender) < debit {
			str := fmt.Sprintf("transaction %s spends %v from %s which only "+
				"has %v", txHash, debit, sender, balanceOf(sender))
			return txRuleError(ErrInsufficientFunds, str)
		}
		view[sender] = balanceOf(sender) - debit
		view[tx.To] = balanceOf(tx.To) + tx.Amount
		fees += tx.Fee
	}

	reward := block.Transactions[0]
	wantReward := c.subsidyCache.CalcBlockSubsidy(block.Index) + fees
	if reward.Amount != wantReward {
		str := fmt.Sprintf("reward transaction pays %v instead of the "+
			"expected %v", reward.Amount, wantReward)
		return ruleError(ErrBadRewardValue, str)
	}
	view[reward.To] = balanceOf(reward.To) + reward.Amount

	if err := dbStoreBlock(c.db, block, view); err != nil {
		return err
	}

	// The block is persisted, so update the in-memory state to match.
	for addr, balance := range view {
		c.balances[addr] = balance
	}
	for _, tx := range block.Transactions {
		txHash := tx.TxHash()
		c.recentlyConfirmedTxns.Add(txHash[:])
	}
	c.numConfirmedTxns += uint64(len(block.Transactions))
	c.tip = block
	c.recentBlocks.Put(block.Hash, block)
	evicted := c.mempool.prune(block, func(addr string) dcrutil.Amount {
		return c.balances[addr]
	})
	if evicted > 0 {
		log.Debugf("Evicted %d unconfirmed %s no longer covered by their "+
			"sender balance", evicted, pickNoun(evicted, "transaction",
			"transactions"))
	}
	return nil
}

// AddTransaction validates the transaction and adds it to the mempool.  The
// sender must be able to cover the transaction in addition to all of its
// other unconfirmed transactions.
func (c *Chain) AddTransaction(tx *Transaction) (*chainhash.Hash, error) {
	txHash := tx.TxHash()
	if err := checkTransactionSanity(tx, &txHash, c.params, c.sigCache); err != nil {
		return nil, err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.mempool.haveTransaction(&txHash) {
		str := fmt.Sprintf("already have transaction %s", txHash)
		return nil, txRuleError(ErrDuplicateTx, str)
	}
	confirmed, err := c.txConfirmed(&txHash)
	if err != nil {
		return nil, err
	}
	if confirmed {
		str := fmt.Sprintf("transaction %s is already confirmed", txHash)
		return nil, txRuleError(ErrTxAlreadyConfirmed, str)
	}
	if len(c.mempool.pool) >= c.mempool.maxSize {
		str := fmt.Sprintf("mempool is full (%d transactions)",
			len(c.mempool.pool))
		return nil, txRuleError(ErrMempoolFull, str)
	}

	sender := AddressFromPubKey(tx.From, c.params)
	debit := tx.Amount + tx.Fee
	available := c.balances[sender] - c.mempool.pending[sender]
	if available < debit {
		str := fmt.Sprintf("transaction %s spends %v from %s which only has "+
			"%v available", txHash, debit, sender, available)
		return nil, txRuleError(ErrInsufficientFunds, str)
	}

	c.mempool.add(tx.Copy(), txHash, sender, c.timeSource())
	log.Debugf("Accepted transaction %s (pool size %d)", txHash,
		len(c.mempool.pool))
	return &txHash, nil
}

// MempoolTransactions returns a snapshot of the unconfirmed transactions in
// the order they should be mined.
func (c *Chain) MempoolTransactions() []*Transaction {
	c.mtx.RLock()
	txns := c.mempool.transactions()
	c.mtx.RUnlock()
	return txns
}

// MempoolSize returns the number of unconfirmed transactions.
func (c *Chain) MempoolSize() int {
	c.mtx.RLock()
	n := len(c.mempool.pool)
	c.mtx.RUnlock()
	return n
}

// IsRuleError returns whether the error is a block or transaction rule
// violation as opposed to an unexpected failure.
func IsRuleError(err error) bool {
	var rErr RuleError
	var tErr TxRuleError
	return errors.As(err, &rErr) || errors.As(err, &tErr)
}

// pickNoun returns the singular or plural form of a noun depending on the count
// n.
func pickNoun(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
