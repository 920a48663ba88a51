// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"sort"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v4"
)

// mempoolTx houses a transaction waiting to be mined along with metadata.
type mempoolTx struct {
	tx     *Transaction
	hash   chainhash.Hash
	sender string
	added  time.Time
	seq    uint64
}

// mempool tracks unconfirmed transactions and the amounts they will debit
// from their senders once confirmed.
//
// It is not safe for concurrent access.  The chain protects it with its own
// mutex.
type mempool struct {
	pool    map[chainhash.Hash]*mempoolTx
	pending map[string]dcrutil.Amount
	maxSize int
	nextSeq uint64
}

// newMempool returns an empty mempool that holds up to maxSize transactions.
func newMempool(maxSize int) *mempool {
	return &mempool{
		pool:    make(map[chainhash.Hash]*mempoolTx),
		pending: make(map[string]dcrutil.Amount),
		maxSize: maxSize,
	}
}

// haveTransaction returns whether the transaction is in the pool.
func (mp *mempool) haveTransaction(hash *chainhash.Hash) bool {
	_, ok := mp.pool[*hash]
	return ok
}

// add inserts a validated transaction.
func (mp *mempool) add(tx *Transaction, hash chainhash.Hash, sender string, now time.Time) {
	mp.pool[hash] = &mempoolTx{
		tx:     tx,
		hash:   hash,
		sender: sender,
		added:  now,
		seq:    mp.nextSeq,
	}
	mp.nextSeq++
	mp.pending[sender] += tx.Amount + tx.Fee
}

// remove evicts the transaction if it is in the pool.
func (mp *mempool) remove(hash *chainhash.Hash) {
	entry, ok := mp.pool[*hash]
	if !ok {
		return
	}
	delete(mp.pool, *hash)
	mp.pending[entry.sender] -= entry.tx.Amount + entry.tx.Fee
	if mp.pending[entry.sender] <= 0 {
		delete(mp.pending, entry.sender)
	}
}

// sorted returns the pool entries ordered by highest fee first and arrival
// order after that.
func (mp *mempool) sorted() []*mempoolTx {
	entries := make([]*mempoolTx, 0, len(mp.pool))
	for _, entry := range mp.pool {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].tx.Fee != entries[j].tx.Fee {
			return entries[i].tx.Fee > entries[j].tx.Fee
		}
		return entries[i].seq < entries[j].seq
	})
	return entries
}

// transactions returns deep copies of the pooled transactions in mining
// order.  A sender never has more pooled than its confirmed balance, so any
// prefix of the returned sequence is valid to include in a block.
func (mp *mempool) transactions() []*Transaction {
	entries := mp.sorted()
	txns := make([]*Transaction, 0, len(entries))
	for _, entry := range entries {
		txns = append(txns, entry.tx.Copy())
	}
	return txns
}

// prune evicts transactions that were confirmed by the provided block and any
// transactions whose sender can no longer cover them with the given balances.
// It returns the number of transactions that were evicted for insufficient
// funds.
func (mp *mempool) prune(block *Block, balanceOf func(string) dcrutil.Amount) int {
	for _, tx := range block.Transactions {
		txHash := tx.TxHash()
		mp.remove(&txHash)
	}

	var evicted int
	for sender, pending := range mp.pending {
		if pending <= balanceOf(sender) {
			continue
		}

		// Evict the newest transactions of the sender until the remainder
		// is covered.
		var senderTxns []*mempoolTx
		for _, entry := range mp.pool {
			if entry.sender == sender {
				senderTxns = append(senderTxns, entry)
			}
		}
		sort.Slice(senderTxns, func(i, j int) bool {
			return senderTxns[i].seq > senderTxns[j].seq
		})
		balance := balanceOf(sender)
		for _, entry := range senderTxns {
			if mp.pending[sender] <= balance {
				break
			}
			mp.remove(&entry.hash)
			evicted++
		}
	}
	return evicted
}
