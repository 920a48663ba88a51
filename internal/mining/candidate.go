// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"time"

	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
)

// CandidateGenerator builds block candidates that extend a chain tip.
type CandidateGenerator struct {
	subsidyCache *blockchain.SubsidyCache
	timeSource   func() time.Time
}

// NewCandidateGenerator returns a candidate generator for the network.  A nil
// time source defaults to time.Now.
func NewCandidateGenerator(params *blockchain.Params, timeSource func() time.Time) *CandidateGenerator {
	if timeSource == nil {
		timeSource = time.Now
	}
	return &CandidateGenerator{
		subsidyCache: blockchain.NewSubsidyCache(params),
		timeSource:   timeSource,
	}
}

// BuildCandidate returns a new block that extends prev with the provided
// transactions.  A reward transaction paying the subsidy and the fees of all
// transactions to rewardAddr is prepended.
//
// The returned candidate starts at nonce zero and its hash is already set to
// the hash of its header.
func (g *CandidateGenerator) BuildCandidate(txns []*blockchain.Transaction, prev *blockchain.Block, rewardAddr string, bits uint32) *blockchain.Block {
	// The timestamp is truncated to one second precision and may never be
	// before the parent.
	timestamp := time.Unix(g.timeSource().Unix(), 0)
	if timestamp.Before(prev.Timestamp) {
		timestamp = prev.Timestamp
	}

	index := prev.Index + 1
	var fees dcrutil.Amount
	for _, tx := range txns {
		fees += tx.Fee
	}
	reward := g.subsidyCache.CalcBlockSubsidy(index) + fees

	blockTxns := make([]*blockchain.Transaction, 0, len(txns)+1)
	blockTxns = append(blockTxns, blockchain.NewRewardTx(index, rewardAddr,
		reward, timestamp.Unix()))
	blockTxns = append(blockTxns, txns...)

	block := &blockchain.Block{
		Index:         index,
		PrevHash:      prev.Hash,
		Timestamp:     timestamp,
		Bits:          bits,
		RewardAddress: rewardAddr,
		Transactions:  blockTxns,
	}
	block.MerkleRoot = block.CalcMerkleRoot()
	block.Hash = ComputeHash(block)
	return block
}
