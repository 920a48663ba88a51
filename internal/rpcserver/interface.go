// Copyright (c) 2019 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
)

// Chain represents a chain for use with the RPC server.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type Chain interface {
	// LastBlock returns the current tip of the chain.
	LastBlock() *blockchain.Block

	// CurrentDifficulty returns the compact target difficulty required for
	// the next block.
	CurrentDifficulty() uint32

	// BalanceOf returns the confirmed balance of the provided address.
	BalanceOf(addr string) dcrutil.Amount

	// AppendBlock validates the provided block and appends it to the chain.
	// Blocks that break a chain rule are rejected with a RuleError or
	// TxRuleError.
	AppendBlock(block *blockchain.Block) error

	// AddTransaction validates the provided transaction and adds it to the
	// memory pool.  It returns the hash of the accepted transaction.
	AddTransaction(tx *blockchain.Transaction) (*chainhash.Hash, error)

	// MempoolSize returns the number of transactions in the memory pool.
	MempoolSize() int
}

// CPUMiner represents a CPU miner for use with the RPC server.
//
// The interface contract requires that all of these methods are safe for
// concurrent access.
type CPUMiner interface {
	// SetGenerate enables or disables continuous mining.
	SetGenerate(enable bool) error

	// Generating returns whether or not continuous mining was requested.
	Generating() bool

	// IsMining returns whether or not the miner is currently searching for
	// a block, either continuously or on behalf of GenerateNBlocks.
	IsMining() bool

	// Err returns the error that halted the miner, if any.
	Err() error

	// HashesPerSecond returns the recent hashing rate.
	HashesPerSecond() float64

	// GenerateNBlocks mines the requested number of blocks and returns
	// their hashes.
	GenerateNBlocks(ctx context.Context, n uint32) ([]*chainhash.Hash, error)
}
