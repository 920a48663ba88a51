// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"testing"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/mining"
)

const (
	// toyBits encodes a target whose most significant byte is 0x0f, so a
	// toy digest satisfies it when its only byte is at most 0x0f.
	toyBits = 0x200fffff

	// waitTimeout is the maximum time tests wait for asynchronous
	// conditions.
	waitTimeout = 5 * time.Second
)

var (
	testParams     = &blockchain.RegNetParams
	testRewardAddr = blockchain.AddressFromPubKey([]byte{0x02, 0x01},
		testParams)
)

// toyHash is an 8-bit digest of the block header stored in the most
// significant byte of the hash.
func toyHash(block *blockchain.Block) chainhash.Hash {
	full := block.PowHash()
	var hash chainhash.Hash
	hash[chainhash.HashSize-1] = full[0]
	return hash
}

// unsatisfiableHash is a hash function whose hashes never satisfy toyBits.
func unsatisfiableHash(block *blockchain.Block) chainhash.Hash {
	hash := block.PowHash()
	hash[chainhash.HashSize-1] = 0xff
	return hash
}

// testCandidate returns a candidate for index 1 that extends the regression
// network genesis block and only contains the reward transaction.
func testCandidate(bits uint32) *blockchain.Block {
	genesis := testParams.GenesisBlock()
	timeSource := func() time.Time {
		return genesis.Timestamp.Add(time.Minute)
	}
	g := mining.NewCandidateGenerator(testParams, timeSource)
	return g.BuildCandidate(nil, genesis, testRewardAddr, bits)
}

// waitFor polls the condition until it holds and fails the test when it does
// not hold before the timeout.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", desc)
		}
		time.Sleep(time.Millisecond)
	}
}
