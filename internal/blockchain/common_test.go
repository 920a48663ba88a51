// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/decred/dcrd/blockchain/standalone/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrutil/v4"
)

// testParams are the parameters used by the chain tests.  The simulation
// network has a trivial fixed difficulty and keeps its database on reload.
var testParams = &SimNetParams

// testTime is the fixed time source of the test chains.
func testTime() time.Time {
	return testParams.GenesisTimestamp.Add(time.Hour)
}

// testKey is a private key and the address that commits to it.
type testKey struct {
	priv *secp256k1.PrivateKey
	addr string
}

// newTestKey deterministically derives a key from the seed.
func newTestKey(seed byte) testKey {
	var keyBytes [32]byte
	keyBytes[0] = 0x01
	keyBytes[31] = seed
	priv := secp256k1.PrivKeyFromBytes(keyBytes[:])
	addr := AddressFromPubKey(priv.PubKey().SerializeCompressed(), testParams)
	return testKey{priv: priv, addr: addr}
}

// newTestTx returns a transaction signed by the sender key.
func newTestTx(from testKey, to string, amount, fee dcrutil.Amount, seq uint64) *Transaction {
	tx := &Transaction{
		To:        to,
		Amount:    amount,
		Fee:       fee,
		Timestamp: testTime().Unix(),
		Sequence:  seq,
	}
	tx.Sign(from.priv)
	return tx
}

// newTestChain creates a chain backed by a database in the data directory.
func newTestChain(t *testing.T, dataDir string, notify func(*Block)) *Chain {
	t.Helper()

	db, err := LoadChainDB(testParams, dataDir)
	if err != nil {
		t.Fatalf("unable to load chain database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	chain, err := New(&Config{
		DB:           db,
		Params:       testParams,
		TimeSource:   testTime,
		SigCacheSize: 100,
		Notify:       notify,
	})
	if err != nil {
		t.Fatalf("unable to create chain: %v", err)
	}
	return chain
}

// solveTestBlock sets the nonce and hash of the block to the first solution
// of its target difficulty.
func solveTestBlock(block *Block) {
	for block.Nonce = 0; ; block.Nonce++ {
		block.Hash = block.PowHash()
		err := standalone.CheckProofOfWork(&block.Hash, block.Bits,
			testParams.PowLimit)
		if err == nil {
			return
		}
	}
}

// unsolveTestBlock sets the nonce and hash of the block to the first nonce
// that does not satisfy its target difficulty.
func unsolveTestBlock(block *Block) {
	for block.Nonce = 0; ; block.Nonce++ {
		block.Hash = block.PowHash()
		err := standalone.CheckProofOfWork(&block.Hash, block.Bits,
			testParams.PowLimit)
		if err != nil {
			return
		}
	}
}

// buildTestBlock returns a solved block that extends the chain tip with the
// provided transactions and pays the reward and fees to the reward address.
func buildTestBlock(chain *Chain, rewardAddr string, txns ...*Transaction) *Block {
	tip := chain.LastBlock()
	index := tip.Index + 1
	timestamp := tip.Timestamp.Add(time.Second)
	var fees dcrutil.Amount
	for _, tx := range txns {
		fees += tx.Fee
	}
	reward := NewRewardTx(index, rewardAddr,
		chain.CalcBlockSubsidy(index)+fees, timestamp.Unix())

	block := &Block{
		Index:         index,
		PrevHash:      tip.Hash,
		Timestamp:     timestamp,
		Bits:          chain.CurrentDifficulty(),
		RewardAddress: rewardAddr,
		Transactions:  append([]*Transaction{reward}, txns...),
	}
	block.MerkleRoot = block.CalcMerkleRoot()
	solveTestBlock(block)
	return block
}
