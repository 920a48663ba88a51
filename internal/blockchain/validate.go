// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrutil/v4"
)

// checkTransactionSanity performs context free checks on a regular
// transaction: amounts, destination address, and signature.
func checkTransactionSanity(tx *Transaction, txHash *chainhash.Hash, params *Params, sigCache *sigCache) error {
	if tx.IsReward() {
		return txRuleError(ErrUnexpectedReward, fmt.Sprintf("transaction "+
			"%s has no sender", txHash))
	}
	if tx.Amount <= 0 || tx.Amount > dcrutil.MaxAmount {
		str := fmt.Sprintf("transaction %s amount of %v is outside of the "+
			"valid range (0, %v]", txHash, tx.Amount,
			dcrutil.Amount(dcrutil.MaxAmount))
		return txRuleError(ErrBadTxAmount, str)
	}
	if tx.Fee < 0 || tx.Fee > dcrutil.MaxAmount ||
		tx.Amount+tx.Fee > dcrutil.MaxAmount {

		str := fmt.Sprintf("transaction %s fee of %v is invalid", txHash,
			tx.Fee)
		return txRuleError(ErrBadTxFee, str)
	}
	if _, err := DecodeAddress(tx.To, params); err != nil {
		return txRuleError(ErrBadTxAddress, fmt.Sprintf("transaction %s: %v",
			txHash, err))
	}
	return sigCache.verifyTxSignature(tx, txHash)
}

// checkBlockSanity performs context free checks on a block: it must have a
// single leading reward transaction paying the committed reward address and a
// matching merkle root.
func checkBlockSanity(block *Block, params *Params) error {
	if len(block.Transactions) == 0 {
		return ruleError(ErrNoTransactions, "block does not contain any "+
			"transactions")
	}
	if !block.Transactions[0].IsReward() {
		return ruleError(ErrFirstTxNotReward, "first transaction in block "+
			"is not the reward transaction")
	}
	for i, tx := range block.Transactions[1:] {
		if tx.IsReward() {
			str := fmt.Sprintf("block contains second reward transaction "+
				"at index %d", i+1)
			return ruleError(ErrMultipleRewards, str)
		}
	}

	reward := block.Transactions[0]
	if reward.To != block.RewardAddress {
		str := fmt.Sprintf("reward transaction pays %q instead of the block "+
			"reward address %q", reward.To, block.RewardAddress)
		return ruleError(ErrBadRewardAddress, str)
	}
	if _, err := DecodeAddress(block.RewardAddress, params); err != nil {
		return ruleError(ErrBadRewardAddress, err.Error())
	}
	if reward.Sequence != uint64(block.Index) {
		str := fmt.Sprintf("reward transaction sequence %d does not match "+
			"block index %d", reward.Sequence, block.Index)
		return ruleError(ErrBadRewardValue, str)
	}

	merkleRoot := block.CalcMerkleRoot()
	if block.MerkleRoot != merkleRoot {
		str := fmt.Sprintf("block merkle root is invalid - block header "+
			"indicates %v, but calculated value is %v", block.MerkleRoot,
			merkleRoot)
		return ruleError(ErrBadMerkleRoot, str)
	}
	return nil
}

// checkBlockContext ensures the block extends the provided tip: the index and
// previous hash link, the timestamp, and the proof of work.
func checkBlockContext(block *Block, tip *Block, params *Params, now time.Time) error {
	if block.Index != tip.Index+1 {
		str := fmt.Sprintf("block index %d does not extend the chain tip at "+
			"index %d", block.Index, tip.Index)
		return ruleError(ErrBadBlockIndex, str)
	}
	if block.PrevHash != tip.Hash {
		str := fmt.Sprintf("previous block hash %s does not match the chain "+
			"tip %s", block.PrevHash, tip.Hash)
		return ruleError(ErrBadPrevHash, str)
	}
	if block.Timestamp.Before(tip.Timestamp) {
		str := fmt.Sprintf("block timestamp of %v is before the parent "+
			"timestamp of %v", block.Timestamp, tip.Timestamp)
		return ruleError(ErrTimeTooOld, str)
	}
	maxTimestamp := now.Add(params.MaxFutureBlockTime)
	if block.Timestamp.After(maxTimestamp) {
		str := fmt.Sprintf("block timestamp of %v is too far in the future",
			block.Timestamp)
		return ruleError(ErrTimeTooNew, str)
	}
	return checkProofOfWork(params, block, calcNextRequiredDifficulty(params, tip))
}
