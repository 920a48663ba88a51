// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"errors"
	"fmt"
	"time"

	"github.com/decred/dcrd/blockchain/standalone/v2"
)

// calcNextRequiredDifficulty returns the required difficulty in compact form
// for the block after the provided parent.
//
// The difficulty follows an absolutely scheduled exponentially weighted
// schedule anchored at the genesis block.  Networks that disable difficulty
// adjustment always require the proof of work limit.
func calcNextRequiredDifficulty(params *Params, parent *Block) uint32 {
	if params.NoDifficultyAdjustment || parent.Index == 0 {
		return params.PowLimitBits
	}

	targetSecs := int64(params.TargetTimePerBlock / time.Second)
	timeDelta := parent.Timestamp.Unix() - params.GenesisTimestamp.Unix()
	heightDelta := parent.Index
	return standalone.CalcASERTDiff(params.PowLimitBits, params.PowLimit,
		targetSecs, timeDelta, heightDelta, params.WorkDiffHalfLifeSecs)
}

// checkProofOfWork ensures the bits of the block match the required
// difficulty, the stored hash is the hash of the header, and the hash
// satisfies the target difficulty.
func checkProofOfWork(params *Params, block *Block, requiredBits uint32) error {
	if block.Bits != requiredBits {
		str := fmt.Sprintf("block difficulty of %08x is not the expected "+
			"value of %08x", block.Bits, requiredBits)
		return ruleError(ErrUnexpectedDifficulty, str)
	}

	powHash := block.PowHash()
	if powHash != block.Hash {
		str := fmt.Sprintf("block hash %s does not match the calculated "+
			"proof of work hash %s", block.Hash, powHash)
		return ruleError(ErrBadPowHash, str)
	}

	err := standalone.CheckProofOfWork(&powHash, block.Bits, params.PowLimit)
	if err != nil {
		kind := ErrHighHash
		if errors.Is(err, standalone.ErrUnexpectedDifficulty) {
			kind = ErrUnexpectedDifficulty
		}
		return ruleError(kind, err.Error())
	}
	return nil
}
