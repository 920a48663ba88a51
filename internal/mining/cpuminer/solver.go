// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"context"
	"fmt"
	"math"

	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
	"github.com/grigorovich-alex/sonomacoin/internal/mining"
)

// defaultProgressInterval is the number of hashes between progress reports
// from a hash search.  It also bounds how many hashes are computed after the
// search is cancelled.
const defaultProgressInterval = 100000

// solveBlock searches for a nonce that makes the block hash satisfy the target
// difficulty encoded by bits.  The search starts at the current nonce of the
// block and visits every nonce in increasing order.  The block is modified in
// place, so the caller must provide a private copy that nothing else accesses.
//
// Every interval hashes the number of completed hashes is passed to report and
// the context is checked for cancellation.  Hashes remaining after the final
// complete interval are reported before the nonce space is declared
// exhausted.  The report function must not block.
//
// The solved block is returned when a solution is found.  A nil block and
// error are returned when the context is cancelled first.
func solveBlock(ctx context.Context, block *blockchain.Block, bits uint32, hashFn mining.HashFunc, interval uint64, report func(hashes uint64)) (*blockchain.Block, error) {
	target, err := mining.TargetFromBits(bits)
	if err != nil {
		return nil, err
	}
	if interval == 0 {
		interval = defaultProgressInterval
	}
	if report == nil {
		report = func(uint64) {}
	}
	if ctx.Err() != nil {
		return nil, nil
	}

	// Note that the break condition is placed at the end of the loop body
	// so the nonce does not wrap back around to zero.
	var hashesCompleted uint64
	for nonce := block.Nonce; ; nonce++ {
		block.Nonce = nonce
		block.Hash = hashFn(block)
		hashesCompleted++

		if mining.MeetsTarget(&block.Hash, &target) {
			report(hashesCompleted)
			return block, nil
		}

		if hashesCompleted == interval {
			report(hashesCompleted)
			hashesCompleted = 0

			select {
			case <-ctx.Done():
				return nil, nil
			default:
			}
		}

		if nonce == math.MaxUint64 {
			break
		}
	}
	if hashesCompleted > 0 {
		report(hashesCompleted)
	}

	str := fmt.Sprintf("no nonce satisfies target difficulty %08x for "+
		"block %d", bits, block.Index)
	return nil, mining.MakeError(mining.ErrNonceSpaceExhausted, str)
}
