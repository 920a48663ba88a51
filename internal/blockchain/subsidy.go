// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/decred/dcrd/blockchain/standalone/v2"
	"github.com/decred/dcrd/dcrutil/v4"
)

// SubsidyCache calculates block subsidies for a network.
type SubsidyCache struct {
	cache *standalone.SubsidyCache
}

// NewSubsidyCache returns a subsidy calculator for the network parameters.
func NewSubsidyCache(params *Params) *SubsidyCache {
	return &SubsidyCache{cache: standalone.NewSubsidyCache(params)}
}

// CalcBlockSubsidy returns the subsidy paid to the miner of the block at the
// given index.  The genesis block has no subsidy.
func (s *SubsidyCache) CalcBlockSubsidy(index int64) dcrutil.Amount {
	if index <= 0 {
		return 0
	}
	return dcrutil.Amount(s.cache.CalcWorkSubsidy(index, 0))
}
