// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math"
	"math/big"
	"time"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

var (
	// bigOne is 1 represented as a big.Int.  It is defined here to avoid
	// the overhead of creating it multiple times.
	bigOne = big.NewInt(1)

	// mainPowLimit is the highest proof of work value a block can have for
	// the main network.  It is the value 2^232 - 1.
	mainPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 232), bigOne)

	// testNetPowLimit is the highest proof of work value a block can have
	// for the test network.  It is the value 2^240 - 1.
	testNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 240), bigOne)

	// simNetPowLimit is the highest proof of work value a block can have for
	// the simulation and regression test networks.  It is the value
	// 2^255 - 1.
	simNetPowLimit = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
)

// Params houses the parameters that define a network.
type Params struct {
	// Name is a human-readable identifier for the network.
	Name string

	// DefaultRPCPort is the default port the RPC server listens on.
	DefaultRPCPort string

	// GenesisTimestamp is the timestamp of the genesis block.  It also
	// serves as the reference time for the difficulty schedule.
	GenesisTimestamp time.Time

	// PowLimit is the highest allowed proof of work value for a block.
	PowLimit *big.Int

	// PowLimitBits is the highest allowed proof of work value for a block in
	// compact form.  It is also the difficulty of the genesis block.
	PowLimitBits uint32

	// NoDifficultyAdjustment disables the difficulty schedule so every
	// block is mined at PowLimitBits.
	NoDifficultyAdjustment bool

	// TargetTimePerBlock is the desired amount of time to generate each
	// block.
	TargetTimePerBlock time.Duration

	// WorkDiffHalfLifeSecs is the number of seconds the difficulty schedule
	// takes to double or halve the target when blocks are behind or ahead of
	// schedule.
	WorkDiffHalfLifeSecs int64

	// MaxFutureBlockTime is the maximum amount of time a block timestamp may
	// be ahead of the local clock.
	MaxFutureBlockTime time.Duration

	// Subsidy parameters.
	BaseSubsidy              int64
	MulSubsidy               int64
	DivSubsidy               int64
	SubsidyReductionInterval int64
	BlockOneSubsidyAmount    int64

	// PubKeyHashAddrID is the network prefix for encoded addresses.
	PubKeyHashAddrID [2]byte
}

// GenesisBlock returns the genesis block of the network.  The genesis block
// commits to no transactions and is accepted without proof of work.
func (p *Params) GenesisBlock() *Block {
	block := &Block{
		Index:     0,
		PrevHash:  chainhash.Hash{},
		Timestamp: p.GenesisTimestamp,
		Bits:      p.PowLimitBits,
	}
	block.MerkleRoot = block.CalcMerkleRoot()
	block.Hash = block.PowHash()
	return block
}

// The following methods implement the standalone.SubsidyParams interface so
// the network parameters can drive the subsidy cache directly.  Only the
// proof of work portion of the subsidy is used.

// BlockOneSubsidy returns the total subsidy of block index 1.
func (p *Params) BlockOneSubsidy() int64 {
	return p.BlockOneSubsidyAmount
}

// BaseSubsidyValue returns the starting base max potential subsidy amount for
// mined blocks.
func (p *Params) BaseSubsidyValue() int64 {
	return p.BaseSubsidy
}

// SubsidyReductionMultiplier returns the multiplier to use when performing the
// exponential subsidy reduction.
func (p *Params) SubsidyReductionMultiplier() int64 {
	return p.MulSubsidy
}

// SubsidyReductionDivisor returns the divisor to use when performing the
// exponential subsidy reduction.
func (p *Params) SubsidyReductionDivisor() int64 {
	return p.DivSubsidy
}

// SubsidyReductionIntervalBlocks returns the reduction interval in number of
// blocks.
func (p *Params) SubsidyReductionIntervalBlocks() int64 {
	return p.SubsidyReductionInterval
}

// WorkSubsidyProportion returns the comparative proportion of the subsidy
// generated for creating a block.  The entire subsidy goes to the miner.
func (p *Params) WorkSubsidyProportion() uint16 {
	return 1
}

// StakeSubsidyProportion always returns zero since there is no stake subsidy.
func (p *Params) StakeSubsidyProportion() uint16 {
	return 0
}

// TreasurySubsidyProportion always returns zero since there is no treasury.
func (p *Params) TreasurySubsidyProportion() uint16 {
	return 0
}

// StakeValidationBeginHeight returns a height that is never reached since
// blocks are never voted on.
func (p *Params) StakeValidationBeginHeight() int64 {
	return math.MaxInt64
}

// VotesPerBlock returns a nominal non-zero value.  It has no effect before
// StakeValidationBeginHeight.
func (p *Params) VotesPerBlock() uint16 {
	return 1
}

// MainNetParams defines the network parameters for the main network.
var MainNetParams = Params{
	Name:                     "mainnet",
	DefaultRPCPort:           "9619",
	GenesisTimestamp:         time.Unix(1704067200, 0), // 2024-01-01 00:00:00 +0000 UTC
	PowLimit:                 mainPowLimit,
	PowLimitBits:             0x1e00ffff,
	TargetTimePerBlock:       time.Minute * 2,
	WorkDiffHalfLifeSecs:     43200, // 6 hours
	MaxFutureBlockTime:       time.Hour * 2,
	BaseSubsidy:              50 * 1e8,
	MulSubsidy:               100,
	DivSubsidy:               101,
	SubsidyReductionInterval: 6144,
	BlockOneSubsidyAmount:    50 * 1e8,
	PubKeyHashAddrID:         [2]byte{0x3f, 0x4c},
}

// TestNetParams defines the network parameters for the test network.
var TestNetParams = Params{
	Name:                     "testnet",
	DefaultRPCPort:           "19619",
	GenesisTimestamp:         time.Unix(1704067200, 0),
	PowLimit:                 testNetPowLimit,
	PowLimitBits:             0x1f00ffff,
	TargetTimePerBlock:       time.Minute * 2,
	WorkDiffHalfLifeSecs:     720, // 12 minutes
	MaxFutureBlockTime:       time.Hour * 2,
	BaseSubsidy:              50 * 1e8,
	MulSubsidy:               100,
	DivSubsidy:               101,
	SubsidyReductionInterval: 2048,
	BlockOneSubsidyAmount:    50 * 1e8,
	PubKeyHashAddrID:         [2]byte{0x0f, 0x21},
}

// SimNetParams defines the network parameters for the simulation test
// network.  The difficulty is fixed at the proof of work limit so blocks can be
// mined quickly on a CPU.
var SimNetParams = Params{
	Name:                     "simnet",
	DefaultRPCPort:           "19620",
	GenesisTimestamp:         time.Unix(1704067200, 0),
	PowLimit:                 simNetPowLimit,
	PowLimitBits:             0x207fffff,
	NoDifficultyAdjustment:   true,
	TargetTimePerBlock:       time.Second,
	WorkDiffHalfLifeSecs:     6,
	MaxFutureBlockTime:       time.Hour * 2,
	BaseSubsidy:              50 * 1e8,
	MulSubsidy:               100,
	DivSubsidy:               101,
	SubsidyReductionInterval: 128,
	BlockOneSubsidyAmount:    50 * 1e8,
	PubKeyHashAddrID:         [2]byte{0x0e, 0x91},
}

// RegNetParams defines the network parameters for the regression test
// network.
var RegNetParams = Params{
	Name:                     "regnet",
	DefaultRPCPort:           "19621",
	GenesisTimestamp:         time.Unix(1704067200, 0),
	PowLimit:                 simNetPowLimit,
	PowLimitBits:             0x207fffff,
	NoDifficultyAdjustment:   true,
	TargetTimePerBlock:       time.Second,
	WorkDiffHalfLifeSecs:     6,
	MaxFutureBlockTime:       time.Hour * 2,
	BaseSubsidy:              50 * 1e8,
	MulSubsidy:               100,
	DivSubsidy:               101,
	SubsidyReductionInterval: 128,
	BlockOneSubsidyAmount:    50 * 1e8,
	PubKeyHashAddrID:         [2]byte{0x0e, 0x01},
}
