// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"fmt"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/math/uint256"
	"github.com/grigorovich-alex/sonomacoin/internal/blockchain"
)

// HashFunc computes the proof of work hash of a block from all of its header
// fields including the nonce.  It must be deterministic.
type HashFunc func(block *blockchain.Block) chainhash.Hash

// ComputeHash is the default HashFunc.  It returns the BLAKE3 hash of the
// serialized block header.
func ComputeHash(block *blockchain.Block) chainhash.Hash {
	return block.PowHash()
}

// diffBitsToUint256 converts the compact representation used to encode
// difficulty targets to an unsigned 256-bit integer.
//
// The compact form is N = (-1^sign) * mantissa * 256^(exponent-3) where the
// most significant 8 bits are the exponent, bit 23 is the sign, and the least
// significant 23 bits are the mantissa.
func diffBitsToUint256(bits uint32) (n uint256.Uint256, isNegative bool, overflows bool) {
	mantissa := bits & 0x007fffff
	isSignBitSet := bits&0x00800000 != 0
	exponent := bits >> 24

	if mantissa == 0 {
		return n, false, false
	}
	if exponent <= 3 {
		n.SetUint64(uint64(mantissa >> (8 * (3 - exponent))))
		return n, isSignBitSet, false
	}

	// Any encoded exponent of 35 or greater overflows since 256/8 + 3 = 35.
	// Each step below that frees up another 8 bits for the mantissa.
	overflows = exponent >= 35 || (exponent >= 34 && mantissa > 0xff) ||
		(exponent >= 33 && mantissa > 0xffff)
	if overflows {
		return n, isSignBitSet, true
	}
	n.SetUint64(uint64(mantissa))
	n.Lsh(8 * (exponent - 3))
	return n, isSignBitSet, false
}

// TargetFromBits returns the target difficulty encoded by the compact bits.
// An error is returned when the target is not a positive 256-bit value.
func TargetFromBits(bits uint32) (uint256.Uint256, error) {
	target, isNegative, overflows := diffBitsToUint256(bits)
	switch {
	case isNegative:
		str := fmt.Sprintf("target difficulty bits %08x are negative", bits)
		return target, MakeError(ErrInvalidTarget, str)
	case overflows:
		str := fmt.Sprintf("target difficulty bits %08x overflow 256 bits",
			bits)
		return target, MakeError(ErrInvalidTarget, str)
	case target.IsZero():
		str := fmt.Sprintf("target difficulty bits %08x are zero", bits)
		return target, MakeError(ErrInvalidTarget, str)
	}
	return target, nil
}

// MeetsTarget returns whether the hash, treated as a little endian 256-bit
// integer, is less than or equal to the target.
func MeetsTarget(hash *chainhash.Hash, target *uint256.Uint256) bool {
	hashNum := new(uint256.Uint256).SetBytesLE((*[32]byte)(hash))
	return hashNum.LtEq(target)
}

// MeetsDifficulty returns whether the hash satisfies the target difficulty
// encoded by the compact bits.  Invalid targets are never satisfied.
//
// A higher difficulty is a smaller target and therefore admits a strictly
// smaller set of hashes.
func MeetsDifficulty(hash *chainhash.Hash, bits uint32) bool {
	target, err := TargetFromBits(bits)
	if err != nil {
		return false
	}
	return MeetsTarget(hash, &target)
}
