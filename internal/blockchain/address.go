// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/decred/base58"
	"github.com/decred/dcrd/crypto/blake256"
	"github.com/decred/dcrd/crypto/ripemd160"
)

// hash160Size is the size of the hash that addresses commit to.
const hash160Size = ripemd160.Size

// Hash160 calculates the hash ripemd160(blake256(b)).
func Hash160(buf []byte) []byte {
	digest := blake256.Sum256(buf)
	hasher := ripemd160.New()
	hasher.Write(digest[:])
	return hasher.Sum(nil)
}

// AddressFromPubKey returns the encoded address that commits to the provided
// serialized public key for the network.
func AddressFromPubKey(serializedPubKey []byte, params *Params) string {
	return base58.CheckEncode(Hash160(serializedPubKey), params.PubKeyHashAddrID)
}

// DecodeAddress ensures the provided address is well formed and belongs to the
// network and returns the hash it commits to.
func DecodeAddress(addr string, params *Params) ([]byte, error) {
	decoded, netID, err := base58.CheckDecode(addr)
	if err != nil {
		if err == base58.ErrChecksum {
			return nil, fmt.Errorf("address %q: checksum mismatch", addr)
		}
		return nil, fmt.Errorf("address %q: %w", addr, err)
	}
	if netID != params.PubKeyHashAddrID {
		return nil, fmt.Errorf("address %q is not for network %s", addr,
			params.Name)
	}
	if len(decoded) != hash160Size {
		return nil, fmt.Errorf("address %q: hash is %d bytes instead of %d",
			addr, len(decoded), hash160Size)
	}
	return decoded, nil
}
