// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/container/lru"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// sigCache caches transaction signatures that were already verified so the
// expensive verification is not repeated when a transaction that was accepted
// to the mempool is later seen in a block.
//
// Entries are keyed by transaction hash, which commits to the sender public
// key, and hold the verified signature.  A hit therefore requires the exact
// same signature to be presented again.
type sigCache struct {
	validSigs *lru.Map[chainhash.Hash, string]
}

// newSigCache returns a signature cache that holds up to the given number of
// entries.  A limit of zero disables caching.
func newSigCache(limit uint32) *sigCache {
	if limit == 0 {
		return &sigCache{}
	}
	return &sigCache{validSigs: lru.NewMap[chainhash.Hash, string](limit)}
}

// exists returns whether the signature was already verified for the
// transaction hash.
func (c *sigCache) exists(txHash *chainhash.Hash, sig []byte) bool {
	if c.validSigs == nil {
		return false
	}
	cached, ok := c.validSigs.Get(*txHash)
	return ok && cached == string(sig)
}

// add records a verified signature.
func (c *sigCache) add(txHash *chainhash.Hash, sig []byte) {
	if c.validSigs == nil {
		return
	}
	c.validSigs.Put(*txHash, string(sig))
}

// verifyTxSignature ensures the sender public key is valid and the signature
// of the transaction verifies against it.
func (c *sigCache) verifyTxSignature(tx *Transaction, txHash *chainhash.Hash) error {
	if c.exists(txHash, tx.Signature) {
		return nil
	}

	pubKey, err := secp256k1.ParsePubKey(tx.From)
	if err != nil {
		return txRuleError(ErrBadTxPubKey, "transaction sender public key "+
			"is invalid: "+err.Error())
	}
	if len(tx.From) != secp256k1.PubKeyBytesLenCompressed {
		return txRuleError(ErrBadTxPubKey, "transaction sender public key "+
			"is not compressed")
	}
	sig, err := ecdsa.ParseDERSignature(tx.Signature)
	if err != nil {
		return txRuleError(ErrBadTxSignature, "transaction signature is "+
			"malformed: "+err.Error())
	}
	if !sig.Verify(txHash[:], pubKey) {
		return txRuleError(ErrBadTxSignature, "transaction signature "+
			"verification failed")
	}

	c.add(txHash, tx.Signature)
	return nil
}
