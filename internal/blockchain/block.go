// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/decred/dcrd/blockchain/standalone/v2"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/wire"
	"lukechampine.com/blake3"
)

// Block is a block of the chain.  While a block is being mined it is also
// referred to as a candidate: its nonce and hash are mutated by the solver
// until the hash satisfies the target difficulty.
//
// The Hash field is always the proof of work hash of the header fields,
// including the nonce.  Any change to the nonce must be followed by
// recomputing the hash.
type Block struct {
	Index         int64
	PrevHash      chainhash.Hash
	MerkleRoot    chainhash.Hash
	Timestamp     time.Time
	Bits          uint32
	RewardAddress string
	Nonce         uint64
	Hash          chainhash.Hash

	Transactions []*Transaction
}

// headerFixedLen is the number of bytes of a serialized header excluding the
// variable length reward address.
//
// Index 8 + PrevHash 32 + MerkleRoot 32 + Timestamp 8 + Bits 4 + Nonce 8.
const headerFixedLen = 8 + chainhash.HashSize*2 + 8 + 4 + 8

// SerializeHeader returns the serialized header which is the pre-image of the
// proof of work hash.
func (b *Block) SerializeHeader() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, headerFixedLen+len(b.RewardAddress)+1))
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(b.Index))
	buf.Write(scratch[:])
	buf.Write(b.PrevHash[:])
	buf.Write(b.MerkleRoot[:])
	binary.LittleEndian.PutUint64(scratch[:], uint64(b.Timestamp.Unix()))
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint32(scratch[:4], b.Bits)
	buf.Write(scratch[:4])
	// Writing to a bytes.Buffer never fails.
	_ = wire.WriteVarString(buf, wire.ProtocolVersion, b.RewardAddress)
	binary.LittleEndian.PutUint64(scratch[:], b.Nonce)
	buf.Write(scratch[:])
	return buf.Bytes()
}

// PowHash returns the BLAKE3 proof of work hash of the block header.
func (b *Block) PowHash() chainhash.Hash {
	return chainhash.Hash(blake3.Sum256(b.SerializeHeader()))
}

// CalcMerkleRoot returns the merkle root of the transaction hashes of the
// block.
func (b *Block) CalcMerkleRoot() chainhash.Hash {
	if len(b.Transactions) == 0 {
		return chainhash.Hash{}
	}
	leaves := make([]chainhash.Hash, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		leaves = append(leaves, tx.TxHash())
	}
	return standalone.CalcMerkleRoot(leaves)
}

// Copy returns a deep copy of the block that shares no mutable memory with
// the original.
func (b *Block) Copy() *Block {
	cp := *b
	if b.Transactions != nil {
		cp.Transactions = make([]*Transaction, 0, len(b.Transactions))
		for _, tx := range b.Transactions {
			cp.Transactions = append(cp.Transactions, tx.Copy())
		}
	}
	return &cp
}

// Serialize encodes the full block, header and transactions, to w.
func (b *Block) Serialize(w io.Writer) error {
	if _, err := w.Write(b.SerializeHeader()); err != nil {
		return err
	}
	if _, err := w.Write(b.Hash[:]); err != nil {
		return err
	}
	pver := wire.ProtocolVersion
	if err := wire.WriteVarInt(w, pver, uint64(len(b.Transactions))); err != nil {
		return err
	}
	for _, tx := range b.Transactions {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the serialized block.
func (b *Block) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a block from r into the receiver.
func (b *Block) Deserialize(r io.Reader) error {
	pver := wire.ProtocolVersion
	var fixed [8 + chainhash.HashSize*2 + 8 + 4]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return err
	}
	rewardAddr, err := wire.ReadVarString(r, pver)
	if err != nil {
		return err
	}
	if len(rewardAddr) > maxAddressLen {
		return fmt.Errorf("reward address length %d exceeds max %d",
			len(rewardAddr), maxAddressLen)
	}
	var tail [8 + chainhash.HashSize]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return err
	}
	numTxns, err := wire.ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if numTxns > maxTxPerBlock {
		return fmt.Errorf("too many transactions to fit into a block "+
			"[count %d, max %d]", numTxns, maxTxPerBlock)
	}

	var block Block
	offset := 0
	block.Index = int64(binary.LittleEndian.Uint64(fixed[offset:]))
	offset += 8
	copy(block.PrevHash[:], fixed[offset:offset+chainhash.HashSize])
	offset += chainhash.HashSize
	copy(block.MerkleRoot[:], fixed[offset:offset+chainhash.HashSize])
	offset += chainhash.HashSize
	block.Timestamp = time.Unix(int64(binary.LittleEndian.Uint64(fixed[offset:])), 0)
	offset += 8
	block.Bits = binary.LittleEndian.Uint32(fixed[offset:])
	block.RewardAddress = rewardAddr
	block.Nonce = binary.LittleEndian.Uint64(tail[:8])
	copy(block.Hash[:], tail[8:])
	if numTxns > 0 {
		block.Transactions = make([]*Transaction, 0, numTxns)
	}
	for i := uint64(0); i < numTxns; i++ {
		var tx Transaction
		if err := tx.Deserialize(r); err != nil {
			return err
		}
		block.Transactions = append(block.Transactions, &tx)
	}
	*b = block
	return nil
}

// NewBlockFromBytes decodes a serialized block.
func NewBlockFromBytes(serialized []byte) (*Block, error) {
	var block Block
	if err := block.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, err
	}
	return &block, nil
}
