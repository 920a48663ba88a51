// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/decred/dcrd/wire"
)

const (
	// maxAddressLen is the maximum length of an encoded address accepted
	// when deserializing.
	maxAddressLen = 64

	// maxSignatureLen is the maximum length of a DER encoded signature.
	maxSignatureLen = 72

	// maxTxPerBlock is the maximum number of transactions a serialized block
	// may claim to hold.
	maxTxPerBlock = 65536
)

// Transaction is a transfer of value between two addresses.
//
// The reward transaction of a block has no sender and no signature and pays
// the block subsidy plus all transaction fees to the reward address.  Its
// sequence is the index of the block that contains it so every reward
// transaction has a unique hash.
type Transaction struct {
	// From is the compressed public key of the sender.  It is empty for a
	// reward transaction.
	From []byte

	// To is the encoded address of the recipient.
	To string

	Amount dcrutil.Amount
	Fee    dcrutil.Amount

	// Timestamp is the unix time the sender created the transaction.
	Timestamp int64

	// Sequence distinguishes otherwise identical transactions.
	Sequence uint64

	// Signature is the DER encoded signature of the transaction hash by the
	// sender.
	Signature []byte
}

// IsReward returns whether the transaction is a reward transaction.
func (tx *Transaction) IsReward() bool {
	return len(tx.From) == 0
}

// serializeUnsigned writes the fields committed to by the transaction hash.
func (tx *Transaction) serializeUnsigned(w io.Writer) error {
	pver := wire.ProtocolVersion
	if err := wire.WriteVarBytes(w, pver, tx.From); err != nil {
		return err
	}
	if err := wire.WriteVarString(w, pver, tx.To); err != nil {
		return err
	}
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(tx.Amount))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(tx.Fee))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(tx.Timestamp))
	binary.LittleEndian.PutUint64(buf[24:32], tx.Sequence)
	_, err := w.Write(buf[:])
	return err
}

// Serialize encodes the transaction to w.
func (tx *Transaction) Serialize(w io.Writer) error {
	if err := tx.serializeUnsigned(w); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, wire.ProtocolVersion, tx.Signature)
}

// Bytes returns the serialized transaction.
func (tx *Transaction) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize decodes a transaction from r into the receiver.
func (tx *Transaction) Deserialize(r io.Reader) error {
	pver := wire.ProtocolVersion
	from, err := wire.ReadVarBytes(r, pver, secp256k1.PubKeyBytesLenCompressed,
		"pubkey")
	if err != nil {
		return err
	}
	to, err := wire.ReadVarString(r, pver)
	if err != nil {
		return err
	}
	if len(to) > maxAddressLen {
		return fmt.Errorf("address length %d exceeds max %d", len(to),
			maxAddressLen)
	}
	var buf [32]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	sig, err := wire.ReadVarBytes(r, pver, maxSignatureLen, "signature")
	if err != nil {
		return err
	}

	if len(from) == 0 {
		from = nil
	}
	if len(sig) == 0 {
		sig = nil
	}
	*tx = Transaction{
		From:      from,
		To:        to,
		Amount:    dcrutil.Amount(binary.LittleEndian.Uint64(buf[0:8])),
		Fee:       dcrutil.Amount(binary.LittleEndian.Uint64(buf[8:16])),
		Timestamp: int64(binary.LittleEndian.Uint64(buf[16:24])),
		Sequence:  binary.LittleEndian.Uint64(buf[24:32]),
		Signature: sig,
	}
	return nil
}

// TxHash returns the hash of the transaction.  The signature is not committed
// to since it signs the hash itself.
func (tx *Transaction) TxHash() chainhash.Hash {
	var buf bytes.Buffer
	// Writing to a bytes.Buffer never fails.
	_ = tx.serializeUnsigned(&buf)
	return chainhash.HashH(buf.Bytes())
}

// Sign signs the transaction with the private key and sets the sender to the
// associated public key.
func (tx *Transaction) Sign(privKey *secp256k1.PrivateKey) {
	tx.From = privKey.PubKey().SerializeCompressed()
	hash := tx.TxHash()
	tx.Signature = ecdsa.Sign(privKey, hash[:]).Serialize()
}

// Copy returns a deep copy of the transaction.
func (tx *Transaction) Copy() *Transaction {
	cp := *tx
	if tx.From != nil {
		cp.From = append([]byte(nil), tx.From...)
	}
	if tx.Signature != nil {
		cp.Signature = append([]byte(nil), tx.Signature...)
	}
	return &cp
}

// NewRewardTx returns the reward transaction that pays the provided amount to
// the reward address for the block at the given index.
func NewRewardTx(index int64, rewardAddr string, amount dcrutil.Amount, timestamp int64) *Transaction {
	return &Transaction{
		To:        rewardAddr,
		Amount:    amount,
		Timestamp: timestamp,
		Sequence:  uint64(index),
	}
}
