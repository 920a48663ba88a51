// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"fmt"

	"github.com/decred/dcrd/chaincfg/chainhash"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific block rule violation.
const (
	// ErrDuplicateBlock indicates a block with the same hash already
	// exists.
	ErrDuplicateBlock = ErrorKind("ErrDuplicateBlock")

	// ErrBadBlockIndex indicates the index of a block does not directly
	// follow the index of the current chain tip.
	ErrBadBlockIndex = ErrorKind("ErrBadBlockIndex")

	// ErrBadPrevHash indicates the previous hash committed to by a block
	// does not match the hash of the current chain tip.  This is the typical
	// result of submitting a block that lost the race for its index.
	ErrBadPrevHash = ErrorKind("ErrBadPrevHash")

	// ErrTimeTooOld indicates the time is before the timestamp of the parent
	// block.
	ErrTimeTooOld = ErrorKind("ErrTimeTooOld")

	// ErrTimeTooNew indicates the time is too far in the future as compared
	// the current time.
	ErrTimeTooNew = ErrorKind("ErrTimeTooNew")

	// ErrUnexpectedDifficulty indicates specified bits do not align with
	// the expected value either because it doesn't match the calculated
	// value based on difficulty rules or it is out of the valid range.
	ErrUnexpectedDifficulty = ErrorKind("ErrUnexpectedDifficulty")

	// ErrHighHash indicates the block does not hash to a value which is
	// lower than the required target difficultly.
	ErrHighHash = ErrorKind("ErrHighHash")

	// ErrBadPowHash indicates the hash stored in a block is not the hash of
	// its header.
	ErrBadPowHash = ErrorKind("ErrBadPowHash")

	// ErrBadMerkleRoot indicates the calculated merkle root does not match
	// the expected value.
	ErrBadMerkleRoot = ErrorKind("ErrBadMerkleRoot")

	// ErrNoTransactions indicates the block does not have at least one
	// transaction.  A valid block must have at least the reward transaction.
	ErrNoTransactions = ErrorKind("ErrNoTransactions")

	// ErrFirstTxNotReward indicates the first transaction in a block is not
	// the reward transaction.
	ErrFirstTxNotReward = ErrorKind("ErrFirstTxNotReward")

	// ErrMultipleRewards indicates a block contains more than one reward
	// transaction.
	ErrMultipleRewards = ErrorKind("ErrMultipleRewards")

	// ErrBadRewardValue indicates the amount of the reward transaction does
	// not match the expected subsidy plus transaction fees.
	ErrBadRewardValue = ErrorKind("ErrBadRewardValue")

	// ErrBadRewardAddress indicates the reward transaction does not pay the
	// reward address committed to by the block header.
	ErrBadRewardAddress = ErrorKind("ErrBadRewardAddress")
)

// These constants are used to identify a specific transaction rule violation.
const (
	// ErrBadTxPubKey indicates the sender public key of a transaction is not
	// a valid compressed secp256k1 public key.
	ErrBadTxPubKey = ErrorKind("ErrBadTxPubKey")

	// ErrBadTxSignature indicates the signature of a transaction does not
	// verify against its sender public key.
	ErrBadTxSignature = ErrorKind("ErrBadTxSignature")

	// ErrBadTxAddress indicates the destination address of a transaction is
	// malformed or belongs to a different network.
	ErrBadTxAddress = ErrorKind("ErrBadTxAddress")

	// ErrBadTxAmount indicates a transaction amount is non-positive or
	// exceeds the maximum allowed amount.
	ErrBadTxAmount = ErrorKind("ErrBadTxAmount")

	// ErrBadTxFee indicates a transaction fee is negative or exceeds the
	// maximum allowed amount.
	ErrBadTxFee = ErrorKind("ErrBadTxFee")

	// ErrInsufficientFunds indicates the sender of a transaction does not
	// have the balance to cover the amount and fee.
	ErrInsufficientFunds = ErrorKind("ErrInsufficientFunds")

	// ErrDuplicateTx indicates a transaction appears more than once in a
	// block or is already in the mempool.
	ErrDuplicateTx = ErrorKind("ErrDuplicateTx")

	// ErrTxAlreadyConfirmed indicates a transaction was already confirmed by
	// a block in the main chain.
	ErrTxAlreadyConfirmed = ErrorKind("ErrTxAlreadyConfirmed")

	// ErrUnexpectedReward indicates a reward transaction was provided where
	// only regular transactions are allowed.
	ErrUnexpectedReward = ErrorKind("ErrUnexpectedReward")

	// ErrMempoolFull indicates the mempool reached its maximum size.
	ErrMempoolFull = ErrorKind("ErrMempoolFull")
)

// These constants are used to identify storage and lookup failures.
const (
	// ErrUnknownBlock indicates a requested block does not exist.
	ErrUnknownBlock = ErrorKind("ErrUnknownBlock")

	// ErrDeserialize indicates stored data could not be deserialized.
	ErrDeserialize = ErrorKind("ErrDeserialize")

	// ErrChainDB indicates a general chain database error.
	ErrChainDB = ErrorKind("ErrChainDB")

	// ErrChainDBCorruption indicates the chain database is corrupt.
	ErrChainDBCorruption = ErrorKind("ErrChainDBCorruption")

	// ErrChainDBNotOpen indicates the chain database was accessed after it
	// was closed.
	ErrChainDBNotOpen = ErrorKind("ErrChainDBNotOpen")

	// ErrChainDBTxClosed indicates an attempt was made to use a database
	// snapshot or iterator after it was released.
	ErrChainDBTxClosed = ErrorKind("ErrChainDBTxClosed")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// ContextError wraps an error with additional context.  It has full support for
// errors.Is and errors.As, so the caller can ascertain the specific wrapped
// error.
//
// RawErr contains the original error in the case where an error has been
// converted.
type ContextError struct {
	Err         error
	Description string
	RawErr      error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ContextError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e ContextError) Unwrap() error {
	return e.Err
}

// contextError creates a ContextError given a set of arguments.
func contextError(kind ErrorKind, desc string) ContextError {
	return ContextError{Err: kind, Description: desc}
}

// unknownBlockError create a ContextError with the kind of error set to
// ErrUnknownBlock and a description that includes the provided hash.
func unknownBlockError(hash *chainhash.Hash) ContextError {
	str := fmt.Sprintf("block %s is not known", hash)
	return contextError(ErrUnknownBlock, str)
}

// RuleError identifies a block rule violation.  It is used to indicate that
// processing of a block failed due to one of the many validation rules.  It
// has full support for errors.Is and errors.As, so the caller can ascertain
// the specific reason for the rule violation.
type RuleError struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(kind ErrorKind, desc string) RuleError {
	return RuleError{Err: kind, Description: desc}
}

// TxRuleError identifies a transaction rule violation.  It is returned both
// when a transaction is rejected by the mempool and when a block is rejected
// because one of its transactions is invalid.
type TxRuleError struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e TxRuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e TxRuleError) Unwrap() error {
	return e.Err
}

// txRuleError creates a TxRuleError given a set of arguments.
func txRuleError(kind ErrorKind, desc string) TxRuleError {
	return TxRuleError{Err: kind, Description: desc}
}
