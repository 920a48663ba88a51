// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

// ErrorKind identifies a kind of error.  It has full support for errors.Is
// and errors.As, so the caller can directly check against an error kind
// when determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific mining Error.
const (
	// ErrInvalidTarget indicates the compact target difficulty is negative,
	// zero, or does not fit in 256 bits.
	ErrInvalidTarget = ErrorKind("ErrInvalidTarget")

	// ErrNonceSpaceExhausted indicates every nonce was tried without finding
	// a hash that satisfies the target difficulty.
	ErrNonceSpaceExhausted = ErrorKind("ErrNonceSpaceExhausted")

	// ErrWorkerPanic indicates the hash search worker terminated abnormally.
	ErrWorkerPanic = ErrorKind("ErrWorkerPanic")

	// ErrAlreadyMining indicates a request to generate a specific number of
	// blocks was made while the miner is already running.
	ErrAlreadyMining = ErrorKind("ErrAlreadyMining")

	// ErrNoMiningAddrs indicates mining was requested without any configured
	// reward addresses.
	ErrNoMiningAddrs = ErrorKind("ErrNoMiningAddrs")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// Error identifies a mining failure.  It has full support for errors.Is and
// errors.As, so the caller can ascertain the specific reason for the error by
// checking the underlying error.
type Error struct {
	Err         error
	Description string
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// MakeError creates an Error given a set of arguments.
func MakeError(kind ErrorKind, desc string) Error {
	return Error{Err: kind, Description: desc}
}
