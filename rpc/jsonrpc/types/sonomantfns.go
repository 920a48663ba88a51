// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2015-2020 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// NOTE: This file is intended to house the RPC websocket notifications that are
// supported by sonomad.

package types

import "github.com/decred/dcrd/dcrjson/v4"

const (
	// BlockAddedNtfnMethod is the method used for notifications that a block
	// has been appended to the chain.
	BlockAddedNtfnMethod Method = "blockadded"

	// BlockAddedByMeNtfnMethod is the method used for notifications that a
	// block solved by the local miner has been appended to the chain.
	BlockAddedByMeNtfnMethod Method = "blockaddedbyme"

	// BalanceUpdatedNtfnMethod is the method used for notifications that the
	// balance of a mining address changed.
	BalanceUpdatedNtfnMethod Method = "balanceupdated"
)

// BlockAddedNtfn defines the blockadded JSON-RPC notification.
type BlockAddedNtfn struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
	Block  string `json:"block"`
}

// NewBlockAddedNtfn returns a new instance which can be used to issue a
// blockadded JSON-RPC notification.
func NewBlockAddedNtfn(hash string, height int64, block string) *BlockAddedNtfn {
	return &BlockAddedNtfn{
		Hash:   hash,
		Height: height,
		Block:  block,
	}
}

// BlockAddedByMeNtfn defines the blockaddedbyme JSON-RPC notification.
type BlockAddedByMeNtfn struct {
	Hash          string `json:"hash"`
	Height        int64  `json:"height"`
	RewardAddress string `json:"rewardaddress"`
	Nonce         uint64 `json:"nonce"`
}

// NewBlockAddedByMeNtfn returns a new instance which can be used to issue a
// blockaddedbyme JSON-RPC notification.
func NewBlockAddedByMeNtfn(hash string, height int64, rewardAddr string, nonce uint64) *BlockAddedByMeNtfn {
	return &BlockAddedByMeNtfn{
		Hash:          hash,
		Height:        height,
		RewardAddress: rewardAddr,
		Nonce:         nonce,
	}
}

// BalanceUpdatedNtfn defines the balanceupdated JSON-RPC notification.
type BalanceUpdatedNtfn struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
}

// NewBalanceUpdatedNtfn returns a new instance which can be used to issue a
// balanceupdated JSON-RPC notification.
func NewBalanceUpdatedNtfn(address string, balance float64) *BalanceUpdatedNtfn {
	return &BalanceUpdatedNtfn{
		Address: address,
		Balance: balance,
	}
}

func init() {
	// The commands in this file are only usable by websockets and are
	// notifications.
	flags := dcrjson.UFWebsocketOnly | dcrjson.UFNotification

	dcrjson.MustRegister(BlockAddedNtfnMethod, (*BlockAddedNtfn)(nil), flags)
	dcrjson.MustRegister(BlockAddedByMeNtfnMethod, (*BlockAddedByMeNtfn)(nil), flags)
	dcrjson.MustRegister(BalanceUpdatedNtfnMethod, (*BalanceUpdatedNtfn)(nil), flags)
}
