// Copyright (c) 2014-2015 The btcsuite developers
// Copyright (c) 2015-2019 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package types

import (
	"github.com/decred/dcrd/dcrjson/v4"
	chainjson "github.com/decred/dcrd/rpc/jsonrpc/types/v4"
)

// Method is the type used to register method and parameter pairs with dcrjson.
// It is the same type dcrd uses so the commands share a single registry.
type Method = chainjson.Method

// GetBalanceCmd defines the getbalance JSON-RPC command.
type GetBalanceCmd struct {
	Address string
}

// NewGetBalanceCmd returns a new instance which can be used to issue a
// getbalance JSON-RPC command.
func NewGetBalanceCmd(address string) *GetBalanceCmd {
	return &GetBalanceCmd{Address: address}
}

// GetMinerStatusCmd defines the getminerstatus JSON-RPC command.
type GetMinerStatusCmd struct{}

// NewGetMinerStatusCmd returns a new instance which can be used to issue a
// getminerstatus JSON-RPC command.
func NewGetMinerStatusCmd() *GetMinerStatusCmd {
	return &GetMinerStatusCmd{}
}

// NotifyBalanceCmd defines the notifybalance JSON-RPC command.
type NotifyBalanceCmd struct{}

// NewNotifyBalanceCmd returns a new instance which can be used to issue a
// notifybalance JSON-RPC command.
func NewNotifyBalanceCmd() *NotifyBalanceCmd {
	return &NotifyBalanceCmd{}
}

// StopNotifyBalanceCmd defines the stopnotifybalance JSON-RPC command.
type StopNotifyBalanceCmd struct{}

// NewStopNotifyBalanceCmd returns a new instance which can be used to issue a
// stopnotifybalance JSON-RPC command.
func NewStopNotifyBalanceCmd() *StopNotifyBalanceCmd {
	return &StopNotifyBalanceCmd{}
}

func init() {
	// No special flags for the HTTP and websocket commands.
	flags := dcrjson.UsageFlag(0)

	dcrjson.MustRegister(Method("getbalance"), (*GetBalanceCmd)(nil), flags)
	dcrjson.MustRegister(Method("getminerstatus"), (*GetMinerStatusCmd)(nil), flags)

	wsFlags := dcrjson.UFWebsocketOnly
	dcrjson.MustRegister(Method("notifybalance"), (*NotifyBalanceCmd)(nil), wsFlags)
	dcrjson.MustRegister(Method("stopnotifybalance"), (*StopNotifyBalanceCmd)(nil), wsFlags)
}
