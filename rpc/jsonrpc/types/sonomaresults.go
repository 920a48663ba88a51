// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package types

// GetBalanceResult models the data returned from the getbalance command.
type GetBalanceResult struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
	Atoms   int64   `json:"atoms"`
}

// GetMinerStatusResult models the data returned from the getminerstatus
// command.
type GetMinerStatusResult struct {
	Generating   bool   `json:"generating"`
	Mining       bool   `json:"mining"`
	HashesPerSec int64  `json:"hashespersec"`
	Height       int64  `json:"height"`
	Bits         string `json:"bits"`
	MempoolSize  int    `json:"mempoolsize"`
	HaltError    string `json:"halterror,omitempty"`
}
