// Copyright (c) 2017-2022 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sampleconfig provides the commented example configuration files for
// sonomad and sonomactl.
package sampleconfig

import (
	_ "embed"
)

// sampleSonomadConf is a string containing the commented example config for
// sonomad.
//
//go:embed sample-sonomad.conf
var sampleSonomadConf string

// sampleSonomactlConf is a string containing the commented example config for
// sonomactl.
//
//go:embed sample-sonomactl.conf
var sampleSonomactlConf string

// Sonomad returns a string containing the commented example config for
// sonomad.
func Sonomad() string {
	return sampleSonomadConf
}

// Sonomactl returns a string containing the commented example config for
// sonomactl.
func Sonomactl() string {
	return sampleSonomactlConf
}
