// Copyright (c) 2019 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package rpcserver implements the operator control surface of sonomad.

Overview

The server accepts JSON-RPC requests over HTTP POST, optionally secured with
TLS, and authenticates them with HTTP basic access authentication.  An admin
user may call every method while a limited user is restricted to read-only
methods plus transaction and block submission.

The mining methods (setgenerate, getgenerate, gethashespersec, generate) drive
the CPU miner, the chain methods (getbestblock, getblockcount, getbalance,
sendrawtransaction, submitblock) query and extend the chain, and stop requests
a process shutdown.

A websocket endpoint at /ws serves the same methods plus notifyblocks and
notifybalance, which register the client for the blockadded, blockaddedbyme,
and balanceupdated notifications relayed from the event bus.
*/
package rpcserver
