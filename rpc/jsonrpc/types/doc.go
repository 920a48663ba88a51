// Copyright (c) 2019-2020 The Decred developers
// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package types implements concrete types for marshalling to and from the
sonomad JSON-RPC commands, return values, and notifications that are not
already provided by the dcrd JSON-RPC types.

The standard mining and chain commands such as setgenerate, getgenerate,
generate, gethashespersec, getbestblock, and stop are served with the types
from github.com/decred/dcrd/rpc/jsonrpc/types/v4.  This package registers the
additional sonomad commands with dcrjson under the same method type so a
single call to dcrjson.ParseParams handles both sets.

Commands

  - getbalance: returns the confirmed balance of an address
  - getminerstatus: returns the state of the CPU miner
  - notifybalance / stopnotifybalance: (websocket only) toggle balanceupdated
    notifications

Notifications

  - blockadded: a block was appended to the chain by anyone
  - blockaddedbyme: a block solved by the local miner was appended
  - balanceupdated: the balance of a mining address changed after a locally
    mined block
*/
package types
