// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package blockchain implements the account based chain the miner extends.

The chain is a single sequence of blocks starting at the genesis block of a
network.  Each block commits to its parent by hash, pays the block subsidy plus
the fees of its transactions to a reward address via a leading reward
transaction, and carries a proof of work that satisfies the difficulty required
by its parent.

# Storage

Blocks, balances, the chain tip, and an index of confirmed transactions are
stored in a leveldb database.  Appending a block updates all of them in a
single database transaction.

# Validation

AppendBlock rejects blocks that violate the rules with a RuleError, or with a
TxRuleError when one of the transactions of the block is invalid.  The
IsRuleError function distinguishes these expected rejections from unexpected
storage failures, which are returned as a ContextError or the underlying
error.

# Mempool

AddTransaction validates signed transactions and holds them until they are
mined.  A sender can only have unconfirmed transactions that are covered by
its confirmed balance.
*/
package blockchain
