// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package cpuminer provides a CPU miner that continuously extends the chain tip.

Each mining attempt builds a candidate on the current tip and opens a search
session.  A session runs a single hash search worker on a private copy of the
candidate and resolves exactly once: found when the worker solves the
candidate, or cancelled when a block at or beyond the candidate index is added
to the chain, mining is stopped, or the miner shuts down.  The worker has
exited and the session event subscriptions are removed by the time a session
resolves.

Solved blocks that the chain rejects for violating the rules are logged and
the miner moves on to a fresh candidate.  Any other failure halts the miner
until it is enabled again, and the error is available via Err.
*/
package cpuminer
