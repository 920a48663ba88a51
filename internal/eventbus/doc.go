// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package eventbus implements the in-process publish/subscribe channel the node
uses to announce chain and mining events.

Publishing never blocks.  Each subscription owns a buffered channel and
notifications are dropped to make up for slow receivers, so publishers such as
the chain and the miner are never held up by a consumer.

Two kinds of subscriptions are provided.  Persistent subscriptions created via
Subscribe receive every payload published to a topic until stopped.  One-shot
subscriptions created via SubscribeOnce receive the first payload accepted by
their match function and are detached from the bus atomically with that
delivery, which means a one-shot subscription is guaranteed to observe at most
one event.
*/
package eventbus
