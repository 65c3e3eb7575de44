// Package events carries one-way notifications from the engines to their
// owners.
//
// Mailbox is the unbounded, order-preserving queue behind every engine's
// Events channel: producers never block, so a slow consumer only grows the
// queue. Broadcaster fans a single stream out to many subscribers and drops
// subscribers that stop reading.
package events
