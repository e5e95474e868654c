// Package store keeps the latest state of every document element the console
// exposes and fans changes out to subscribers.
//
// The view layer publishes a [Change] whenever a slot, stylesheet set,
// control, output or indicator changes. The server package reads snapshots
// with [Store.GetAll] for the REST API and streams changes to browsers via
// Server-Sent Events.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Change]: One element's latest state
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the dispatch loop).
package store
