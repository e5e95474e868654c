package store

import "time"

// Kind identifies what part of the document a [Change] describes.
type Kind string

const (
	KindSlot         Kind = "slot"
	KindStylesheets  Kind = "stylesheets"
	KindControl      Kind = "control"
	KindOutput       Kind = "output"
	KindChecked      Kind = "checked"
	KindInvalid      Kind = "invalid"
	KindIndicator    Kind = "indicator"
	KindAlert        Kind = "alert"
	KindConnectivity Kind = "connectivity"
	KindPage         Kind = "page"
)

// Change is the latest state of one document element.
//
// Change is the storage representation pushed to the REST API and SSE
// stream. Value holds markup for slots, a []string for stylesheets, a bool
// for controls (enabled), invalid flags and indicators, and display text for
// outputs.
type Change struct {
	// Kind is the element category.
	Kind Kind `json:"kind"`

	// Target is the element identifier within its kind (slot name,
	// control id, output id). Empty for document-wide kinds.
	Target string `json:"target"`

	// Value is the element's new state.
	Value any `json:"value"`

	// At is when the change was published.
	At time.Time `json:"at"`
}

// Key returns the identity under which the change is stored. A later change
// with the same key replaces an earlier one.
func (c Change) Key() string {
	return string(c.Kind) + "/" + c.Target
}

// Store defines the interface for storing and subscribing to document changes.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a change and notifies all subscribers.
	// Changes are keyed by [Change.Key], so later updates replace earlier ones.
	Update(change Change)

	// GetAll returns all currently stored changes ordered by key.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []Change

	// Subscribe returns a channel that receives changes.
	// The returned channel has a buffer. A consumer that falls behind it has
	// its channel closed and must resubscribe and read GetAll to catch up.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Change

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Change)
}
