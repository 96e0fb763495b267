package persist

import "context"

// ChangeKind describes how a store mutation was made.
type ChangeKind string

const (
	// ChangeSet is a single field assignment.
	ChangeSet ChangeKind = "set"
	// ChangePatch is a multi-field patch, either a merge patch or a function patch.
	ChangePatch ChangeKind = "patch"
)

// ChangeEvent is delivered to listeners after a store mutation completes.
type ChangeEvent struct {
	StoreID string
	Kind    ChangeKind
	// Fields lists the top-level fields the mutation touched, when known.
	Fields []string
}

// ChangeListener is notified synchronously after every mutation. Its error is
// returned to the caller that mutated the store.
type ChangeListener func(ctx context.Context, event ChangeEvent) error

// Store is the state container the plugin is installed on.
type Store interface {
	ID() string
	// State returns a deep copy of the current state.
	State() map[string]any
	// MergePatch deep-merges patch into the state and notifies listeners.
	MergePatch(ctx context.Context, patch map[string]any) error
	// OnChange registers a listener for the lifetime of the store.
	OnChange(listener ChangeListener)
}
