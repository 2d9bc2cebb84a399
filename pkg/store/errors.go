package store

import "errors"

// Error kinds returned by the engine API (spec.md §7).
var (
	// ErrKeyNotFound is returned by Get/Delete when key has no value.
	ErrKeyNotFound = errors.New("store: key not found")

	// ErrNoTransactionActive is returned by any write-oriented call made
	// outside an active transaction.
	ErrNoTransactionActive = errors.New("store: no transaction active")

	// ErrInTransaction is returned by Checkout/Undo/Redo while a
	// transaction is active.
	ErrInTransaction = errors.New("store: transaction in progress")

	// ErrAmbiguousUndo is returned by Undo when head has more than one
	// parent (never produced by this implementation today, since merge
	// commits are not supported, but checked defensively).
	ErrAmbiguousUndo = errors.New("store: ambiguous undo: head has multiple parents")

	// ErrAmbiguousRedo is returned by Redo when head has more than one
	// child: a prior checkout branched history, and which branch to
	// replay forward into is not specified.
	ErrAmbiguousRedo = errors.New("store: ambiguous redo: head has multiple children")

	// ErrUnserializable is reserved for a value that cannot be encoded.
	// The public API only accepts strings, which always encode, so this
	// store never returns it today; it exists so a richer value layer
	// built on top of this one (the object-mapping tier this spec
	// excludes, see spec.md §1) has a natural error to raise.
	ErrUnserializable = errors.New("store: value cannot be serialized")

	// ErrCorruptState is fatal: during checkout, a commit file on the
	// walked path could not be decoded, or its recorded delta did not hash
	// back to its id.
	ErrCorruptState = errors.New("store: corrupt state: commit content hash mismatch")

	// ErrNotImplemented is returned when a commit has more than one
	// parent: multi-parent (merge) traversal is not implemented.
	ErrNotImplemented = errors.New("store: multi-parent traversal not implemented")
)
