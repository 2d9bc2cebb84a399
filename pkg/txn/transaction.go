// Package txn implements the write-buffer-plus-undo-log that sits between
// the engine API and the live trie.
//
// A Transaction never mutates the live trie on its own: every method takes
// the live *trie.Trie explicitly (the "state" the teacher's buffered
// operations would otherwise have captured a pointer to on construction),
// so a stack of nested transactions can all apply to the very same state
// while each keeps its own forward/inverse delta.
package txn

import (
	"strconv"

	"github.com/orneryd/triedb/pkg/trie"
)

// Transaction accumulates a forward delta (NewValues) and an inverse delta
// (OldValues) while mutating a live trie, so the mutation can later be
// replayed, undone, merged into a parent transaction, or discarded.
//
// OldValues records, for every key this transaction touched that had a
// pre-transaction value, that value exactly once: the first mutation of a
// key captures it, every later mutation of the same key updates NewValues
// only. A key with no pre-transaction value never appears in OldValues,
// even if the transaction both creates and discards it.
type Transaction struct {
	messages  []string
	newValues *trie.Trie
	oldValues *trie.Trie
}

// New creates a transaction carrying message as its first log entry.
func New(message string) *Transaction {
	return &Transaction{
		messages:  []string{message},
		newValues: trie.New(),
		oldValues: trie.New(),
	}
}

// FromDelta reconstructs a Transaction from an already-computed delta, such
// as one just decoded from a commit file. It is used to replay a past
// commit's effect during checkout, where there is no live Transaction
// object left, only its persisted new/old tries.
func FromDelta(messages []string, newValues, oldValues *trie.Trie) *Transaction {
	return &Transaction{
		messages:  messages,
		newValues: newValues,
		oldValues: oldValues,
	}
}

// Messages returns the accumulated message log, in commit order.
func (tx *Transaction) Messages() []string { return tx.messages }

// NewValues returns the forward delta: every key/value this transaction
// set, last write wins.
func (tx *Transaction) NewValues() *trie.Trie { return tx.newValues }

// OldValues returns the inverse delta: the pre-transaction value of every
// touched key that had one.
func (tx *Transaction) OldValues() *trie.Trie { return tx.oldValues }

// IsEmpty reports whether this transaction recorded no net change.
func (tx *Transaction) IsEmpty() bool {
	return tx.newValues.Size("") == 0 && tx.oldValues.Size("") == 0
}

// Put writes key=value to state, buffering the change. It returns the
// value state held for key immediately before this call.
func (tx *Transaction) Put(state *trie.Trie, key, value string) (prev string, existed bool) {
	touched := tx.newValues.Contains(key)
	prev, existed = state.Put(key, value)
	tx.newValues.Put(key, value)
	if existed && !touched {
		tx.oldValues.PutIfAbsent(key, prev)
	}
	return prev, existed
}

// Discard removes key's value from state, if any, buffering the change.
func (tx *Transaction) Discard(state *trie.Trie, key string) (prev string, existed bool) {
	touched := tx.newValues.Contains(key)
	prev, existed = state.Discard(key)
	tx.newValues.Discard(key)
	if existed && !touched {
		tx.oldValues.PutIfAbsent(key, prev)
	}
	return prev, existed
}

// CountUpOrSet increments the integer stored at key in state (or sets it to
// 1 if absent), buffering the change, and returns the resulting value.
func (tx *Transaction) CountUpOrSet(state *trie.Trie, key string) (int, error) {
	touched := tx.newValues.Contains(key)
	prior, hadPrior, err := state.CountUpOrSet(key)
	if err != nil {
		return 0, err
	}
	newValue := 1
	if hadPrior {
		newValue = prior + 1
	}
	tx.newValues.Put(key, strconv.Itoa(newValue))
	if hadPrior && !touched {
		tx.oldValues.PutIfAbsent(key, strconv.Itoa(prior))
	}
	return newValue, nil
}

// CountDownOrDel decrements the integer stored at key in state, deleting it
// once it reaches zero, buffering the change. hadPrior is false if key was
// absent, in which case no mutation occurs.
func (tx *Transaction) CountDownOrDel(state *trie.Trie, key string) (newValue int, hadPrior bool, err error) {
	touched := tx.newValues.Contains(key)
	prior, hadPrior, err := state.CountDownOrDel(key)
	if err != nil || !hadPrior {
		return 0, hadPrior, err
	}
	newValue = prior - 1
	if newValue == 0 {
		tx.newValues.Discard(key)
	} else {
		tx.newValues.Put(key, strconv.Itoa(newValue))
	}
	if !touched {
		tx.oldValues.PutIfAbsent(key, strconv.Itoa(prior))
	}
	return newValue, true, nil
}

// Redo reapplies this transaction's delta to state: every key recorded in
// OldValues is discarded first, then every (key, value) in NewValues is
// written. state is assumed to already reflect the parent of this
// transaction's commit.
func (tx *Transaction) Redo(state *trie.Trie) {
	for key := range tx.oldValues.Keys("") {
		state.Discard(key)
	}
	for key, value := range tx.newValues.Items("") {
		state.Put(key, value)
	}
}

// Undo reverses this transaction's delta against state: every key recorded
// in NewValues is discarded, then every (key, value) in OldValues is
// restored.
func (tx *Transaction) Undo(state *trie.Trie) {
	for key := range tx.newValues.Keys("") {
		state.Discard(key)
	}
	for key, value := range tx.oldValues.Items("") {
		state.Put(key, value)
	}
}

// Rollback undoes this transaction's effect on state and clears its delta,
// leaving the transaction open for further writes with a clean slate.
func (tx *Transaction) Rollback(state *trie.Trie) {
	tx.Undo(state)
	tx.newValues = trie.New()
	tx.oldValues = trie.New()
}

// MergeInto folds tx's delta into parent: new values win (final write
// wins across the merge), old values are recorded only if parent has not
// already seen an older value for that key (first-seen-old-value wins),
// and tx's messages are appended to parent's.
func (tx *Transaction) MergeInto(parent *Transaction) {
	for key, value := range tx.newValues.Items("") {
		parent.newValues.Put(key, value)
	}
	for key, value := range tx.oldValues.Items("") {
		parent.oldValues.PutIfAbsent(key, value)
	}
	parent.messages = append(parent.messages, tx.messages...)
}
