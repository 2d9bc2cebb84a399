package store

import (
	"fmt"
	"iter"
	"log"

	"github.com/orneryd/triedb/pkg/commit"
	"github.com/orneryd/triedb/pkg/txn"
)

// Get returns the value stored at key.
func (s *Store) Get(key string) (string, error) {
	v, ok := s.live.Get(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return v, nil
}

// SafeGet returns the value stored at key and whether it was present,
// never erroring on a missing key.
func (s *Store) SafeGet(key string) (string, bool) {
	return s.live.Get(key)
}

// Has reports whether key currently has a value.
func (s *Store) Has(key string) bool {
	return s.live.Contains(key)
}

// MatchCount returns the number of keys with a value at or beneath prefix.
func (s *Store) MatchCount(prefix string) int {
	return s.live.Size(prefix)
}

// MatchKeys returns a lazy sequence of keys at or beneath prefix.
func (s *Store) MatchKeys(prefix string) iter.Seq[string] {
	return s.live.Keys(prefix)
}

// MatchItems returns a lazy sequence of (key, value) pairs at or beneath
// prefix.
func (s *Store) MatchItems(prefix string) iter.Seq2[string, string] {
	return s.live.Items(prefix)
}

func (s *Store) top() (*txn.Transaction, error) {
	if len(s.stack) == 0 {
		return nil, ErrNoTransactionActive
	}
	return s.stack[len(s.stack)-1], nil
}

// Put writes key=value within the active transaction.
func (s *Store) Put(key, value string) error {
	t, err := s.top()
	if err != nil {
		return err
	}
	t.Put(s.live, key, value)
	return nil
}

// Discard removes key's value, if any, within the active transaction. It
// is a no-op, not an error, when key is already absent.
func (s *Store) Discard(key string) error {
	t, err := s.top()
	if err != nil {
		return err
	}
	t.Discard(s.live, key)
	return nil
}

// Delete removes key's value within the active transaction, returning
// ErrKeyNotFound if key had no value.
func (s *Store) Delete(key string) error {
	t, err := s.top()
	if err != nil {
		return err
	}
	_, existed := t.Discard(s.live, key)
	if !existed {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return nil
}

// CountUpOrSet increments the integer at key (or sets it to 1) within the
// active transaction.
func (s *Store) CountUpOrSet(key string) (int, error) {
	t, err := s.top()
	if err != nil {
		return 0, err
	}
	return t.CountUpOrSet(s.live, key)
}

// CountDownOrDel decrements the integer at key within the active
// transaction, deleting it once it reaches zero. hadPrior is false when
// key was absent.
func (s *Store) CountDownOrDel(key string) (newValue int, hadPrior bool, err error) {
	t, terr := s.top()
	if terr != nil {
		return 0, false, terr
	}
	return t.CountDownOrDel(s.live, key)
}

// Begin opens a new transaction carrying message as its first log entry,
// nesting inside any already-open transaction. Reads immediately observe
// its writes; nothing is durable until the outermost transaction ends.
func (s *Store) Begin(message string) {
	s.stack = append(s.stack, txn.New(message))
}

// InTransaction reports whether at least one transaction is currently open.
func (s *Store) InTransaction() bool {
	return len(s.stack) > 0
}

// RollbackCurrent undoes the top transaction's effect on the live trie and
// clears its delta, leaving it open for further writes.
func (s *Store) RollbackCurrent() {
	if len(s.stack) == 0 {
		return
	}
	log.Printf("[store %s] rolling back transaction: %v", s.device, s.stack[len(s.stack)-1].Messages())
	s.stack[len(s.stack)-1].Rollback(s.live)
}

// RollbackAll undoes every open transaction's effect on the live trie,
// innermost first, clearing each one's delta without popping the stack.
func (s *Store) RollbackAll() {
	for i := len(s.stack) - 1; i >= 0; i-- {
		s.stack[i].Rollback(s.live)
	}
}

// End closes the innermost open transaction. If another transaction is
// still open beneath it, the closed transaction's delta is merged into its
// parent (spec.md §4.3: nested transactions commit by merging upward, not
// by creating their own commit). Only the outermost transaction's end can
// produce a new commit.
//
// A transaction whose net delta is empty, or whose net delta would produce
// a commit identical to the current head, is silently dropped: no commit
// file is written and head does not move (spec.md §5).
func (s *Store) End() error {
	if len(s.stack) == 0 {
		return ErrNoTransactionActive
	}
	cur := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	if len(s.stack) > 0 {
		cur.MergeInto(s.stack[len(s.stack)-1])
		return nil
	}
	return s.commitOutermost(cur)
}

func (s *Store) commitOutermost(cur *txn.Transaction) error {
	if cur.IsEmpty() {
		return nil
	}

	id := commit.Hash(cur.NewValues(), cur.OldValues())
	if id == s.head {
		return nil
	}

	c := &commit.Commit{
		ID:       id,
		Parents:  []string{s.head},
		Messages: cur.Messages(),
		New:      cur.NewValues().ToSerial(),
		Old:      cur.OldValues().ToSerial(),
	}
	if err := commit.WriteCommitFile(s.dir, c); err != nil {
		return err
	}
	if err := commit.AppendParentsLog(s.dir, c); err != nil {
		return err
	}
	s.dag.Add(c.ID, c.Parents, c.Messages)
	s.head = c.ID
	log.Printf("[store %s] committing %s: %v", s.device, c.ID, c.Messages)
	if err := s.writeHead(s.head); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Put(s.head, s.live.Clone())
	}
	return nil
}

// Transact opens a transaction, runs fn, and closes it: fn's error (or a
// recovered panic) rolls the transaction back to empty before closing, so
// the scope always ends cleanly and a failed attempt never reaches disk.
// A successful fn's changes are merged into any enclosing transaction, or
// committed if this was the outermost scope.
//
// This is the idiomatic Go rendering of a scoped transaction acquisition:
// Go has no block-scope destructors, so the guard the teacher's storage
// layer modeled as an object becomes this closure instead.
func (s *Store) Transact(message string, fn func() error) (err error) {
	s.Begin(message)
	defer func() {
		if r := recover(); r != nil {
			s.RollbackCurrent()
			_ = s.End()
			panic(r)
		}
	}()

	if err = fn(); err != nil {
		s.RollbackCurrent()
		if endErr := s.End(); endErr != nil {
			return endErr
		}
		return err
	}
	return s.End()
}
