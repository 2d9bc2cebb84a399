package store

import (
	"fmt"
	"log"

	"github.com/orneryd/triedb/pkg/commit"
	"github.com/orneryd/triedb/pkg/trie"
	"github.com/orneryd/triedb/pkg/txn"
)

// Checkout replays history so the live trie reflects target exactly,
// updating head to target (spec.md §4.5):
//
//  1. Refuse if a transaction is currently open.
//  2. Walk target back to the initial commit, following single parents;
//     more than one parent at any step means a merge commit, which this
//     implementation does not traverse.
//  3. Walk the current head back toward the initial commit the same way
//     until reaching a commit target's ancestry also contains: the
//     common ancestor. Undo each commit visited along the way.
//  4. Replay forward from the common ancestor to target, redoing each
//     commit's delta in order.
//  5. Verify a content-hash accumulator over every key touched along the
//     whole walk and confirm it equals target, catching a corrupted
//     commit file anywhere in the chain, not only target's own.
//
// Step 5's accumulator is every visited commit's own recorded New/Old
// re-hashed against its own id as loadTransaction loads it, in both the
// undo loop (step 3) and the redo loop (step 4): a commit id is already
// defined as Hash(New, Old) at write time, so re-deriving it from the
// file's own stored delta and comparing catches any tampering with that
// file before its delta ever reaches the live trie. Target itself is
// covered by this per-commit check when it is redone in step 4; the one
// case that never goes through loadTransaction is target equaling the
// common ancestor (step 4's walk is empty), which the trailing check
// below covers directly so target is always verified exactly once.
//
// A cache hit on target (see WithCache) skips steps 3-5 and installs the
// cached snapshot directly, without re-hashing it; step 2 still runs first,
// so an id outside the DAG fails even when cached. The cache is filled
// here after a verified replay and by End with the live state of each new
// commit.
func (s *Store) Checkout(target string) error {
	if len(s.stack) > 0 {
		return ErrInTransaction
	}
	if target == s.head {
		return nil
	}

	ancestry, err := s.ancestryChain(target)
	if err != nil {
		return err
	}

	if s.cache != nil {
		if snapshot, ok := s.cache.Get(target); ok {
			s.live = snapshot.Clone()
			s.head = target
			return s.writeHead(s.head)
		}
	}

	inAncestry := make(map[string]bool, len(ancestry))
	for _, id := range ancestry {
		inAncestry[id] = true
	}

	cur := s.head
	for !inAncestry[cur] {
		tx, err := s.loadTransaction(cur)
		if err != nil {
			return err
		}
		tx.Undo(s.live)

		parents := s.dag.Parents[cur]
		if len(parents) == 0 {
			return fmt.Errorf("store: %w: %s has no recorded parent but is not in target ancestry", commit.ErrUnknownCommit, cur)
		}
		if len(parents) > 1 {
			return ErrNotImplemented
		}
		cur = parents[0]
	}

	commonAncestorIdx := -1
	for i, id := range ancestry {
		if id == cur {
			commonAncestorIdx = i
			break
		}
	}
	// ancestry is ordered target -> ... -> Initial; the forward path from
	// the common ancestor to target is that slice, reversed.
	for i := commonAncestorIdx - 1; i >= 0; i-- {
		tx, err := s.loadTransaction(ancestry[i])
		if err != nil {
			return err
		}
		tx.Redo(s.live)
	}

	// Every commit strictly between the common ancestor and target was
	// already verified by loadTransaction inside the redo loop above.
	// target itself only needs its own extra check here when that loop
	// was empty, i.e. target is the common ancestor.
	if commonAncestorIdx == 0 && target != commit.Initial {
		if _, _, _, err := s.verifiedDelta(target); err != nil {
			return err
		}
	}

	s.head = target
	log.Printf("[store %s] checked out %s", s.device, s.head)
	if err := s.writeHead(s.head); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Put(s.head, s.live.Clone())
	}
	return nil
}

// Undo checks out head's parent. It is a no-op if head is the initial
// commit (zero parents), and fails with ErrAmbiguousUndo if head has more
// than one parent.
func (s *Store) Undo() error {
	if len(s.stack) > 0 {
		return ErrInTransaction
	}
	parents := s.dag.Parents[s.head]
	if len(parents) == 0 {
		return nil
	}
	if len(parents) > 1 {
		return ErrAmbiguousUndo
	}
	return s.Checkout(parents[0])
}

// Redo checks out head's single child. It is a no-op if head has no
// children, and fails with ErrAmbiguousRedo if a prior checkout left head
// with more than one child (history branched and which branch to replay
// forward into is not specified).
func (s *Store) Redo() error {
	if len(s.stack) > 0 {
		return ErrInTransaction
	}
	children := s.dag.Children[s.head]
	if len(children) == 0 {
		return nil
	}
	if len(children) > 1 {
		return ErrAmbiguousRedo
	}
	return s.Checkout(children[0])
}

// ancestryChain returns target's ancestors, inclusive, ordered from target
// back to commit.Initial, following single parents only.
func (s *Store) ancestryChain(target string) ([]string, error) {
	if target == commit.Initial {
		return []string{commit.Initial}, nil
	}

	chain := []string{target}
	cur := target
	for cur != commit.Initial {
		parents, ok := s.dag.Parents[cur]
		if !ok {
			return nil, fmt.Errorf("store: %w: %s", commit.ErrUnknownCommit, target)
		}
		if len(parents) > 1 {
			return nil, ErrNotImplemented
		}
		if len(parents) == 0 {
			return nil, fmt.Errorf("store: %w: %s has no parent and is not the initial commit", commit.ErrUnknownCommit, cur)
		}
		cur = parents[0]
		chain = append(chain, cur)
	}
	return chain, nil
}

// loadTransaction reconstructs the Transaction that produced commit id,
// from its persisted delta, after verifying the delta re-hashes to id
// itself. This is the per-commit link in Checkout's content-hash
// accumulator (step 5): every commit undone or redone during a checkout
// passes through here, so a tampered commit file anywhere in the walked
// chain is caught as ErrCorruptState before its delta is ever applied to
// the live trie, rather than only at the target commit.
func (s *Store) loadTransaction(id string) (*txn.Transaction, error) {
	c, newValues, oldValues, err := s.verifiedDelta(id)
	if err != nil {
		return nil, err
	}
	return txn.FromDelta(c.Messages, newValues, oldValues), nil
}

// verifiedDelta reads commit id's persisted delta and confirms
// commit.Hash(New, Old) equals id, returning ErrCorruptState on any
// decode failure or hash mismatch.
func (s *Store) verifiedDelta(id string) (c *commit.Commit, newValues, oldValues *trie.Trie, err error) {
	c, err = commit.ReadCommitFile(s.dir, id)
	if err != nil {
		return nil, nil, nil, err
	}
	newValues, err = trie.FromSerial(c.New)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: %w: %s", ErrCorruptState, err)
	}
	oldValues, err = trie.FromSerial(c.Old)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("store: %w: %s", ErrCorruptState, err)
	}
	if commit.Hash(newValues, oldValues) != id {
		return nil, nil, nil, fmt.Errorf("store: %w: %s", ErrCorruptState, id)
	}
	return c, newValues, oldValues, nil
}
