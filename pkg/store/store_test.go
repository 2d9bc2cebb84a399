package store

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Connect(t.TempDir(), WithDevice("test"))
	require.NoError(t, err)
	return s
}

// TestSingleCommitAndReadBack is scenario S1 from spec.md §8.
func TestSingleCommitAndReadBack(t *testing.T) {
	s := open(t)

	require.NoError(t, s.Transact("t1", func() error {
		for _, kv := range [][2]string{
			{"x", "x"}, {"x/y", "x/y"}, {"y", "y"},
			{"z", "z"}, {"x/y/z", "x/y/z"}, {"z/x", "z/x"},
		} {
			if err := s.Put(kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	}))

	for _, kv := range [][2]string{
		{"x", "x"}, {"x/y", "x/y"}, {"x/y/z", "x/y/z"},
		{"y", "y"}, {"z", "z"}, {"z/x", "z/x"},
	} {
		v, err := s.Get(kv[0])
		require.NoError(t, err)
		assert.Equal(t, kv[1], v)
	}
}

// TestUndoThenRedo is scenario S2.
func TestUndoThenRedo(t *testing.T) {
	s := open(t)
	keys := []string{"x", "x/y", "y", "z", "x/y/z", "z/x"}

	require.NoError(t, s.Transact("t1", func() error {
		for _, k := range keys {
			if err := s.Put(k, k); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.Undo())
	for _, k := range keys {
		_, ok := s.SafeGet(k)
		assert.False(t, ok, "key %s should be absent after undo", k)
	}

	require.NoError(t, s.Redo())
	for _, k := range keys {
		v, ok := s.SafeGet(k)
		require.True(t, ok)
		assert.Equal(t, k, v)
	}
}

// TestSequentialOverwrites is scenario S3.
func TestSequentialOverwrites(t *testing.T) {
	s := open(t)
	keys := []string{"x", "x/y", "y", "z", "x/y/z", "z/x"}

	for i := range 5 {
		require.NoError(t, s.Transact("t"+strconv.Itoa(i), func() error {
			for _, k := range keys {
				if err := s.Put(k, strconv.Itoa(i)); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	for range 5 {
		require.NoError(t, s.Undo())
	}
	for _, k := range keys {
		_, ok := s.SafeGet(k)
		assert.False(t, ok)
	}

	for range 5 {
		require.NoError(t, s.Redo())
	}
	for _, k := range keys {
		v, ok := s.SafeGet(k)
		require.True(t, ok)
		assert.Equal(t, "4", v)
	}
}

// TestKeyCanonicalization is scenario S4.
func TestKeyCanonicalization(t *testing.T) {
	s := open(t)
	require.NoError(t, s.Transact("t1", func() error {
		return s.Put("x//y///w/a////b", "v")
	}))

	v, err := s.Get("x/y/w/a/b")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

// TestPrefixCounting is scenario S5.
func TestPrefixCounting(t *testing.T) {
	s := open(t)
	require.NoError(t, s.Transact("t1", func() error {
		for _, kv := range [][2]string{
			{"x", "x"}, {"x/y", "x/y"}, {"y", "y"},
			{"z", "z"}, {"x/y/z", "x/y/z"}, {"z/x", "z/x"},
		} {
			if err := s.Put(kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	}))

	assert.Equal(t, 3, s.MatchCount("x"))
	assert.Equal(t, 6, s.MatchCount(""))
}

// TestCounterSemantics is scenario S6.
func TestCounterSemantics(t *testing.T) {
	s := open(t)

	var got []int
	require.NoError(t, s.Transact("counters", func() error {
		for range 3 {
			v, err := s.CountUpOrSet("k")
			if err != nil {
				return err
			}
			got = append(got, v)
		}
		return nil
	}))
	assert.Equal(t, []int{1, 2, 3}, got)

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	got = nil
	require.NoError(t, s.Transact("decrement", func() error {
		for range 3 {
			v, _, err := s.CountDownOrDel("k")
			if err != nil {
				return err
			}
			got = append(got, v)
		}
		return nil
	}))
	assert.Equal(t, []int{2, 1, 0}, got)
	assert.False(t, s.Has("k"))
}

func TestWriteOutsideTransactionFails(t *testing.T) {
	s := open(t)
	assert.ErrorIs(t, s.Put("x", "1"), ErrNoTransactionActive)
	assert.ErrorIs(t, s.Delete("x"), ErrNoTransactionActive)

	_, err := s.CountUpOrSet("x")
	assert.ErrorIs(t, err, ErrNoTransactionActive)
}

func TestGetMissingKeyReturnsKeyNotFound(t *testing.T) {
	s := open(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDeleteMissingKeyReturnsKeyNotFound(t *testing.T) {
	s := open(t)
	err := s.Transact("t1", func() error {
		return s.Delete("missing")
	})
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestCheckoutRejectsWithinTransaction(t *testing.T) {
	s := open(t)
	s.Begin("t1")
	assert.ErrorIs(t, s.Checkout(s.Head()), ErrInTransaction)
	assert.ErrorIs(t, s.Undo(), ErrInTransaction)
	assert.ErrorIs(t, s.Redo(), ErrInTransaction)
}

func TestFailedTransactionWritesNoCommit(t *testing.T) {
	s := open(t)
	headBefore := s.Head()

	err := s.Transact("will fail", func() error {
		_ = s.Put("x", "1")
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, headBefore, s.Head())
	assert.False(t, s.Has("x"))
}

func TestNestedTransactionMergesIntoParent(t *testing.T) {
	s := open(t)

	require.NoError(t, s.Transact("outer", func() error {
		if err := s.Put("a", "1"); err != nil {
			return err
		}
		return s.Transact("inner", func() error {
			return s.Put("b", "2")
		})
	}))

	a, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", a)
	b, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "2", b)
}

func TestNoOpTransactionDropsSilently(t *testing.T) {
	s := open(t)
	headBefore := s.Head()

	require.NoError(t, s.Transact("noop", func() error { return nil }))
	assert.Equal(t, headBefore, s.Head())
}

func TestCheckoutUnknownCommitFails(t *testing.T) {
	s := open(t)
	err := s.Checkout("does-not-exist")
	assert.Error(t, err)
}

// TestCheckoutDetectsTamperedIntermediateCommit verifies that a redo walk
// through a commit that isn't the final target still catches tampering:
// corrupting the middle commit of a three-commit history must fail a
// checkout to the newest commit, not just a checkout to the middle one.
func TestCheckoutDetectsTamperedIntermediateCommit(t *testing.T) {
	s := open(t)
	require.NoError(t, s.Transact("t1", func() error { return s.Put("x", "commit-a-value") }))
	headA := s.Head()
	require.NoError(t, s.Transact("t2", func() error { return s.Put("y", "commit-b-value") }))
	headB := s.Head()
	require.NoError(t, s.Transact("t3", func() error { return s.Put("z", "commit-c-value") }))
	headC := s.Head()

	require.NoError(t, s.Checkout(headA))

	path := filepath.Join(s.dir, headB+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "commit-b-value", "tampered-b-value", 1)
	require.NotEqual(t, string(data), tampered, "fixture did not contain the expected value to tamper with")
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0644))

	err = s.Checkout(headC)
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestReconnectRestoresHead(t *testing.T) {
	dir := t.TempDir()
	s1, err := Connect(dir, WithDevice("dev"))
	require.NoError(t, err)
	require.NoError(t, s1.Transact("t1", func() error {
		return s1.Put("x", "1")
	}))
	head := s1.Head()

	s2, err := Connect(dir, WithDevice("dev"))
	require.NoError(t, err)
	assert.Equal(t, head, s2.Head())
	v, err := s2.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestOnConnectHookFires(t *testing.T) {
	dir := t.TempDir()
	called := false
	_, err := Connect(dir, WithOnConnect(func(d string) {
		called = true
		assert.Equal(t, dir, d)
	}))
	require.NoError(t, err)
	assert.True(t, called)
}

// TestBatchSyncModeStillPersistsHead checks that "batch" sync mode skips
// the head file's fsync but the rename still lands: a reconnect sees the
// same head a fully-synced commit would have produced.
func TestBatchSyncModeStillPersistsHead(t *testing.T) {
	dir := t.TempDir()
	s1, err := Connect(dir, WithDevice("dev"), WithSyncMode("batch"))
	require.NoError(t, err)
	require.NoError(t, s1.Transact("t1", func() error {
		return s1.Put("x", "1")
	}))
	head := s1.Head()

	s2, err := Connect(dir, WithDevice("dev"), WithSyncMode("batch"))
	require.NoError(t, err)
	assert.Equal(t, head, s2.Head())
}
