// Package store wires pkg/trie, pkg/txn and pkg/commit into the embedded
// engine API: a live trie, a transaction stack over it, and a commit DAG
// recording its history (spec.md §4, §6).
//
// A Store is not safe for concurrent use: it models a single process
// embedding one database directory, the same contract the teacher's
// storage engine carried for its own write path.
package store

import (
	"fmt"
	"os"

	"github.com/orneryd/triedb/pkg/commit"
	"github.com/orneryd/triedb/pkg/trie"
	"github.com/orneryd/triedb/pkg/txn"
)

// Cache is the interface a snapshot accelerator must satisfy to be wired
// into a Store via WithCache. pkg/cache's SnapshotCache and BadgerStore
// both implement it; Store depends only on this interface so the cache
// tier stays swappable and optional.
type Cache interface {
	Get(commitID string) (*trie.Trie, bool)
	Put(commitID string, state *trie.Trie)
}

// Store is the engine: a live trie, the transaction stack currently open
// over it, and the commit DAG recording how the live trie arrived at its
// current head.
type Store struct {
	dir    string
	device string

	live *trie.Trie
	dag  *commit.DAG
	head string

	stack []*txn.Transaction

	cache     Cache
	onConnect []func(dir string)
	syncMode  string
}

// Option configures a Store at Connect time.
type Option func(*Store)

// WithDevice overrides the device name used to select a per-device head
// file. Defaults to the local hostname.
func WithDevice(device string) Option {
	return func(s *Store) { s.device = device }
}

// WithCache installs a snapshot accelerator consulted and populated by
// Checkout. It never changes observable behavior, only how much replay
// work a checkout does.
func WithCache(c Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithOnConnect registers a hook invoked once Connect has restored the
// live trie to its recorded head, mirroring spec.md's db_connected event.
func WithOnConnect(hook func(dir string)) Option {
	return func(s *Store) { s.onConnect = append(s.onConnect, hook) }
}

// WithSyncMode selects the head-file commit barrier's durability mode:
// "immediate" (the default) fsyncs the head file on every commit;
// "batch" skips that fsync, relying on the OS's own writeback. An unknown
// mode is treated as "immediate".
func WithSyncMode(mode string) Option {
	return func(s *Store) { s.syncMode = mode }
}

// Connect opens (creating if necessary) the database directory at dir,
// rebuilds the commit DAG from its parents log, and replays history up to
// the recorded head for this device (spec.md §6: "On connect: ... checkout
// the recorded head").
func Connect(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: failed to create database directory %s: %w", dir, err)
	}

	s := &Store{
		dir:  dir,
		live: trie.New(),
		head: commit.Initial,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.device == "" {
		s.device = defaultDevice()
	}
	if s.syncMode == "" {
		s.syncMode = "immediate"
	}

	entries, err := commit.ReadParentsLog(dir)
	if err != nil {
		return nil, err
	}
	s.dag = commit.BuildDAG(entries)

	recordedHead, err := commit.ReadHead(dir, s.device)
	if err != nil {
		return nil, err
	}
	if recordedHead != commit.Initial {
		if err := s.Checkout(recordedHead); err != nil {
			return nil, fmt.Errorf("store: failed to restore head %s: %w", recordedHead, err)
		}
	}

	for _, hook := range s.onConnect {
		hook(dir)
	}
	return s, nil
}

// writeHead installs id as head for this store's device, honoring syncMode.
func (s *Store) writeHead(id string) error {
	if s.syncMode == "batch" {
		return commit.WriteHeadBatch(s.dir, s.device, id)
	}
	return commit.WriteHead(s.dir, s.device, id)
}

func defaultDevice() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "default"
}

// Head returns the current head commit id.
func (s *Store) Head() string { return s.head }

// Device returns the device name this store's head file is keyed by.
func (s *Store) Device() string { return s.device }

// DAG exposes the in-memory commit graph reconstructed from the parents
// log, for callers that need to inspect history directly (e.g. the CLI's
// log command). Callers must not mutate the returned maps.
func (s *Store) DAG() *commit.DAG { return s.dag }
