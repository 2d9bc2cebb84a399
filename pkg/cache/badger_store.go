package cache

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/triedb/pkg/trie"
)

// prefixSnapshot namespaces snapshot keys within the Badger keyspace,
// leaving room for the store to share the same database directory with
// other Badger-backed tiers in the future.
const prefixSnapshot = byte(0x01)

func snapshotKey(commitID string) []byte {
	return append([]byte{prefixSnapshot}, []byte(commitID)...)
}

// BadgerStore is an on-disk second tier for commit snapshots, consulted
// when SnapshotCache misses. Unlike SnapshotCache it survives process
// restarts, trading memory pressure for disk I/O on the commits it holds.
//
// It implements the same Get/Put shape as SnapshotCache (both satisfy
// pkg/store's Cache interface) so a Store can be handed either, or a
// two-tier stack of both.
type BadgerStore struct {
	db *badger.DB
}

// BadgerStoreOptions configures a BadgerStore.
type BadgerStoreOptions struct {
	// DataDir is the directory Badger stores its files in. Required
	// unless InMemory is set.
	DataDir string

	// InMemory runs Badger in memory-only mode, for tests that want this
	// tier's Get/Put contract exercised without touching disk.
	InMemory bool

	// SyncWrites forces fsync after each snapshot write. Off by default:
	// a lost snapshot on crash only costs a cache miss, not correctness,
	// since pkg/store's replay path is always the source of truth.
	SyncWrites bool
}

// NewBadgerStore opens (creating if necessary) a Badger-backed snapshot
// store at opts.DataDir.
func NewBadgerStore(opts BadgerStoreOptions) (*BadgerStore, error) {
	dir := opts.DataDir
	if opts.InMemory {
		// Badger refuses a directory in memory-only mode.
		dir = ""
	}
	badgerOpts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to open badger snapshot store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying Badger database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// Get returns the snapshot stored for commitID, if any.
func (b *BadgerStore) Get(commitID string) (*trie.Trie, bool) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(commitID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}

	var serial any
	if err := json.Unmarshal(data, &serial); err != nil {
		return nil, false
	}
	state, err := trie.FromSerial(serial)
	if err != nil {
		return nil, false
	}
	return state, true
}

// Put stores state under commitID, overwriting any existing snapshot.
func (b *BadgerStore) Put(commitID string, state *trie.Trie) {
	data, err := json.Marshal(state.ToSerial())
	if err != nil {
		return
	}
	_ = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(commitID), data)
	})
}
