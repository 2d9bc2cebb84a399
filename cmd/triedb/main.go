// Package main provides the triedb CLI entry point.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/orneryd/triedb/pkg/cache"
	"github.com/orneryd/triedb/pkg/config"
	"github.com/orneryd/triedb/pkg/store"
	"github.com/orneryd/triedb/pkg/trie"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "triedb",
		Short: "triedb - an embedded, versioned, path-keyed store",
		Long: `triedb is a process-embedded key/value store keyed by
hierarchical paths, where every committed change is a node in a
content-addressed history DAG supporting undo, redo and checkout.`,
	}
	rootCmd.PersistentFlags().String("data-dir", "", "database directory (default: $TRIEDB_DATA_DIR or ./data)")

	rootCmd.AddCommand(
		versionCmd(),
		getCmd(),
		putCmd(),
		deleteCmd(),
		matchCmd(),
		logCmd(),
		checkoutCmd(),
		undoCmd(),
		redoCmd(),
		statCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("triedb v%s\n", version)
		},
	}
}

// openStore builds a config (environment, overridden by --data-dir) and
// connects a Store, wiring the cache tiers the environment asked for. No
// YAML config file is read.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg := config.LoadFromEnv()
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []store.Option{store.WithSyncMode(cfg.SyncMode)}

	memCache := cache.NewSnapshotCache(cfg.SnapshotCacheSize)
	var tiers store.Cache = memCache

	if cfg.SnapshotDiskCacheEnabled {
		disk, err := cache.NewBadgerStore(cache.BadgerStoreOptions{
			DataDir:    cfg.SnapshotDiskCacheDir,
			SyncWrites: cfg.SyncWrites,
		})
		if err != nil {
			return nil, err
		}
		tiers = twoTierCache{mem: memCache, disk: disk}
	}
	opts = append(opts, store.WithCache(tiers))

	if cfg.Device != "" {
		opts = append(opts, store.WithDevice(cfg.Device))
	}

	return store.Connect(cfg.DataDir, opts...)
}

// twoTierCache checks the in-memory tier first, falling back to the disk
// tier and repopulating memory on a disk hit.
type twoTierCache struct {
	mem  *cache.SnapshotCache
	disk *cache.BadgerStore
}

func (t twoTierCache) Get(commitID string) (*trie.Trie, bool) {
	if state, ok := t.mem.Get(commitID); ok {
		return state, true
	}
	state, ok := t.disk.Get(commitID)
	if ok {
		t.mem.Put(commitID, state)
	}
	return state, ok
}

func (t twoTierCache) Put(commitID string, state *trie.Trie) {
	t.mem.Put(commitID, state)
	t.disk.Put(commitID, state)
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored at key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			v, err := s.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Set key to value in a new transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			return s.Transact("put "+args[0], func() error {
				return s.Put(args[0], args[1])
			})
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove key's value in a new transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			return s.Transact("delete "+args[0], func() error {
				return s.Delete(args[0])
			})
		},
	}
}

func matchCmd() *cobra.Command {
	var valuesOnly bool
	cmd := &cobra.Command{
		Use:   "match [prefix]",
		Short: "List keys (and values) at or beneath prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			for k, v := range s.MatchItems(prefix) {
				if valuesOnly {
					fmt.Println(v)
				} else {
					fmt.Printf("%s=%s\n", k, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&valuesOnly, "values-only", false, "print only values, one per line")
	return cmd
}

func logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Print the ancestry chain of the current head",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			dag := s.DAG()
			id := s.Head()
			for {
				messages := dag.Messages[id]
				fmt.Printf("%s  %s\n", id, strings.Join(messages, "; "))
				parents := dag.Parents[id]
				if len(parents) == 0 {
					break
				}
				id = parents[0]
			}
			return nil
		},
	}
}

func checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <commit-id>",
		Short: "Move head to the given commit id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			return s.Checkout(args[0])
		},
	}
}

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Check out head's parent",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			return s.Undo()
		},
	}
}

func redoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Check out head's child",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			return s.Redo()
		},
	}
}

func statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Print database size and head information",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			cfg := config.LoadFromEnv()
			if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
				cfg.DataDir = dataDir
			}

			size := diskUsage(cfg.DataDir)
			// Every commit in the parents log is one real commit; the
			// implicit initial commit never gets a log entry of its own.
			commits := len(s.DAG().Parents) + 1

			fmt.Printf("data dir:   %s\n", cfg.DataDir)
			fmt.Printf("disk usage: %s\n", humanize.Bytes(uint64(size)))
			fmt.Printf("commits:    %d\n", commits)
			fmt.Printf("head:       %s\n", s.Head())
			fmt.Printf("keys:       %d\n", s.MatchCount(""))
			return nil
		},
	}
}

// diskUsage sums the size of every regular file under dir, best-effort.
func diskUsage(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total
}
