package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/apex/log"

	"github.com/Norgate-AV/runcache/internal/cache"
	"github.com/Norgate-AV/runcache/internal/config"
	"github.com/Norgate-AV/runcache/internal/identity"
)

// Engine wires identity, policy, runner and replayer for one
// invocation: compute key, decide, then run or replay. The decision is
// made exactly once; nothing upstream touches cache state.
type Engine struct {
	// Stdout and Stderr are the real output sinks, swappable in tests.
	Stdout io.Writer
	Stderr io.Writer
}

// Run performs one memoized invocation and returns the exit status to
// propagate as the process status.
func (e *Engine) Run(ctx context.Context, cfg *config.Config) (int, error) {
	id, err := identity.FromConfig(cfg)
	if err != nil {
		return 0, err
	}

	key := id.Key()
	store := cache.NewStore(cfg.CacheRoot, key)

	log.Debugf("cache key %s", key)

	if cfg.Lock {
		lock, err := cache.NewLock(cfg.CacheRoot, key)
		if err != nil {
			return 0, err
		}

		if err := lock.Acquire(); err != nil {
			return 0, err
		}
		defer lock.Release()
	}

	if cache.Decide(cfg.Force, cfg.TTL, store) == cache.Replay {
		log.Debugf("replaying entry %s", store.EntryDir())

		replayer := &Replayer{Stdout: e.Stdout, Stderr: e.Stderr}
		return replayer.Replay(store)
	}

	return e.runAndPersist(ctx, cfg, id, store)
}

func (e *Engine) runAndPersist(ctx context.Context, cfg *config.Config, id identity.Identity, store *cache.Store) (int, error) {
	log.Debugf("running %s", id.Cmdline())

	res, err := NewRunner().Run(ctx, cfg.Command, cfg.Args)
	if err != nil {
		return 0, err
	}

	if ctx.Err() != nil {
		// Interrupted: the child is gone and there is no trustworthy
		// result to persist or report.
		return 0, fmt.Errorf("interrupted: %w", ctx.Err())
	}

	// TTL zero disables caching entirely: run, echo, persist nothing.
	if cfg.TTL != 0 {
		dir, _ := id.Dir()

		entry := &cache.Entry{
			Key:     store.Key(),
			Cmdline: id.Cmdline(),
			Context: cfg.Context,
			CWD:     dir,
			Stdout:  res.Stdout,
			Stderr:  res.Stderr,
			RC:      res.RC,
		}

		if err := store.Write(entry); err != nil {
			return 0, err
		}

		e.updateIndex(cfg.CacheRoot, entry)
	}

	if _, err := e.Stdout.Write(res.Stdout); err != nil {
		return 0, fmt.Errorf("failed to write stdout: %w", err)
	}

	if _, err := e.Stderr.Write(res.Stderr); err != nil {
		return 0, fmt.Errorf("failed to write stderr: %w", err)
	}

	return res.RC, nil
}

// updateIndex mirrors entry metadata into the bbolt index. The index is
// advisory, so failures are warnings rather than errors.
func (e *Engine) updateIndex(root string, entry *cache.Entry) {
	ix, err := cache.OpenIndex(root)
	if err != nil {
		log.WithError(err).Warn("failed to open cache index")
		return
	}
	defer ix.Close()

	rec := &cache.IndexRecord{
		Key:       entry.Key,
		Cmdline:   entry.Cmdline,
		Context:   entry.Context,
		CWD:       entry.CWD,
		RC:        entry.RC,
		StdoutLen: len(entry.Stdout),
		StderrLen: len(entry.Stderr),
		CreatedAt: time.Now().UTC(),
	}

	if err := ix.Put(rec); err != nil {
		log.WithError(err).Warn("failed to update cache index")
	}
}
