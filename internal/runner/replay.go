package runner

import (
	"fmt"
	"io"

	"github.com/Norgate-AV/runcache/internal/cache"
)

// Replayer streams a stored entry's artifacts verbatim to the real
// sinks.
type Replayer struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Replay copies the stored stdout and stderr byte-for-byte and returns
// the stored exit status. The rc artifact is validated first: a missing
// or unparseable rc is fatal, because silently re-running instead could
// double-execute a side-effecting command.
func (r *Replayer) Replay(store *cache.Store) (int, error) {
	rc, err := store.ReadRC()
	if err != nil {
		return 0, err
	}

	if err := r.stream(store, cache.FileStdout, r.Stdout); err != nil {
		return 0, err
	}

	if err := r.stream(store, cache.FileStderr, r.Stderr); err != nil {
		return 0, err
	}

	return rc, nil
}

func (r *Replayer) stream(store *cache.Store, name string, sink io.Writer) error {
	f, err := store.OpenArtifact(name)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(sink, f); err != nil {
		return fmt.Errorf("failed to replay %s: %w", name, err)
	}

	return nil
}
