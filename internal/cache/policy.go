package cache

import (
	"time"

	"github.com/Norgate-AV/runcache/internal/config"
)

// Decision is the outcome of the run-vs-replay policy.
type Decision int

const (
	// Run executes the command and regenerates the entry
	Run Decision = iota

	// Replay serves the stored entry without spawning anything
	Replay
)

func (d Decision) String() string {
	if d == Replay {
		return "replay"
	}

	return "run"
}

// Decide applies the caching policy, first match wins:
//
//  1. force, or a zero TTL (caching disabled) -> Run
//  2. no complete entry on disk -> Run
//  3. finite TTL and age >= TTL -> Run; the boundary is inclusive, an
//     entry exactly TTL old is already stale
//  4. otherwise -> Replay
//
// The decision is a pure function of (force, ttl, entry existence,
// entry age); it is made exactly once per invocation.
func Decide(force bool, ttl time.Duration, store *Store) Decision {
	if force || ttl == 0 {
		return Run
	}

	if !store.Exists() {
		return Run
	}

	if ttl != config.TTLNever {
		age, err := store.Age()
		if err != nil || age >= ttl {
			return Run
		}
	}

	return Replay
}
