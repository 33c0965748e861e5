package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/runcache/internal/cache"
	"github.com/Norgate-AV/runcache/internal/config"
	"github.com/Norgate-AV/runcache/internal/identity"
)

// testConfig memoizes a shell script that also appends a line to marker,
// so tests can count how many times the command really executed.
func testConfig(t *testing.T, script string) *config.Config {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	return &config.Config{
		TTL:       config.TTLNever,
		CacheRoot: t.TempDir(),
		CWDMode:   config.CWDNo,
		Command:   "sh",
		Args:      []string{"-c", script},
	}
}

func markerScript(t *testing.T, body string) (string, string) {
	t.Helper()

	marker := filepath.Join(t.TempDir(), "marker")

	return fmt.Sprintf("%s; echo run >> %s", body, marker), marker
}

// chdir is t.Chdir for toolchains predating testing.T.Chdir (Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}

func countRuns(t *testing.T, marker string) int {
	t.Helper()

	data, err := os.ReadFile(marker)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)

	return bytes.Count(data, []byte("run\n"))
}

func entryStore(t *testing.T, cfg *config.Config) *cache.Store {
	t.Helper()

	id, err := identity.FromConfig(cfg)
	require.NoError(t, err)

	return cache.NewStore(cfg.CacheRoot, id.Key())
}

func runEngine(t *testing.T, cfg *config.Config) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	engine := &Engine{Stdout: &stdout, Stderr: &stderr}

	rc, err := engine.Run(context.Background(), cfg)
	require.NoError(t, err)

	return rc, stdout.String(), stderr.String()
}

func TestEngine_RunThenReplay(t *testing.T) {
	script, marker := markerScript(t, "echo hello")
	cfg := testConfig(t, script)

	rc, stdout, _ := runEngine(t, cfg)
	assert.Equal(t, 0, rc)
	assert.Equal(t, "hello\n", stdout)
	assert.Equal(t, 1, countRuns(t, marker))

	// Identical invocation replays without spawning the command again
	rc, stdout, _ = runEngine(t, cfg)
	assert.Equal(t, 0, rc)
	assert.Equal(t, "hello\n", stdout)
	assert.Equal(t, 1, countRuns(t, marker), "replay must not re-execute")

	assert.True(t, entryStore(t, cfg).Exists())
}

func TestEngine_FailureIsMemoized(t *testing.T) {
	script, marker := markerScript(t, "echo oops >&2")
	cfg := testConfig(t, script+"; exit 3")

	rc, _, stderr := runEngine(t, cfg)
	assert.Equal(t, 3, rc)
	assert.Equal(t, "oops\n", stderr)

	rc, _, stderr = runEngine(t, cfg)
	assert.Equal(t, 3, rc, "replay must report the original exit status")
	assert.Equal(t, "oops\n", stderr)
	assert.Equal(t, 1, countRuns(t, marker))
}

func TestEngine_TTLExpiryReruns(t *testing.T) {
	script, marker := markerScript(t, "echo hello")
	cfg := testConfig(t, script)
	cfg.TTL = 1 * time.Second

	runEngine(t, cfg)
	assert.Equal(t, 1, countRuns(t, marker))

	// Backdate the entry past the TTL instead of sleeping
	store := entryStore(t, cfg)
	past := time.Now().Add(-2 * time.Second)
	require.NoError(t, os.Chtimes(filepath.Join(store.EntryDir(), cache.FileStdout), past, past))

	runEngine(t, cfg)
	assert.Equal(t, 2, countRuns(t, marker), "an expired entry must be regenerated")
}

func TestEngine_ForceReruns(t *testing.T) {
	script, marker := markerScript(t, "echo hello")
	cfg := testConfig(t, script)
	cfg.Force = true

	runEngine(t, cfg)
	runEngine(t, cfg)

	assert.Equal(t, 2, countRuns(t, marker))
}

func TestEngine_ZeroTTLNeverPersists(t *testing.T) {
	script, marker := markerScript(t, "echo hello")
	cfg := testConfig(t, script)
	cfg.TTL = 0

	rc, stdout, _ := runEngine(t, cfg)
	assert.Equal(t, 0, rc)
	assert.Equal(t, "hello\n", stdout)

	runEngine(t, cfg)

	assert.Equal(t, 2, countRuns(t, marker))
	assert.False(t, entryStore(t, cfg).Exists(), "ttl 0 must not write entries")
}

func TestEngine_EmptyOutputRoundTrip(t *testing.T) {
	script, marker := markerScript(t, "true")
	cfg := testConfig(t, script)

	rc, stdout, stderr := runEngine(t, cfg)
	assert.Equal(t, 0, rc)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)

	rc, stdout, stderr = runEngine(t, cfg)
	assert.Equal(t, 0, rc)
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
	assert.Equal(t, 1, countRuns(t, marker))
}

func TestEngine_DistinctWorkingDirectories(t *testing.T) {
	script, marker := markerScript(t, "echo hello")
	cfg := testConfig(t, script)
	cfg.CWDMode = config.CWDYes

	dirA := t.TempDir()
	dirB := t.TempDir()

	chdir(t, dirA)
	runEngine(t, cfg)

	chdir(t, dirB)
	runEngine(t, cfg)

	assert.Equal(t, 2, countRuns(t, marker), "each directory gets its own entry")

	entries, err := os.ReadDir(cfg.CacheRoot)
	require.NoError(t, err)

	var keys int
	for _, e := range entries {
		if e.IsDir() && cache.IsKey(e.Name()) {
			keys++
		}
	}
	assert.Equal(t, 2, keys)
}

func TestEngine_ContextDistinguishesEntries(t *testing.T) {
	script, marker := markerScript(t, "echo hello")
	cfg := testConfig(t, script)

	runEngine(t, cfg)

	cfg.Context = "other"
	runEngine(t, cfg)

	assert.Equal(t, 2, countRuns(t, marker))
}

func TestEngine_CorruptEntryIsFatal(t *testing.T) {
	script, marker := markerScript(t, "echo hello")
	cfg := testConfig(t, script)

	runEngine(t, cfg)

	store := entryStore(t, cfg)
	require.NoError(t, os.WriteFile(filepath.Join(store.EntryDir(), cache.FileRC), []byte("garbage\n"), 0o600))

	var stdout, stderr bytes.Buffer
	engine := &Engine{Stdout: &stdout, Stderr: &stderr}

	_, err := engine.Run(context.Background(), cfg)
	require.ErrorIs(t, err, cache.ErrCorruptEntry)

	// The engine must not fall back to re-running a decided replay
	assert.Equal(t, 1, countRuns(t, marker))
}

func TestEngine_SpawnFailure(t *testing.T) {
	cfg := testConfig(t, "true")
	cfg.Command = "/nonexistent/no-such-binary"
	cfg.Args = nil

	engine := &Engine{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	_, err := engine.Run(context.Background(), cfg)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)

	assert.False(t, entryStore(t, cfg).Exists(), "spawn failures must not be cached")
}

func TestEngine_WithLock(t *testing.T) {
	script, marker := markerScript(t, "echo hello")
	cfg := testConfig(t, script)
	cfg.Lock = true

	rc, stdout, _ := runEngine(t, cfg)
	assert.Equal(t, 0, rc)
	assert.Equal(t, "hello\n", stdout)

	runEngine(t, cfg)
	assert.Equal(t, 1, countRuns(t, marker))
}

func TestEngine_UpdatesIndex(t *testing.T) {
	script, _ := markerScript(t, "echo hello")
	cfg := testConfig(t, script)

	runEngine(t, cfg)

	ix, err := cache.OpenIndex(cfg.CacheRoot)
	require.NoError(t, err)
	defer ix.Close()

	records, err := ix.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].RC)
	assert.Equal(t, len("hello\n"), records[0].StdoutLen)
}
