// Package cache persists memoized command executions on disk.
//
// Each execution is addressed by a 64-hex-char key and stored as a
// directory of plain artifacts:
//
//	<root>/<key>/cmdline   rendered command line (text, newline-terminated)
//	<root>/<key>/context   caller-supplied context string (text)
//	<root>/<key>/cwd       directory bound into the key (text)
//	<root>/<key>/stdout    captured standard output (raw bytes)
//	<root>/<key>/stderr    captured standard error (raw bytes)
//	<root>/<key>/rc        decimal exit status (text)
//
// An entry exists only when the directory and all six artifacts are
// present, so a crash mid-write reads as a miss rather than a corrupt
// hit. The stdout artifact is written last; its mtime is the entry's
// freshness timestamp. There is no cross-process locking: concurrent
// writers to one key race and the last writer wins (Lock is the opt-in
// alternative). Entry metadata is mirrored into a bbolt index consulted
// only by the stats and ls commands, never by the run/replay decision.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Artifact file names inside an entry directory. Renaming any of these
// breaks on-disk compatibility.
const (
	FileCmdline = "cmdline"
	FileContext = "context"
	FileCWD     = "cwd"
	FileStdout  = "stdout"
	FileStderr  = "stderr"
	FileRC      = "rc"
)

const (
	// Entries may hold private command output: no world access
	dirPerm  = 0o770
	filePerm = 0o600
)

// artifactNames lists every file an entry must contain.
var artifactNames = []string{FileCmdline, FileContext, FileCWD, FileStdout, FileStderr, FileRC}

// ErrCorruptEntry reports an entry whose rc artifact is missing or
// unparseable after Exists reported the entry complete.
var ErrCorruptEntry = errors.New("corrupt cache entry")

// Store addresses one cache entry below a root directory.
type Store struct {
	root string
	key  string
}

// NewStore creates a store for the given key under root.
func NewStore(root, key string) *Store {
	return &Store{root: root, key: key}
}

// Key returns the cache key this store addresses.
func (s *Store) Key() string {
	return s.key
}

// EntryDir returns the directory holding this entry's artifacts.
func (s *Store) EntryDir() string {
	return filepath.Join(s.root, s.key)
}

// Exists reports whether the entry directory and every artifact file
// are present. Partially-written entries therefore read as absent.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.EntryDir())
	if err != nil || !info.IsDir() {
		return false
	}

	for _, name := range artifactNames {
		if _, err := os.Stat(s.artifactPath(name)); err != nil {
			return false
		}
	}

	return true
}

// Age returns the wall-clock time since the entry was written, measured
// from the stdout artifact's mtime.
func (s *Store) Age() (time.Duration, error) {
	info, err := os.Stat(s.artifactPath(FileStdout))
	if err != nil {
		return 0, fmt.Errorf("failed to stat stdout artifact: %w", err)
	}

	return time.Since(info.ModTime()), nil
}

// Write persists an entry, replacing any previous one whole. Text
// artifacts get a trailing newline unless the value is empty (an empty
// value still produces the file, so "ran with empty output" stays
// distinguishable from "never ran"). Stdout and stderr are raw bytes.
// The stdout artifact is written last so its mtime stamps the entry only
// once everything else is in place.
func (s *Store) Write(entry *Entry) error {
	if err := os.MkdirAll(s.EntryDir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}

	if err := s.writeText(FileCmdline, entry.Cmdline); err != nil {
		return err
	}

	if err := s.writeText(FileContext, entry.Context); err != nil {
		return err
	}

	if err := s.writeText(FileCWD, entry.CWD); err != nil {
		return err
	}

	if err := s.writeText(FileRC, strconv.Itoa(entry.RC)); err != nil {
		return err
	}

	if err := s.writeRaw(FileStderr, entry.Stderr); err != nil {
		return err
	}

	return s.writeRaw(FileStdout, entry.Stdout)
}

// Read loads a previously written entry. Callers should check Exists
// first; a read failure after a positive Exists is corruption, not a
// miss.
func (s *Store) Read() (*Entry, error) {
	entry := &Entry{Key: s.key}

	var err error

	if entry.Cmdline, err = s.readText(FileCmdline); err != nil {
		return nil, err
	}

	if entry.Context, err = s.readText(FileContext); err != nil {
		return nil, err
	}

	if entry.CWD, err = s.readText(FileCWD); err != nil {
		return nil, err
	}

	if entry.Stdout, err = s.readRaw(FileStdout); err != nil {
		return nil, err
	}

	if entry.Stderr, err = s.readRaw(FileStderr); err != nil {
		return nil, err
	}

	if entry.RC, err = s.ReadRC(); err != nil {
		return nil, err
	}

	return entry, nil
}

// ReadRC parses the stored return code. A missing or malformed rc
// artifact is corruption: the engine never invents an exit status.
func (s *Store) ReadRC() (int, error) {
	data, err := os.ReadFile(s.artifactPath(FileRC))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}

	rc, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid rc %q", ErrCorruptEntry, strings.TrimSpace(string(data)))
	}

	return rc, nil
}

// OpenArtifact opens an artifact for streaming. The caller closes it.
func (s *Store) OpenArtifact(name string) (*os.File, error) {
	f, err := os.Open(s.artifactPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s artifact: %w", name, err)
	}

	return f, nil
}

func (s *Store) artifactPath(name string) string {
	return filepath.Join(s.EntryDir(), name)
}

func (s *Store) writeText(name, value string) error {
	data := []byte(value)
	if value != "" {
		data = append(data, '\n')
	}

	return s.writeRaw(name, data)
}

func (s *Store) writeRaw(name string, data []byte) error {
	if err := os.WriteFile(s.artifactPath(name), data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s artifact: %w", name, err)
	}

	return nil
}

func (s *Store) readText(name string) (string, error) {
	data, err := s.readRaw(name)
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(string(data), "\n"), nil
}

func (s *Store) readRaw(name string) ([]byte, error) {
	data, err := os.ReadFile(s.artifactPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s artifact: %w", name, err)
	}

	return data, nil
}
