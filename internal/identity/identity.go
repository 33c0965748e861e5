// Package identity derives a stable cache key from execution identity:
// who ran what, and where.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Norgate-AV/runcache/internal/config"
)

// Identity captures everything that distinguishes one execution from
// another: the command line, the invoking user, either the working
// directory or the home directory (chosen by CWDMode), and an optional
// context string.
type Identity struct {
	UID     int
	GID     int
	Command string
	Args    []string
	Context string

	// CWDMode selects which directory binds the key: yes -> CWD,
	// no -> HOME, auto -> CWD for relative-path invocations, HOME
	// otherwise.
	CWDMode string
	CWD     string
	Home    string
}

// FromConfig builds the identity of the current process invocation.
func FromConfig(cfg *config.Config) (Identity, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get working directory: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get home directory: %w", err)
	}

	return Identity{
		UID:     os.Getuid(),
		GID:     os.Getgid(),
		Command: cfg.Command,
		Args:    cfg.Args,
		Context: cfg.Context,
		CWDMode: cfg.CWDMode,
		CWD:     cwd,
		Home:    home,
	}, nil
}

// Cmdline renders the command and its arguments as a single line.
// Arguments containing whitespace are quoted, so two different argument
// vectors can never render to the same line.
func (id Identity) Cmdline() string {
	parts := make([]string, 0, len(id.Args)+1)
	parts = append(parts, quoteArg(id.Command))

	for _, arg := range id.Args {
		parts = append(parts, quoteArg(arg))
	}

	return strings.Join(parts, " ")
}

// Dir returns the directory bound into the key and whether it is the
// working directory (as opposed to the home directory).
func (id Identity) Dir() (string, bool) {
	switch id.CWDMode {
	case config.CWDYes:
		return id.CWD, true
	case config.CWDNo:
		return id.Home, false
	default:
		// A relative-path invocation like ./build.sh resolves against
		// the working directory, so bind it. Plain names and absolute
		// paths do not depend on where they were invoked from.
		if !filepath.IsAbs(id.Command) && strings.ContainsRune(id.Command, os.PathSeparator) {
			return id.CWD, true
		}

		return id.Home, false
	}
}

// Key computes the cache key: an HMAC-SHA512 over the rendered command
// line (followed by the context, when present), keyed by the who/where
// fields, reduced to a SHA-256 hex digest. Binding UID, GID and the
// chosen directory into the MAC key (rather than concatenating them into
// the message) means two users or directories can never share a key even
// if command line and context collide exactly.
func (id Identity) Key() string {
	dir, isCWD := id.Dir()

	label := "HOME"
	if isCWD {
		label = "CWD"
	}

	material := strings.Join([]string{
		"UID=" + strconv.Itoa(id.UID),
		"GID=" + strconv.Itoa(id.GID),
		label + "=" + dir,
	}, "\n")

	mac := hmac.New(sha512.New, []byte(material))
	mac.Write([]byte(id.Cmdline()))

	if id.Context != "" {
		mac.Write([]byte(id.Context))
	}

	sum := sha256.Sum256(mac.Sum(nil))

	return hex.EncodeToString(sum[:])
}

func quoteArg(arg string) string {
	if strings.ContainsAny(arg, " \t\n") {
		return strconv.Quote(arg)
	}

	return arg
}
