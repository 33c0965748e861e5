package cache

// Entry is the in-memory form of one memoized execution.
type Entry struct {
	// Key is the 64-hex-char cache key addressing this entry
	Key string

	// Cmdline is the rendered command line that produced the entry
	Cmdline string

	// Context is the caller-supplied context string, if any
	Context string

	// CWD is the directory bound into the cache key at run time
	CWD string

	// Stdout and Stderr are the captured raw output bytes
	Stdout []byte
	Stderr []byte

	// RC is the command's exit status
	RC int
}
