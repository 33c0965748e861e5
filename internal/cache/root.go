package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Clear removes every entry directory under root and resets the index.
func Clear(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() || !IsKey(e.Name()) {
			continue
		}

		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return fmt.Errorf("failed to remove entry %s: %w", e.Name(), err)
		}
	}

	ix, err := OpenIndex(root)
	if err != nil {
		return err
	}
	defer ix.Close()

	return ix.Reset()
}

// Size totals artifact bytes under root, excluding the index database.
func Size(root string) (int64, error) {
	var total int64

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !info.IsDir() && info.Name() != indexFile {
			total += info.Size()
		}

		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	return total, nil
}

// IsKey reports whether name looks like a cache key: 64 lowercase hex
// characters.
func IsKey(name string) bool {
	if len(name) != 64 {
		return false
	}

	for _, r := range name {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}

	return true
}
