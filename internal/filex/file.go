// Package filex contains the filesystem helpers of the CLI: preparing the
// cache location and expanding upload arguments into regular files.
package filex

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// EnsureParentDir creates the directory that will hold path and returns it.
// In-memory SQLite DSNs have no directory and are returned unchanged.
func EnsureParentDir(path string) (string, error) {
	if path == "" || path == ":memory:" {
		return "", nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// ExpandPaths turns upload arguments into a list of regular files. A
// directory contributes every regular file below it in lexical order;
// hidden entries inside directories are skipped. Duplicates are dropped.
func ExpandPaths(args []string) ([]string, error) {
	seen := make(map[string]struct{}, len(args))
	out := make([]string, 0, len(args))

	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, arg := range args {
		st, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !st.IsDir() {
			add(filepath.Clean(arg))
			continue
		}

		var found []string
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != arg && len(d.Name()) > 0 && d.Name()[0] == '.' {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}

	return out, nil
}
