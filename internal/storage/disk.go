// Package storage reports on-disk usage of the local vector snapshot.
package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// SnapshotBytes returns the size of the snapshot at path plus any temp files left
// next to it by an interrupted save. A missing snapshot counts as zero.
func SnapshotBytes(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		info = nil
	case err != nil:
		return 0, err
	}
	var total int64
	if info != nil {
		total = info.Size()
	}
	n, err := StaleTempBytes(path)
	return total + n, err
}

// StaleTempBytes sums the temp files matching the snapshot's save pattern.
func StaleTempBytes(path string) (int64, error) {
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), filepath.Base(path)+".*.tmp"))
	if err != nil {
		return 0, err
	}
	var total int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
