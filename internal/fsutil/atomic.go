// Package fsutil holds the file-writing primitive shared by the capture
// record store and the table exporter.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile writes data to path through a temp file in the same directory,
// so readers see either the old content or the new, never a torn write. An
// existing file at path is replaced.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return write(path, data, perm, os.Rename)
}

// WriteNewFile is WriteFile that refuses to replace an existing file. The
// returned error matches os.ErrExist when path is taken.
func WriteNewFile(path string, data []byte, perm os.FileMode) error {
	return write(path, data, perm, linkNew)
}

// linkNew publishes tmp at path only if path is free. Hard links make the
// check and the publish one step; filesystems without them fall back to a
// stat followed by rename.
func linkNew(tmp, path string) error {
	err := os.Link(tmp, path)
	if err == nil || errors.Is(err, os.ErrExist) {
		return err
	}
	if _, statErr := os.Lstat(path); statErr == nil {
		return &os.LinkError{Op: "link", Old: tmp, New: path, Err: os.ErrExist}
	}
	return os.Rename(tmp, path)
}

func write(path string, data []byte, perm os.FileMode, commit func(tmp, path string) error) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	// After a rename this is a no-op; after a link it drops the extra name.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	return commit(tmpName, path)
}
