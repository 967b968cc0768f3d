package utils

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic writes 'content' to 'path' by first writing to a sibling
// temporary file and renaming it into place on success. A failed compilation
// must not leave a truncated output file behind, so every driver uses this
// instead of os.WriteFile/os.Create directly.
func WriteFileAtomic(path string, content []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer func() {
		tmp.Close()
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
