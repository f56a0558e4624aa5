package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// walkDirectory returns every regular file below dirPath keyed by its
// slash-separated path relative to dirPath.
func walkDirectory(fs afero.Fs, dirPath string) (map[string]os.FileInfo, error) {
	fileMap := make(map[string]os.FileInfo)
	walkErr := afero.Walk(fs, dirPath, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if f.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dirPath, path)
		if relErr != nil {
			return relErr
		}
		fileMap[filepath.ToSlash(rel)] = f
		return nil
	})

	return fileMap, walkErr
}

// localPathForKey maps a relative object key back to a path below dirPath.
func localPathForKey(dirPath, key string) string {
	return filepath.Join(dirPath, filepath.FromSlash(key))
}
