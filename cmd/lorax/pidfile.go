package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/loramesh/lorax/internal/util"
)

// writePIDFile records the process ID for the service manager and returns a
// function that removes the file.
func writePIDFile(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pid directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write pid file: %w", err)
	}
	return func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			util.LogWarning("failed to remove pid file %s: %v", path, err)
		}
	}, nil
}
