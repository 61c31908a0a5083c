//go:build !linux

package main

import "os"

// writeOutput falls back to the ordinary stdlib file write on platforms
// other than Linux; this compiler's assembly target is Linux-only, so
// this path only exists to keep the module buildable elsewhere.
func writeOutput(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
