//go:build linux

package main

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// writeOutput writes data to path via raw unix syscalls rather than
// os.WriteFile, exercising the same low-level open/write/close path the
// rest of this module's retrieved pack reaches for on Linux.
func writeOutput(path string, data []byte) error {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_TRUNC|unix.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer unix.Close(fd)

	for written := 0; written < len(data); {
		n, err := unix.Write(fd, data[written:])
		if err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
		written += n
	}
	return nil
}
