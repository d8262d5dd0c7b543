//go:build linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync skips the metadata flush a full fsync pays for; page writes
// never change the file length except through AllocatePage. The meta page
// recording the page count is written only on file creation and by Close.
func fdatasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
