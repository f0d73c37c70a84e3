// Package testutil mounts a go-fuse filesystem at a real kernel
// mountpoint inside a test process, so integration tests can drive it
// with ordinary file I/O (open/read/write/readdir through the kernel)
// instead of calling node methods directly.
package testutil

import (
	"fmt"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Mount holds a mounted test filesystem until Unmount is called.
type Mount struct {
	Server *fuse.Server
	Dir    string
}

// MountOptions configures MountFS.
type MountOptions struct {
	// Dir is the mountpoint; it must already exist.
	Dir string
	// Root is the filesystem to mount.
	Root fs.InodeEmbedder
	// Debug turns on go-fuse request logging.
	Debug bool
}

// MountFS mounts opts.Root at opts.Dir with all kernel cache timeouts
// zeroed, so tests observe every state change immediately rather than
// a cached attr or entry. It blocks until the kernel has completed the
// mount.
func MountFS(opts MountOptions) (*Mount, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("mount dir is required")
	}
	if opts.Root == nil {
		return nil, fmt.Errorf("root filesystem is required")
	}

	zero := time.Duration(0)
	fsopts := &fs.Options{
		EntryTimeout:    &zero,
		AttrTimeout:     &zero,
		NegativeTimeout: &zero,
	}
	fsopts.Debug = opts.Debug

	srv, err := fs.Mount(opts.Dir, opts.Root, fsopts)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", opts.Dir, err)
	}
	if err := srv.WaitMount(); err != nil {
		_ = srv.Unmount()
		return nil, fmt.Errorf("mount %s did not become ready: %w", opts.Dir, err)
	}
	return &Mount{Server: srv, Dir: opts.Dir}, nil
}

// Unmount detaches the filesystem. Safe to call once per Mount.
func (m *Mount) Unmount() error {
	return m.Server.Unmount()
}
