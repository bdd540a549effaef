package blockfs

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// BlockDevice is the synchronous block device blockfs is built on top
// of (spec.md §1's "buffered block device" collaborator, minus the
// buffering — that's bufcache.go's job). All offsets and lengths are in
// bytes; callers are expected to only ever touch whole BSIZE-aligned
// blocks through Buf/BufCache, never the device directly, except at
// mount and mkfs time.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
	Close() error
}

// FileDevice is a BlockDevice backed by a regular file (a disk image).
// It takes an advisory exclusive flock for the lifetime of the open
// file, so two blockfs processes can't mount the same image
// concurrently and silently corrupt each other's writes — a real
// crash-safety concern for an on-disk, crash-consistent filesystem that
// the in-process locking in spec.md §5 says nothing about, since it
// only covers concurrency within one process.
type FileDevice struct {
	f *os.File
}

// OpenFileDevice opens path as a block device, taking an advisory flock.
// Pass writable=false to open read-only (no flock is taken in that
// case — read-only mounts don't need mutual exclusion against writers
// performing the same checks).
func OpenFileDevice(path string, writable bool) (*FileDevice, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}

	if writable {
		lockType := unix.LOCK_EX | unix.LOCK_NB
		if err := unix.Flock(int(f.Fd()), lockType); err != nil {
			f.Close()
			return nil, fmt.Errorf("blockfs: image %s is already mounted: %w", path, err)
		}
	}

	return &FileDevice{f: f}, nil
}

// CreateFileDevice creates (or truncates) path and sizes it to nblocks
// blocks, for use by mkfs.go.
func CreateFileDevice(path string, nblocks uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(int64(nblocks) * BSIZE); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDevice{f: f}, nil
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error)  { return d.f.ReadAt(p, off) }
func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) { return d.f.WriteAt(p, off) }
func (d *FileDevice) Sync() error                              { return d.f.Sync() }
func (d *FileDevice) Close() error                             { return d.f.Close() }

// MemDevice is an in-memory BlockDevice, used by tests in place of a
// real file (same role as the teacher's mockReader in mock_test.go).
type MemDevice struct {
	mu   sync.Mutex
	data []byte
}

// NewMemDevice allocates an in-memory device of nblocks blocks, all
// zeroed.
func NewMemDevice(nblocks uint32) *MemDevice {
	return &MemDevice{data: make([]byte, int64(nblocks)*BSIZE)}
}

func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if off < 0 || off >= int64(len(d.data)) {
		return 0, fmt.Errorf("blockfs: read past end of device at %d", off)
	}
	n := copy(p, d.data[off:])
	return n, nil
}

func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, fmt.Errorf("blockfs: write past end of device at %d", off)
	}
	n := copy(d.data[off:], p)
	return n, nil
}

func (d *MemDevice) Sync() error  { return nil }
func (d *MemDevice) Close() error { return nil }
