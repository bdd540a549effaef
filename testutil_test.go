package blockfs_test

import (
	"testing"

	"github.com/blockfs/blockfs"
)

// newTestFS builds a fresh, freshly-mkfs'd, mounted filesystem over an
// in-memory device, the shared fixture every test in this package uses
// instead of hitting a real file — the same role the teacher's
// mockReader (mock_test.go) plays for squashfs.
func newTestFS(t *testing.T) *blockfs.FS {
	t.Helper()
	fsys, _ := newTestFSDev(t)
	return fsys
}

// newTestFSDev is like newTestFS but also returns the backing device, for
// tests that need to run Fsck (which operates on a device directly, not
// a mounted FS, since it never takes the in-process locks).
func newTestFSDev(t *testing.T) (*blockfs.FS, *blockfs.MemDevice) {
	t.Helper()
	dev := blockfs.NewMemDevice(1024)
	if _, err := blockfs.Mkfs(dev); err != nil {
		t.Fatalf("mkfs: %v", err)
	}
	fsys, err := blockfs.Mount(dev)
	if err != nil {
		t.Fatalf("mount: %v", err)
	}
	return fsys, dev
}
