package blockfs_test

import (
	"bytes"
	"testing"

	"github.com/blockfs/blockfs"
)

// TestBitmapConsistencyAfterAllocAndFree drives block allocation and
// freeing indirectly through file writes/unlinks and checks the result
// with Fsck, since Balloc/Bfree themselves are not part of the public
// surface.
func TestBitmapConsistencyAfterAllocAndFree(t *testing.T) {
	fsys, dev := newTestFSDev(t)
	pr := fsys.NewProc()

	for i := 0; i < 5; i++ {
		ip, err := fsys.Create(pr, "/f")
		if err != nil {
			t.Fatalf("create (round %d): %v", i, err)
		}
		f := fsys.OpenFile(ip)
		if _, err := f.Write(bytes.Repeat([]byte{byte(i)}, 3*512)); err != nil {
			t.Fatalf("write (round %d): %v", i, err)
		}
		f.Close()
		if err := fsys.Unlink(pr, "/f"); err != nil {
			t.Fatalf("unlink (round %d): %v", i, err)
		}
	}

	report, err := blockfs.Fsck(dev)
	if err != nil {
		t.Fatalf("fsck: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("repeated alloc/free left inconsistency: %+v", report)
	}
}
