package blockfs_test

import (
	"testing"

	"github.com/blockfs/blockfs"
)

// TestIgetSharesOneCacheEntryPerIdentity exercises spec.md §8's identity
// invariant: two independent Iget calls for the same (dev, inum) must
// return the same in-memory Inode, so a write through one handle is
// immediately visible through the other without re-reading disk.
func TestIgetSharesOneCacheEntryPerIdentity(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	if _, err := fsys.Create(pr, "/shared"); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, err := fsys.Stat(pr, "/shared")
	if err != nil {
		t.Fatalf("stat a: %v", err)
	}
	b, err := fsys.Stat(pr, "/shared")
	if err != nil {
		t.Fatalf("stat b: %v", err)
	}
	if a != b {
		t.Fatalf("two Stat calls on the same path returned different Inode pointers")
	}

	fsys.IC.Ilock(a)
	a.NLink = 7
	fsys.IC.Iupdate(a)
	fsys.IC.Iunlock(a)

	fsys.IC.Ilock(b)
	got := b.NLink
	fsys.IC.Iunlock(b)
	if got != 7 {
		t.Fatalf("write through a not visible through b: got NLink=%d, want 7", got)
	}

	fsys.IC.Iput(a)
	fsys.IC.Iput(b)
}

func TestCreateAfterUnlinkYieldsLiveInode(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	if _, err := fsys.Create(pr, "/gone"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ip, err := fsys.Stat(pr, "/gone")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	fsys.IC.Iput(ip) // extra reference from Stat, dropped without freeing

	if err := fsys.Unlink(pr, "/gone"); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	// The inode is now unlinked and, once its last reference dropped, its
	// on-disk type is cleared (TypeFree). Re-allocating a fresh inode and
	// confirming it is not TypeFree is the externally-observable half of
	// that contract; Ilock panicking on a stale handle is an internal
	// caller-protocol invariant documented in icache.go, not something a
	// black-box test can trigger without reaching into the package.
	ip2, err := fsys.Create(pr, "/fresh")
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}
	fsys.IC.Ilock(ip2)
	typ := ip2.Type
	fsys.IC.Iunlock(ip2)
	fsys.IC.Iput(ip2)
	if typ == blockfs.TypeFree {
		t.Fatalf("freshly created inode reports TypeFree")
	}
}
