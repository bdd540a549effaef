package blockfs_test

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/blockfs/blockfs"
)

// TestScenarioCreateReadClose is spec.md §8 scenario 1.
func TestScenarioCreateReadClose(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	ip, err := fsys.Create(pr, "/a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f := fsys.OpenFile(ip)
	data := bytes.Repeat([]byte{0xAB}, 100)
	if n, err := f.Write(data); err != nil || n != 100 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	f.Close()

	ip2, err := fsys.Stat(pr, "/a")
	if err != nil {
		t.Fatalf("namei /a: %v", err)
	}
	typ, size, nlink := func() (blockfs.Type, uint32, uint16) {
		fsys.IC.Ilock(ip2)
		defer fsys.IC.Iunlock(ip2)
		return ip2.Type, ip2.Size, ip2.NLink
	}()

	if size != 100 {
		t.Errorf("size = %d, want 100", size)
	}
	if nlink != 1 {
		t.Errorf("nlink = %d, want 1", nlink)
	}
	if typ != blockfs.TypeFile {
		t.Errorf("type = %v, want file", typ)
	}

	f2 := fsys.OpenFile(ip2)
	got := make([]byte, 100)
	if _, err := io.ReadFull(f2, got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("content mismatch")
	}
	f2.Close()
}

// TestScenarioIndirectAllocationBoundary is spec.md §8 scenario 2.
func TestScenarioIndirectAllocationBoundary(t *testing.T) {
	fsys, dev := newTestFSDev(t)
	pr := fsys.NewProc()

	ip, err := fsys.Create(pr, "/b")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f := fsys.OpenFile(ip)
	// Write contiguously from offset 0 through one byte past the direct
	// region — off must never exceed size, so this crosses the boundary
	// without a seek-past-EOF hole (writei rejects off > size).
	data := bytes.Repeat([]byte{0xFF}, blockfs.NDIRECT*blockfs.BSIZE+1)
	if n, err := f.Write(data); err != nil || n != len(data) {
		t.Fatalf("write: n=%d err=%v", n, err)
	}

	fsys.IC.Ilock(ip)
	indirectAddr := ip.Addrs[blockfs.NDIRECT]
	fsys.IC.Iunlock(ip)
	if indirectAddr == 0 {
		t.Fatalf("addrs[NDIRECT] is still zero after writing past the direct region")
	}
	f.Close()

	report, err := blockfs.Fsck(dev)
	if err != nil {
		t.Fatalf("fsck: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("indirect allocation left an inconsistency: %+v", report)
	}

	ip2, err := fsys.Stat(pr, "/b")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	f2 := fsys.OpenFile(ip2)
	defer f2.Close()
	got := make([]byte, len(data))
	n, err := f2.Read(got)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != len(got) {
		t.Fatalf("read: got %d bytes, want %d", n, len(got))
	}
	if !bytes.Equal(got, data) {
		t.Errorf("content mismatch across the direct/indirect boundary")
	}
}

// TestScenarioUnlinkLastLinkFreesBlocks is spec.md §8 scenario 3.
func TestScenarioUnlinkLastLinkFreesBlocks(t *testing.T) {
	fsys, dev := newTestFSDev(t)
	pr := fsys.NewProc()

	ip, err := fsys.Create(pr, "/c")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f := fsys.OpenFile(ip)
	// 10 direct blocks, then contiguously on through the remaining 2 direct
	// blocks and into 5 indirect slots — off must never exceed size, so no
	// seek past the current end of file.
	if _, err := f.Write(bytes.Repeat([]byte{1}, 10*blockfs.BSIZE)); err != nil {
		t.Fatalf("write direct: %v", err)
	}
	if _, err := f.Write(bytes.Repeat([]byte{2}, 7*blockfs.BSIZE)); err != nil {
		t.Fatalf("write indirect: %v", err)
	}
	f.Close()

	if err := fsys.Unlink(pr, "/c"); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	report, err := blockfs.Fsck(dev)
	if err != nil {
		t.Fatalf("fsck: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("unlink did not fully free blocks: %+v", report)
	}

	if _, err := fsys.Stat(pr, "/c"); err != blockfs.ErrNotFound {
		t.Fatalf("stat after unlink: got %v, want ErrNotFound", err)
	}
}

// TestScenarioDirectoryDeletionRefusesNonEmpty is spec.md §8 scenario 4.
func TestScenarioDirectoryDeletionRefusesNonEmpty(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	if _, err := fsys.Mkdir(pr, "/d"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := fsys.Create(pr, "/d/f"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := fsys.Unlink(pr, "/d"); err != blockfs.ErrNotEmpty {
		t.Fatalf("unlink /d: got %v, want ErrNotEmpty", err)
	}

	if _, err := fsys.Stat(pr, "/d"); err != nil {
		t.Fatalf("/d should still be present: %v", err)
	}
}

// TestScenarioConcurrentCreateSameName is spec.md §8 scenario 5.
func TestScenarioConcurrentCreateSameName(t *testing.T) {
	fsys := newTestFS(t)

	var wg sync.WaitGroup
	results := make([]*blockfs.Inode, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pr := fsys.NewProc()
			results[i], errs[i] = fsys.Create(pr, "/x")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if results[0].Inum != results[1].Inum {
		t.Fatalf("concurrent creates of the same path produced two different inodes: %d vs %d",
			results[0].Inum, results[1].Inum)
	}

	pr := fsys.NewProc()
	root, err := fsys.Stat(pr, "/")
	if err != nil {
		t.Fatalf("stat /: %v", err)
	}
	fsys.IC.Ilock(root)
	entries := fsys.IC.ReadDirEntries(root)
	fsys.IC.Iunlock(root)
	fsys.IC.Iput(root)

	count := 0
	for _, e := range entries {
		if e.Name == "x" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one directory entry named x, found %d", count)
	}
}

// TestScenarioOversizedPathComponent is spec.md §8 scenario 6.
func TestScenarioOversizedPathComponent(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	name := "aaaaaaaaaaaaaaaaa" // 17 bytes, >= DIRSIZ(14)
	if _, err := fsys.Create(pr, "/"+name); err != nil {
		t.Fatalf("create: %v", err)
	}

	ip, err := fsys.Stat(pr, "/"+name)
	if err != nil {
		t.Fatalf("namei with oversized component: %v", err)
	}
	fsys.IC.Iput(ip)
}
