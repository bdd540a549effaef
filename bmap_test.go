package blockfs_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/blockfs/blockfs"
)

func TestFileReadWriteRoundTrip(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	ip, err := fsys.Create(pr, "/roundtrip")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f := fsys.OpenFile(ip)

	want := bytes.Repeat([]byte("0123456789abcdef"), 50) // 800 bytes: spans two blocks, stays in the direct region
	if n, err := f.Write(want); err != nil || n != len(want) {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}

	got := make([]byte, len(want))
	if n, err := io.ReadFull(f, got); err != nil || n != len(got) {
		t.Fatalf("read: n=%d err=%v", n, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch")
	}
	f.Close()
}

func TestFileCrossesIndirectBoundary(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	ip, err := fsys.Create(pr, "/big")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f := fsys.OpenFile(ip)

	// NDIRECT direct blocks cover blockfs.BSIZE*12 bytes; write enough to
	// force allocation of the single indirect block and a handful of the
	// blocks it points to.
	size := 20 * 512 // > NDIRECT(12)*BSIZE(512)
	want := make([]byte, size)
	for i := range want {
		want[i] = byte(i)
	}
	if n, err := f.Write(want); err != nil || n != size {
		t.Fatalf("write: n=%d err=%v", n, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	got := make([]byte, size)
	if n, err := io.ReadFull(f, got); err != nil || n != size {
		t.Fatalf("read: n=%d err=%v", n, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("indirect-block round trip mismatch")
	}
	f.Close()
}

func TestUnlinkLastLinkFreesBlocks(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	ip, err := fsys.Create(pr, "/freeme")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f := fsys.OpenFile(ip)
	if _, err := f.Write(bytes.Repeat([]byte{0xAA}, 20*512)); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	if err := fsys.Unlink(pr, "/freeme"); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	// Opening a fresh file after the unlink must not observe any of the
	// freed content; this is also exercised end-to-end by Fsck's
	// bitmap-vs-reachability check in scenario_test.go.
	ip2, err := fsys.Create(pr, "/reused")
	if err != nil {
		t.Fatalf("create reused: %v", err)
	}
	f2 := fsys.OpenFile(ip2)
	n, err := f2.Read(make([]byte, 10))
	if err != io.EOF && n != 0 {
		t.Fatalf("new file should start empty, got n=%d err=%v", n, err)
	}
	f2.Close()
}

func TestWriteiRejectsOversizedOffset(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	ip, err := fsys.Create(pr, "/huge")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f := fsys.OpenFile(ip)
	defer f.Close()

	if _, err := f.Seek(int64(blockfs.MAXFILE)*512+1, io.SeekStart); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if _, err := f.Write([]byte("x")); err != blockfs.ErrTooLarge {
		t.Fatalf("write past MAXFILE: got %v, want ErrTooLarge", err)
	}
}

func TestWriteToDirectoryIsRejected(t *testing.T) {
	fsys := newTestFS(t)
	pr := fsys.NewProc()

	if _, err := fsys.Mkdir(pr, "/d"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	ip, err := fsys.Stat(pr, "/d")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	f := fsys.OpenFile(ip)
	defer f.Close()

	if _, err := f.Write([]byte("x")); err != blockfs.ErrWrongType {
		t.Fatalf("write to directory: got %v, want ErrWrongType", err)
	}
}
