package blockfs

import "io"

// File is a convenience handle pairing an open inode with a byte
// offset, the Go equivalent of xv6's struct file for a regular file or
// directory. Mirrors the teacher's File (file.go), which pairs an inode
// with an io.SectionReader; blockfs's version needs Write too, so it
// tracks its own offset and calls Readi/Writei directly instead of
// going through io.ReaderAt.
type File struct {
	fs     *FS
	ip     *Inode
	offset int64
}

// OpenFile returns a File over an inode obtained from Create/Mknod/Stat.
// It takes ownership of ip's reference — the caller must not Iput it
// directly; call Close instead.
func (fs *FS) OpenFile(ip *Inode) *File {
	return &File{fs: fs, ip: ip}
}

// Read reads into p starting at the file's current offset and advances
// it by the number of bytes read.
func (f *File) Read(p []byte) (int, error) {
	f.fs.IC.Ilock(f.ip)
	n, err := f.fs.IC.Readi(f.ip, p, f.offset, len(p))
	f.fs.IC.Iunlock(f.ip)
	f.offset += int64(n)
	if err == nil && n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

// Write writes p at the file's current offset, splitting across
// multiple transactions if p is larger than writeChunk (spec.md §4.4's
// transaction-size constraint), and advances the offset by the number
// of bytes written. Refuses ErrWrongType for directories — spec.md §7
// category 1 lists "opening a non-read-only directory" as a
// user-recoverable error; File itself has no open-mode flags, so the
// check is made here, at the first write attempt, rather than at
// OpenFile time.
func (f *File) Write(p []byte) (int, error) {
	f.fs.IC.Ilock(f.ip)
	isDir := f.ip.Type == TypeDir
	f.fs.IC.Iunlock(f.ip)
	if isDir {
		return 0, ErrWrongType
	}

	total := 0
	for total < len(p) {
		chunk := len(p) - total
		if chunk > writeChunk {
			chunk = writeChunk
		}

		f.fs.Log.BeginOp()
		f.fs.IC.Ilock(f.ip)
		n, err := f.fs.IC.Writei(f.ip, p[total:total+chunk], f.offset, chunk)
		f.fs.IC.Iunlock(f.ip)
		f.fs.Log.EndOp()

		total += n
		f.offset += int64(n)
		if err != nil {
			return total, err
		}
		if n < chunk {
			break
		}
	}
	return total, nil
}

// Seek repositions the file's offset, matching io.Seeker semantics for
// whence (io.SeekStart/io.SeekCurrent/io.SeekEnd).
func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.offset = offset
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekEnd:
		f.fs.IC.Ilock(f.ip)
		size := int64(f.ip.Size)
		f.fs.IC.Iunlock(f.ip)
		f.offset = size + offset
	}
	return f.offset, nil
}

// Close releases the file's reference to its inode. Must run inside a
// transaction because dropping the last reference to an unlinked inode
// frees its content.
func (f *File) Close() error {
	f.fs.Log.BeginOp()
	f.fs.IC.Iput(f.ip)
	f.fs.Log.EndOp()
	return nil
}

// Stat returns type/size/nlink information about the open file.
func (f *File) Stat() (typ Type, size uint32, nlink uint16) {
	f.fs.IC.Ilock(f.ip)
	typ, size, nlink = f.ip.Type, f.ip.Size, f.ip.NLink
	f.fs.IC.Iunlock(f.ip)
	return
}
