package blockfs

// A directory is an ordinary file whose Size is a multiple of
// direntSize and whose content is a sequence of fixed-size entries
// (spec.md §4.5). inum==0 marks a free slot (a tombstone left behind by
// unlink, or padding before an append). Names are compared byte-wise up
// to DIRSIZ and are not NUL-terminated if they fill the field exactly —
// callers must never treat the name bytes as a C string.
//
// Structurally grounded on the teacher's dirReader/direntry (dir.go): a
// small fixed-header-then-entries iterator over a size-bounded region.
// squashfs directories are stored in compressed metadata blocks with a
// variable-length header per run of entries; blockfs directories are the
// flat, fixed-size-entry layout spec.md describes, so the "header" here
// is nothing more than the dinode's own Size field, and every entry is
// the same width.

func encodeName(name string) [DIRSIZ]byte {
	var out [DIRSIZ]byte
	copy(out[:], name)
	return out
}

func decodeName(b [DIRSIZ]byte) string {
	n := 0
	for n < DIRSIZ && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

type dirent struct {
	Inum uint16
	Name [DIRSIZ]byte
}

func readDirent(data []byte) dirent {
	var de dirent
	de.Inum = le16(data[0:2])
	copy(de.Name[:], data[2:2+DIRSIZ])
	return de
}

func writeDirentBytes(de dirent) []byte {
	buf := make([]byte, direntSize)
	putLE16(buf[0:2], de.Inum)
	copy(buf[2:2+DIRSIZ], de.Name[:])
	return buf
}

// Dirlookup scans dp (which must be a directory) for name, returning a
// referenced, unlocked handle for the matching inode and the byte offset
// of its entry. The caller must hold dp's sleep-lock. Returns
// ErrNotDirectory if dp is not a directory, ErrNotFound if no entry
// matches.
func (ic *ICache) Dirlookup(dp *Inode, name string) (ip *Inode, offset uint32, err error) {
	if dp.Type != TypeDir {
		return nil, 0, ErrNotDirectory
	}

	want := encodeName(name)
	buf := make([]byte, direntSize)

	for off := uint32(0); off < dp.Size; off += direntSize {
		n, rerr := ic.Readi(dp, buf, int64(off), direntSize)
		if rerr != nil || n != direntSize {
			break
		}
		de := readDirent(buf)
		if de.Inum == 0 {
			continue
		}
		if de.Name == want {
			return ic.Iget(dp.Dev, uint32(de.Inum)), off, nil
		}
	}
	return nil, 0, ErrNotFound
}

// Dirlink adds an entry mapping name to inum inside directory dp.
// Refuses with ErrExists if name already resolves. Reuses the first free
// (tombstoned) slot if one exists, otherwise appends at dp.Size. Does
// not adjust the target inode's NLink — the caller owns that accounting
// (see Link/Create/Mkdir in ops.go).
func (ic *ICache) Dirlink(dp *Inode, name string, inum uint32) error {
	if existing, _, err := ic.Dirlookup(dp, name); err == nil {
		ic.Iput(existing)
		return ErrExists
	}

	de := dirent{Inum: uint16(inum), Name: encodeName(name)}
	buf := make([]byte, direntSize)

	var off uint32
	found := false
	for off = 0; off < dp.Size; off += direntSize {
		n, rerr := ic.Readi(dp, buf, int64(off), direntSize)
		if rerr != nil || n != direntSize {
			panic("blockfs: dirlink: short directory read")
		}
		if readDirent(buf).Inum == 0 {
			found = true
			break
		}
	}
	if !found {
		off = dp.Size
	}

	if n, err := ic.Writei(dp, writeDirentBytes(de), int64(off), direntSize); err != nil || n != direntSize {
		panic("blockfs: dirlink: failed to write directory entry")
	}
	return nil
}

// DirEntry is a single resolved directory entry, returned by
// ReadDirEntries for callers (the CLI, the FUSE adapter) that need to
// enumerate a directory's contents rather than look up one name.
type DirEntry struct {
	Name string
	Inum uint32
}

// ReadDirEntries returns every live (non-tombstoned) entry of directory
// dp, including "." and "..". Caller must hold dp's sleep-lock.
func (ic *ICache) ReadDirEntries(dp *Inode) []DirEntry {
	var out []DirEntry
	buf := make([]byte, direntSize)
	for off := uint32(0); off < dp.Size; off += direntSize {
		n, err := ic.Readi(dp, buf, int64(off), direntSize)
		if err != nil || n != direntSize {
			break
		}
		de := readDirent(buf)
		if de.Inum == 0 {
			continue
		}
		out = append(out, DirEntry{Name: decodeName(de.Name), Inum: uint32(de.Inum)})
	}
	return out
}

// isDirEmpty reports whether dp (a directory) contains only "." and
// "..". Caller must hold dp's sleep-lock.
func (ic *ICache) isDirEmpty(dp *Inode) bool {
	buf := make([]byte, direntSize)
	for off := uint32(2 * direntSize); off < dp.Size; off += direntSize {
		n, err := ic.Readi(dp, buf, int64(off), direntSize)
		if err != nil || n != direntSize {
			panic("blockfs: isdirempty: short directory read")
		}
		if readDirent(buf).Inum != 0 {
			return false
		}
	}
	return true
}
