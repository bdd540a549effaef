package blockfs

// FS is a mounted blockfs volume: the superblock, buffer cache, log and
// inode cache bound together, plus the operations layer spec.md §1
// explicitly treats as out of scope ("the system-call argument
// marshalling layer") but which every caller of this package — tests,
// the CLI, the FUSE adapter — needs in order to actually drive the
// core. These functions have no argument-marshalling of their own (no
// syscall numbers, no copy-from-user); they are the in-process Go
// equivalent of xv6's sys_open/sys_mkdir/sys_link/sys_unlink.
type FS struct {
	sb  *Superblock
	Buf *BufCache
	Log *Log
	IC  *ICache
}

// Mount reads the superblock from dev, replays any pending log
// transaction, and returns a ready-to-use FS.
func Mount(dev BlockDevice) (*FS, error) {
	sb, err := ReadSuperblock(dev)
	if err != nil {
		return nil, err
	}

	buf := NewBufCache(dev)
	log := OpenLog(sb, buf)
	rt := &fsRuntime{sb: sb, buf: buf, log: log}

	return &FS{sb: sb, Buf: buf, Log: log, IC: NewICache(rt)}, nil
}

// NewProc returns a process context whose working directory is the
// filesystem root. Every top-level operation below is relative to a
// *Proc's Cwd.
func (fs *FS) NewProc() *Proc {
	return &Proc{Cwd: fs.IC.Iget(ROOTDEV, ROOTINO)}
}

// Chdir changes pr's working directory to path, which must resolve to a
// directory. Must run inside a transaction (namex may Iput intermediate
// inodes).
func (fs *FS) Chdir(pr *Proc, path string) error {
	fs.Log.BeginOp()
	defer fs.Log.EndOp()

	ip, err := fs.IC.Namei(pr, path)
	if err != nil {
		return err
	}
	fs.IC.Ilock(ip)
	if ip.Type != TypeDir {
		fs.IC.Iunlock(ip)
		fs.IC.Iput(ip)
		return ErrNotDirectory
	}
	fs.IC.Iunlock(ip)

	fs.IC.Iput(pr.Cwd)
	pr.Cwd = ip
	return nil
}

// Stat returns a referenced, unlocked handle for path without creating
// anything. Caller must Iput it (via fs.IC.Iput) when done.
func (fs *FS) Stat(pr *Proc, path string) (*Inode, error) {
	fs.Log.BeginOp()
	defer fs.Log.EndOp()
	return fs.IC.Namei(pr, path)
}

// Mknod creates a device inode at path with the given major/minor and
// links it into its parent directory. See Create for the general
// create-or-open algorithm this specializes.
func (fs *FS) Mknod(pr *Proc, path string, major, minor uint16) (*Inode, error) {
	fs.Log.BeginOp()
	defer fs.Log.EndOp()
	return fs.create(pr, path, TypeDev, major, minor)
}

// Mkdir creates an empty directory at path, wiring up "." and "..".
func (fs *FS) Mkdir(pr *Proc, path string) (*Inode, error) {
	fs.Log.BeginOp()
	defer fs.Log.EndOp()
	return fs.create(pr, path, TypeDir, 0, 0)
}

// Create creates a regular file at path, or returns the existing inode
// if one of the compatible type (file or device) already exists there —
// matching spec.md §8 scenario 5's "concurrent create same name"
// contract: the loser of the race observes the winner's inode rather
// than erroring.
func (fs *FS) Create(pr *Proc, path string) (*Inode, error) {
	fs.Log.BeginOp()
	defer fs.Log.EndOp()
	return fs.create(pr, path, TypeFile, 0, 0)
}

// create implements the shared algorithm behind Create/Mkdir/Mknod:
// resolve the parent, check for an existing entry (returning it if
// type-compatible), otherwise allocate a new inode, wire up directory
// bookkeeping ("." and ".." for directories, the parent link count for
// ".."), and link it into the parent. Returns a referenced, unlocked
// inode. Caller must already be inside a transaction.
func (fs *FS) create(pr *Proc, path string, typ Type, major, minor uint16) (*Inode, error) {
	var name string
	dp, err := fs.IC.NameiParent(pr, path, &name)
	if err != nil {
		return nil, err
	}
	if name == "" {
		fs.IC.Iput(dp)
		return nil, ErrInvalidName
	}

	fs.IC.Ilock(dp)

	if existing, _, lerr := fs.IC.Dirlookup(dp, name); lerr == nil {
		fs.IC.Iunlock(dp)
		fs.IC.Iput(dp)

		fs.IC.Ilock(existing)
		if typ == TypeFile && (existing.Type == TypeFile || existing.Type == TypeDev) {
			fs.IC.Iunlock(existing)
			return existing, nil
		}
		fs.IC.Iunlock(existing)
		fs.IC.Iput(existing)
		return nil, ErrExists
	}

	ip := fs.IC.Ialloc(dp.Dev, typ)
	fs.IC.Ilock(ip)
	ip.Major = major
	ip.Minor = minor
	ip.NLink = 1
	fs.IC.Iupdate(ip)

	if typ == TypeDir {
		// "." does not count toward the child's own link count (it
		// would make every directory self-referential and break the
		// acyclic nlink accounting spec.md §9 calls out); ".." bumps
		// the parent's.
		if err := fs.IC.Dirlink(ip, ".", ip.Inum); err != nil {
			panic("blockfs: create: failed to link .: " + err.Error())
		}
		if err := fs.IC.Dirlink(ip, "..", dp.Inum); err != nil {
			panic("blockfs: create: failed to link ..: " + err.Error())
		}
		dp.NLink++
		fs.IC.Iupdate(dp)
	}

	if err := fs.IC.Dirlink(dp, name, ip.Inum); err != nil {
		panic("blockfs: create: failed to link into parent: " + err.Error())
	}

	fs.IC.Iunlock(ip)
	fs.IC.Iunlock(dp)
	fs.IC.Iput(dp)
	return ip, nil
}

// Link adds a second name (newPath) for the file already named oldPath.
// Refuses directories (hard links to directories are not supported,
// matching xv6). On any failure after the NLink bump, the bump is
// compensated (nlink--  + Iupdate) within the same transaction — per
// spec.md §7/§9, a failure of that compensating write is treated as
// fatal rather than left inconsistent.
func (fs *FS) Link(pr *Proc, oldPath, newPath string) error {
	fs.Log.BeginOp()
	defer fs.Log.EndOp()

	ip, err := fs.IC.Namei(pr, oldPath)
	if err != nil {
		return err
	}

	fs.IC.Ilock(ip)
	if ip.Type == TypeDir {
		fs.IC.Iunlock(ip)
		fs.IC.Iput(ip)
		return ErrIsDirectory
	}
	ip.NLink++
	fs.IC.Iupdate(ip)
	fs.IC.Iunlock(ip)

	var name string
	dp, err := fs.IC.NameiParent(pr, newPath, &name)
	if err != nil {
		fs.compensateLink(ip)
		return err
	}

	fs.IC.Ilock(dp)
	sameDev := dp.Dev == ip.Dev
	linkErr := error(nil)
	if !sameDev {
		linkErr = ErrNotDirectory // no cross-device links (single-device assumption anyway)
	} else {
		linkErr = fs.IC.Dirlink(dp, name, ip.Inum)
	}
	fs.IC.Iunlock(dp)
	fs.IC.Iput(dp)

	if linkErr != nil {
		fs.compensateLink(ip)
		fs.IC.Iput(ip)
		return linkErr
	}

	fs.IC.Iput(ip)
	return nil
}

func (fs *FS) compensateLink(ip *Inode) {
	fs.IC.Ilock(ip)
	ip.NLink--
	fs.IC.Iupdate(ip)
	fs.IC.Iunlock(ip)
}

// Unlink removes path's directory entry and drops the target's link
// count, freeing its content if that was the last link. Refuses to
// remove "." or ".." and refuses non-empty directories.
func (fs *FS) Unlink(pr *Proc, path string) error {
	fs.Log.BeginOp()
	defer fs.Log.EndOp()

	var name string
	dp, err := fs.IC.NameiParent(pr, path, &name)
	if err != nil {
		return err
	}
	if name == "." || name == ".." {
		fs.IC.Iput(dp)
		return ErrInvalidName
	}

	fs.IC.Ilock(dp)

	ip, off, lerr := fs.IC.Dirlookup(dp, name)
	if lerr != nil {
		fs.IC.Iunlock(dp)
		fs.IC.Iput(dp)
		return lerr
	}

	fs.IC.Ilock(ip)

	if ip.NLink < 1 {
		panic("blockfs: unlink: target has nlink < 1")
	}
	if ip.Type == TypeDir && !fs.IC.isDirEmpty(ip) {
		fs.IC.Iunlock(ip)
		fs.IC.Iput(ip)
		fs.IC.Iunlock(dp)
		fs.IC.Iput(dp)
		return ErrNotEmpty
	}

	empty := writeDirentBytes(dirent{})
	if n, werr := fs.IC.Writei(dp, empty, int64(off), direntSize); werr != nil || n != direntSize {
		panic("blockfs: unlink: failed to clear directory entry")
	}

	if ip.Type == TypeDir {
		dp.NLink--
		fs.IC.Iupdate(dp)
	}
	fs.IC.Iunlock(dp)
	fs.IC.Iput(dp)

	ip.NLink--
	fs.IC.Iupdate(ip)
	fs.IC.Iunlock(ip)
	fs.IC.Iput(ip)
	return nil
}
