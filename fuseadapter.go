//go:build fuse

package blockfs

import (
	"context"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// fuseNode adapts a blockfs.Inode into go-fuse's tree-organized node API
// (github.com/hanwen/go-fuse/v2/fs.InodeEmbedder). Grounded on the
// teacher's inode_fuse.go — same per-node Lookup/Open/OpenDir/ReadDir
// shape, same publicInodeNum-style "root is special" mapping — but
// rebuilt against the modern node API instead of the teacher's
// low-level fuse.RawFileSystem one, since the teacher's version is
// wired to an internal apkgfs helper package (FillAttr's ModeToUnix,
// idTable) that has no equivalent outside its original repo.
type fuseNode struct {
	fs.Inode

	fsys *FS
	ip   *Inode

	mu sync.Mutex
}

var (
	_ fs.InodeEmbedder = (*fuseNode)(nil)
	_ fs.NodeLookuper  = (*fuseNode)(nil)
	_ fs.NodeReaddirer = (*fuseNode)(nil)
	_ fs.NodeGetattrer = (*fuseNode)(nil)
	_ fs.NodeOpener    = (*fuseNode)(nil)
	_ fs.NodeReader    = (*fuseNode)(nil)
	_ fs.NodeWriter    = (*fuseNode)(nil)
	_ fs.NodeCreater   = (*fuseNode)(nil)
	_ fs.NodeMkdirer   = (*fuseNode)(nil)
	_ fs.NodeUnlinker  = (*fuseNode)(nil)
)

func stableAttr(ip *Inode) fs.StableAttr {
	mode := uint32(syscall.S_IFREG)
	if ip.Type == TypeDir {
		mode = syscall.S_IFDIR
	}
	return fs.StableAttr{Mode: mode, Ino: uint64(ip.Inum)}
}

func (n *fuseNode) wrap(ip *Inode) *fs.Inode {
	return n.NewInode(context.Background(), &fuseNode{fsys: n.fsys, ip: ip}, stableAttr(ip))
}

func (n *fuseNode) fillAttrOut(ip *Inode, attr *fuse.Attr) {
	n.fsys.IC.Ilock(ip)
	attr.Ino = uint64(ip.Inum)
	attr.Size = uint64(ip.Size)
	attr.Nlink = uint32(ip.NLink)
	attr.Mode = uint32(ip.Type.Mode().Perm())
	if ip.Type == TypeDir {
		attr.Mode |= syscall.S_IFDIR
	} else {
		attr.Mode |= syscall.S_IFREG
	}
	n.fsys.IC.Iunlock(ip)
}

// Lookup resolves name within n, the directory-inode-backed node it was
// built for. Grounded on dir.go's Dirlookup, wired through the same
// lock-then-scan-then-unlock discipline every op in ops.go follows.
func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.fsys.IC.Ilock(n.ip)
	child, _, err := n.fsys.IC.Dirlookup(n.ip, name)
	n.fsys.IC.Iunlock(n.ip)
	if err != nil {
		return nil, syscall.ENOENT
	}
	n.fillAttrOut(child, &out.Attr)
	return n.wrap(child), 0
}

func (n *fuseNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.fillAttrOut(n.ip, &out.Attr)
	return 0
}

// dirStream is a slice-backed fs.DirStream, the Go-FUSE equivalent of
// the teacher's inode_fuse.go ReadDir loop, restructured to the pull
// (HasNext/Next) shape the modern API expects instead of the push
// (out.Add) shape the teacher's fuse.DirEntryList used.
type dirStream struct {
	entries []fuse.DirEntry
	pos     int
}

func (d *dirStream) HasNext() bool { return d.pos < len(d.entries) }
func (d *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	e := d.entries[d.pos]
	d.pos++
	return e, 0
}
func (d *dirStream) Close() {}

func (n *fuseNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.fsys.IC.Ilock(n.ip)
	entries := n.fsys.IC.ReadDirEntries(n.ip)
	n.fsys.IC.Iunlock(n.ip)

	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		ref := n.fsys.IC.Iget(n.ip.Dev, e.Inum)
		n.fsys.IC.Ilock(ref)
		if ref.Type == TypeDir {
			mode = syscall.S_IFDIR
		}
		n.fsys.IC.Iunlock(ref)
		n.fsys.IC.Iput(ref)
		list = append(list, fuse.DirEntry{Name: e.Name, Ino: uint64(e.Inum), Mode: mode})
	}
	return &dirStream{entries: list}, 0
}

// Open always succeeds; blockfs has no permission model beyond
// type-checking, mirroring the teacher's "always ok" Open.
func (n *fuseNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (n *fuseNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n.fsys.IC.Ilock(n.ip)
	nr, err := n.fsys.IC.Readi(n.ip, dest, off, len(dest))
	n.fsys.IC.Iunlock(n.ip)
	if err != nil {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(dest[:nr]), 0
}

func (n *fuseNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n.mu.Lock()
	defer n.mu.Unlock()

	total := 0
	for total < len(data) {
		chunk := len(data) - total
		if chunk > writeChunk {
			chunk = writeChunk
		}
		n.fsys.Log.BeginOp()
		n.fsys.IC.Ilock(n.ip)
		nw, err := n.fsys.IC.Writei(n.ip, data[total:total+chunk], off+int64(total), chunk)
		n.fsys.IC.Iunlock(n.ip)
		n.fsys.Log.EndOp()
		total += nw
		if err != nil {
			return uint32(total), syscall.EIO
		}
		if nw < chunk {
			break
		}
	}
	return uint32(total), 0
}

func (n *fuseNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	pr := &Proc{Cwd: n.fsys.IC.Idup(n.ip)}
	ip, err := n.fsys.Create(pr, name)
	n.fsys.IC.Iput(pr.Cwd)
	if err != nil {
		return nil, nil, 0, syscall.EIO
	}
	n.fillAttrOut(ip, &out.Attr)
	return n.wrap(ip), nil, 0, 0
}

func (n *fuseNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	pr := &Proc{Cwd: n.fsys.IC.Idup(n.ip)}
	ip, err := n.fsys.Mkdir(pr, name)
	n.fsys.IC.Iput(pr.Cwd)
	if err != nil {
		return nil, syscall.EIO
	}
	n.fillAttrOut(ip, &out.Attr)
	return n.wrap(ip), 0
}

func (n *fuseNode) Unlink(ctx context.Context, name string) syscall.Errno {
	pr := &Proc{Cwd: n.fsys.IC.Idup(n.ip)}
	err := n.fsys.Unlink(pr, name)
	n.fsys.IC.Iput(pr.Cwd)
	if err != nil {
		return syscall.EIO
	}
	return 0
}

// MountFUSE exposes a mounted blockfs volume at mountPoint until the
// returned server is unmounted or fails. The root fuseNode wraps the
// filesystem's root inode (ROOTINO); every other node is discovered by
// Lookup/Readdir as the kernel walks the tree, same as squashfs's
// on-demand inode_fuse.go resolution.
func MountFUSE(fsys *FS, mountPoint string) (*fuse.Server, error) {
	root := fsys.IC.Iget(ROOTDEV, ROOTINO)
	rootNode := &fuseNode{fsys: fsys, ip: root}
	return fs.Mount(mountPoint, rootNode, &fs.Options{})
}
