package blockfs

import (
	"errors"

	bitmap "github.com/boljen/go-bitmap"
)

// Mkfs lays out a fresh blockfs image on dev: zeroes it, computes and
// writes the superblock, pre-marks the metadata region (boot+super+log+
// inode+bitmap blocks) as allocated in the free bitmap, and creates the
// root directory with its "." and ".." entries.
//
// Grounded on the teacher's two-pass Writer (writer.go: compute table
// positions, then write) and on
// other_examples/be185c5c_dargueta-disko__file_systems-unixv1-format.go.go's
// Format() (size validation, region layout, zeroed bitmaps via the same
// github.com/boljen/go-bitmap package). Once the metadata region is
// marked, root creation reuses the ordinary runtime (Ialloc/Dirlink)
// rather than writing dinode/dirent bytes by hand a second time — the
// first free on-disk inode after mkfs zeroes the image is, by
// construction, inode 1 (ROOTINO).
func Mkfs(dev BlockDevice, opts ...MkfsOption) (*Superblock, error) {
	cfg := mkfsConfig{
		totalBlocks: 1024,
		ninodes:     200,
		nlog:        LOGSIZE + 1,
	}
	for _, o := range opts {
		o(&cfg)
	}

	ninodeblocks := (cfg.ninodes + IPB - 1) / IPB
	nbitmap := (cfg.totalBlocks + BPB - 1) / BPB
	if nbitmap == 0 {
		nbitmap = 1
	}

	logStart := uint32(2)
	inodeStart := logStart + cfg.nlog
	bmapStart := inodeStart + ninodeblocks
	nmeta := bmapStart + nbitmap
	if nmeta >= cfg.totalBlocks {
		return nil, errors.New("blockfs: mkfs: image too small for the requested inode/log sizes")
	}

	sb := &Superblock{
		Size:       cfg.totalBlocks,
		NBlocks:    cfg.totalBlocks - nmeta,
		NInodes:    cfg.ninodes,
		NLog:       cfg.nlog,
		LogStart:   logStart,
		InodeStart: inodeStart,
		BmapStart:  bmapStart,
	}

	zero := make([]byte, BSIZE)
	for b := uint32(0); b < cfg.totalBlocks; b++ {
		if _, err := dev.WriteAt(zero, int64(b)*BSIZE); err != nil {
			return nil, err
		}
	}
	if _, err := dev.WriteAt(sb.marshal(), BSIZE); err != nil {
		return nil, err
	}

	if err := markMetadataAllocated(dev, sb, nmeta); err != nil {
		return nil, err
	}

	buf := NewBufCache(dev)
	rt := &fsRuntime{sb: sb, buf: buf, log: OpenLog(sb, buf)}
	ic := NewICache(rt)

	rt.log.BeginOp()
	root := ic.Ialloc(ROOTDEV, TypeDir)
	if root.Inum != ROOTINO {
		rt.log.EndOp()
		return nil, errors.New("blockfs: mkfs: root did not land on inode 1")
	}
	ic.Ilock(root)
	root.NLink = 1
	ic.Iupdate(root)
	if err := ic.Dirlink(root, ".", root.Inum); err != nil {
		ic.Iunlock(root)
		rt.log.EndOp()
		return nil, err
	}
	if err := ic.Dirlink(root, "..", root.Inum); err != nil {
		ic.Iunlock(root)
		rt.log.EndOp()
		return nil, err
	}
	ic.Iunlock(root)
	ic.Iput(root)
	rt.log.EndOp()

	if err := dev.Sync(); err != nil {
		return nil, err
	}
	return sb, nil
}

// markMetadataAllocated sets the bitmap bit for every block in
// [0, nmeta) directly against dev, bypassing the log: this runs before
// the filesystem is mountable, so there is no crash window to protect
// against yet, and going through Balloc would be wrong besides — Balloc
// hands out the first *free* bit, whereas here every one of these bits
// must end up set regardless of scan order.
func markMetadataAllocated(dev BlockDevice, sb *Superblock, nmeta uint32) error {
	block := make([]byte, BSIZE)
	var curBlock uint32 = ^uint32(0)

	flush := func() error {
		if curBlock == ^uint32(0) {
			return nil
		}
		_, err := dev.WriteAt(block, int64(curBlock)*BSIZE)
		return err
	}

	for b := uint32(0); b < nmeta; b++ {
		bb := sb.BBLOCK(b)
		if bb != curBlock {
			if err := flush(); err != nil {
				return err
			}
			if _, err := dev.ReadAt(block, int64(bb)*BSIZE); err != nil {
				return err
			}
			curBlock = bb
		}
		bitmap.NewSlice(block).Set(int(b%BPB), true)
	}
	return flush()
}
