package blockfs

import bitmap "github.com/boljen/go-bitmap"

// FsckReport holds the consistency violations Fsck found, per spec.md
// §8's universal invariants. An empty report means no violations were
// found; Fsck itself never repairs anything, it only reports — repair
// is explicitly out of scope, same as recovery beyond what the log
// already guarantees.
type FsckReport struct {
	// BitmapMismatches lists data blocks whose bitmap bit disagrees with
	// whether any inode actually references them (spec.md §8's first
	// invariant).
	BitmapMismatches []uint32

	// NlinkMismatches maps an inode number to {on-disk nlink, counted
	// directory references} when they disagree (spec.md §8's second
	// invariant).
	NlinkMismatches map[uint32][2]uint16
}

func (r *FsckReport) Clean() bool {
	return len(r.BitmapMismatches) == 0 && len(r.NlinkMismatches) == 0
}

// Fsck walks an unmounted image and checks it against the two
// on-disk-only universal invariants from spec.md §8 (the other two —
// cache-identity uniqueness and crash-atomicity — are runtime
// properties with nothing to inspect in an offline image). It never
// acquires any of the in-process locks in icache.go, because it never
// mounts the filesystem; it reads directly through a throwaway
// BufCache.
//
// No file in the pack implements anything resembling an fsck (squashfs
// is read-only by construction, so inconsistency can't arise); this is
// grounded directly on spec.md §8's invariant statements.
func Fsck(dev BlockDevice) (*FsckReport, error) {
	sb, err := ReadSuperblock(dev)
	if err != nil {
		return nil, err
	}
	buf := NewBufCache(dev)

	reachable := make(map[uint32]bool)
	nlinkCounted := make(map[uint32]uint16)

	for inum := uint32(1); inum < sb.NInodes; inum++ {
		b := buf.Read(ROOTDEV, sb.IBLOCK(inum))
		d := readDinode(b.Data[:], inum)
		b.Release()
		if d.Type == TypeFree {
			continue
		}

		for i := 0; i < NDIRECT; i++ {
			if d.Addrs[i] != 0 {
				reachable[d.Addrs[i]] = true
			}
		}
		if d.Addrs[NDIRECT] != 0 {
			reachable[d.Addrs[NDIRECT]] = true
			ib := buf.Read(ROOTDEV, d.Addrs[NDIRECT])
			for i := 0; i < NINDIRECT; i++ {
				addr := le32(ib.Data[i*4 : i*4+4])
				if addr != 0 {
					reachable[addr] = true
				}
			}
			ib.Release()
		}

		if d.Type == TypeDir {
			for off := uint32(0); off < d.Size; off += direntSize {
				blockno := rawBlockAt(buf, d, off/BSIZE)
				if blockno == 0 {
					continue
				}
				b := buf.Read(ROOTDEV, blockno)
				boff := off % BSIZE
				de := readDirent(b.Data[boff : boff+direntSize])
				b.Release()
				// "." is the acyclic-accounting exception (spec.md §9):
				// it is never counted toward its own inode's nlink. ".."
				// still counts toward the parent.
				if de.Inum != 0 && decodeName(de.Name) != "." {
					nlinkCounted[uint32(de.Inum)]++
				}
			}
		}
	}

	report := &FsckReport{NlinkMismatches: make(map[uint32][2]uint16)}

	dataStart := sb.Size - sb.NBlocks
	for bn := dataStart; bn < sb.Size; bn++ {
		bit := readBitmapBit(buf, sb, bn)
		if bit != reachable[bn] {
			report.BitmapMismatches = append(report.BitmapMismatches, bn)
		}
	}

	for inum := uint32(1); inum < sb.NInodes; inum++ {
		b := buf.Read(ROOTDEV, sb.IBLOCK(inum))
		d := readDinode(b.Data[:], inum)
		b.Release()
		if d.Type == TypeFree {
			continue
		}
		if d.NLink != nlinkCounted[inum] {
			report.NlinkMismatches[inum] = [2]uint16{d.NLink, nlinkCounted[inum]}
		}
	}

	return report, nil
}

// rawBlockAt resolves logical block bn of dinode d to an on-disk block
// number without allocating — the read-only counterpart of
// ICache.bmap, used by Fsck, which has no transaction to allocate
// within (and nothing should need allocating while just checking).
func rawBlockAt(buf *BufCache, d dinode, bn uint32) uint32 {
	if bn < NDIRECT {
		return d.Addrs[bn]
	}
	bn -= NDIRECT
	if bn < NINDIRECT && d.Addrs[NDIRECT] != 0 {
		ib := buf.Read(ROOTDEV, d.Addrs[NDIRECT])
		addr := le32(ib.Data[bn*4 : bn*4+4])
		ib.Release()
		return addr
	}
	return 0
}

func readBitmapBit(buf *BufCache, sb *Superblock, bn uint32) bool {
	b := buf.Read(ROOTDEV, sb.BBLOCK(bn))
	defer b.Release()
	return bitmap.NewSlice(b.Data[:]).Get(int(bn % BPB))
}
