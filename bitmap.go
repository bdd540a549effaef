package blockfs

import (
	bitmap "github.com/boljen/go-bitmap"
)

// fsRuntime bundles the pieces every mutating operation needs: the
// superblock, the buffer cache and the log. Passed by pointer everywhere
// instead of kept in package globals, so multiple images can be mounted
// in the same process (tests do this routinely).
type fsRuntime struct {
	sb  *Superblock
	buf *BufCache
	log *Log
}

// Balloc returns a freshly zeroed, newly reserved data block number.
// Implements spec.md §4.2: linear scan of the bitmap in block-sized
// strides, first zero bit (scanned left-to-right within a bitmap block)
// wins. The bitmap-block write and the zeroing write are both enlisted
// in the current transaction, so the pair is atomic with whatever
// pointer installation the caller performs afterward.
//
// Fails fatally if no free block exists, per spec.md §7 category 2
// (resource exhaustion is fatal, not a typed error).
//
// The scan runs over the whole image (0..sb.Size), not just the data
// region: bitmap bit b always means "block b is in use", and mkfs
// pre-marks every boot/super/log/inode/bitmap block allocated
// (markMetadataAllocated), so the scan naturally skips them and lands
// on the first free block in the data region without needing to know
// where that region starts.
func (fs *fsRuntime) Balloc() uint32 {
	for base := uint32(0); base < fs.sb.Size; base += BPB {
		bn := fs.sb.BBLOCK(base)
		b := fs.buf.Read(ROOTDEV, bn)

		bm := bitmap.NewSlice(b.Data[:])
		limit := BPB
		if fs.sb.Size-base < BPB {
			limit = int(fs.sb.Size - base)
		}

		for i := 0; i < limit; i++ {
			if !bm.Get(i) {
				bm.Set(i, true)
				fs.log.LogWrite(b)
				b.Release()

				blockno := base + uint32(i)
				fs.zeroBlock(blockno)
				return blockno
			}
		}
		b.Release()
	}
	panic("blockfs: balloc: out of free blocks")
}

// Bfree clears bit b's allocation bit in the bitmap. Fails fatally on a
// double-free, per spec.md invariant 1 / §7 category 3.
func (fs *fsRuntime) Bfree(b uint32) {
	bn := fs.sb.BBLOCK(b)
	buf := fs.buf.Read(ROOTDEV, bn)
	defer buf.Release()

	bm := bitmap.NewSlice(buf.Data[:])
	i := int(b % BPB)
	if !bm.Get(i) {
		panic("blockfs: bfree: freeing already-free block")
	}
	bm.Set(i, false)
	fs.log.LogWrite(buf)
}

// zeroBlock writes a block of BSIZE zero bytes to blockno and enlists it
// in the current transaction. Zeroing on allocation prevents exposing
// stale contents and gives bmap/readi a stable "0 means unallocated"
// baseline for indirect-block slots.
func (fs *fsRuntime) zeroBlock(blockno uint32) {
	b := fs.buf.Read(ROOTDEV, blockno)
	defer b.Release()
	for i := range b.Data {
		b.Data[i] = 0
	}
	fs.log.LogWrite(b)
}
