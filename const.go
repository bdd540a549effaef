package blockfs

// On-disk and in-memory layout constants. These must match whatever tool
// laid out the image (mkfs.go in this repository); changing any of them
// invalidates existing images.
const (
	// BSIZE is the block size in bytes.
	BSIZE = 512

	// DIRSIZ is the fixed width of a directory entry's name field.
	DIRSIZ = 14

	// NDIRECT is the number of direct block pointers in a dinode.
	NDIRECT = 12

	// NINDIRECT is the number of block pointers held in a single indirect block.
	NINDIRECT = BSIZE / 4

	// MAXFILE is the largest file size expressible, in blocks.
	MAXFILE = NDIRECT + NINDIRECT

	// BPB is the number of bitmap bits (data blocks) described per bitmap block.
	BPB = BSIZE * 8

	// NINODE is the size of the in-memory inode cache table.
	NINODE = 50

	// NDEV is the number of device-switch-table slots for character devices.
	NDEV = 10

	// ROOTINO is the inode number of the root directory.
	ROOTINO = 1

	// ROOTDEV is the device number of the root filesystem (single-device only).
	ROOTDEV = 0

	// MAXOPBLOCKS is the maximum number of distinct blocks a single
	// transaction may enlist in the write-ahead log.
	MAXOPBLOCKS = 10

	// LOGSIZE is the number of log data blocks; must be large enough to
	// hold MAXOPBLOCKS worth of writes. The default log region (mkfs.go)
	// is LOGSIZE+1 blocks, the extra block holding the commit header.
	LOGSIZE = MAXOPBLOCKS * 3
)

// dinodeSize is the on-disk size, in bytes, of a packed dinode:
// type(2) + major(2) + minor(2) + nlink(2) + size(4) + addrs(4*(NDIRECT+1)).
const dinodeSize = 2 + 2 + 2 + 2 + 4 + 4*(NDIRECT+1)

// IPB is the number of dinodes that fit in one block.
const IPB = BSIZE / dinodeSize

// direntSize is the on-disk size, in bytes, of one directory entry:
// inum(2) + name(DIRSIZ).
const direntSize = 2 + DIRSIZ
