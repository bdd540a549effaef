package blockfs

// MkfsOption configures a fresh image built by Mkfs, in the same
// functional-options shape as the teacher's Option (options.go) and
// Writer's WriterOption (writer.go).
type MkfsOption func(*mkfsConfig)

type mkfsConfig struct {
	totalBlocks uint32
	ninodes     uint32
	nlog        uint32
}

// WithTotalBlocks sets the total size of the image, in blocks, including
// boot/superblock/log/inode/bitmap overhead (default: 1024).
func WithTotalBlocks(n uint32) MkfsOption {
	return func(c *mkfsConfig) { c.totalBlocks = n }
}

// WithInodeCount sets the number of on-disk inode slots (default: 200).
func WithInodeCount(n uint32) MkfsOption {
	return func(c *mkfsConfig) { c.ninodes = n }
}

// WithLogBlocks sets the number of blocks reserved for the write-ahead
// log, including its header block (default: LOGSIZE+1).
func WithLogBlocks(n uint32) MkfsOption {
	return func(c *mkfsConfig) { c.nlog = n }
}
