package blockfs

import "io/fs"

// Type discriminates what an inode (on-disk or cached) represents. Zero
// means the on-disk slot is unallocated; every other value is a live
// inode type. See spec invariant: an on-disk inode has Type != 0 iff it
// is allocated.
type Type uint16

const (
	TypeFree Type = iota // unallocated dinode slot
	TypeFile
	TypeDir
	TypeDev
)

func (t Type) String() string {
	switch t {
	case TypeFree:
		return "free"
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	case TypeDev:
		return "dev"
	default:
		return "unknown"
	}
}

// Mode returns a fs.FileMode carrying only the type bits for t, no
// permission bits (blockfs does not model permissions).
func (t Type) Mode() fs.FileMode {
	switch t {
	case TypeDir:
		return fs.ModeDir
	case TypeDev:
		return fs.ModeDevice
	case TypeFile:
		return 0
	default:
		return fs.ModeIrregular
	}
}
