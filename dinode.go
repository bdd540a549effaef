package blockfs

import "encoding/binary"

// dinode is the on-disk inode format (spec.md §3): type, device
// major/minor (meaningful only for TypeDev), nlink, size and the
// NDIRECT+1 block-pointer array (NDIRECT direct block numbers, followed
// by the single indirect block number). A zero addrs entry means
// "unallocated".
//
// Unlike the teacher's squashfs dinode (inode.go's GetInodeRef, a tagged
// union of five on-disk shapes of different size), an xv6-style dinode
// is one fixed-size, homogeneous record — every on-disk inode slot is
// dinodeSize bytes whether it is free, a file, a directory or a device
// — so encode/decode is a single straight-line field sequence rather
// than a type switch.
type dinode struct {
	Type  Type
	Major uint16
	Minor uint16
	NLink uint16
	Size  uint32
	Addrs [NDIRECT + 1]uint32
}

// readDinode decodes the inum'th dinode out of a full IBLOCK buffer.
func readDinode(data []byte, inum uint32) dinode {
	off := (inum % IPB) * dinodeSize
	d := dinode{}
	d.Type = Type(binary.LittleEndian.Uint16(data[off : off+2]))
	d.Major = binary.LittleEndian.Uint16(data[off+2 : off+4])
	d.Minor = binary.LittleEndian.Uint16(data[off+4 : off+6])
	d.NLink = binary.LittleEndian.Uint16(data[off+6 : off+8])
	d.Size = binary.LittleEndian.Uint32(data[off+8 : off+12])
	for i := 0; i < NDIRECT+1; i++ {
		base := off + 12 + uint32(i)*4
		d.Addrs[i] = binary.LittleEndian.Uint32(data[base : base+4])
	}
	return d
}

// writeDinode encodes d into the inum'th slot of a full IBLOCK buffer.
func writeDinode(data []byte, inum uint32, d dinode) {
	off := (inum % IPB) * dinodeSize
	binary.LittleEndian.PutUint16(data[off:off+2], uint16(d.Type))
	binary.LittleEndian.PutUint16(data[off+2:off+4], d.Major)
	binary.LittleEndian.PutUint16(data[off+4:off+6], d.Minor)
	binary.LittleEndian.PutUint16(data[off+6:off+8], d.NLink)
	binary.LittleEndian.PutUint32(data[off+8:off+12], d.Size)
	for i := 0; i < NDIRECT+1; i++ {
		base := off + 12 + uint32(i)*4
		binary.LittleEndian.PutUint32(data[base:base+4], d.Addrs[i])
	}
}

func le16(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

func putLE16(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
}
