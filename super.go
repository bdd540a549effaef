package blockfs

import (
	"bytes"
	"encoding/binary"
	"log"
	"reflect"
)

// Superblock describes the on-disk geometry of a blockfs image. It is
// read once at mount time from block 1 and treated as immutable
// afterward; every block-number computation in the filesystem derives
// from it.
//
// Layout on disk: size, nblocks, ninodes, nlog, logstart, inodestart,
// bmapstart — seven consecutive little-endian uint32s, as per the
// "must match the layout tool" contract in spec.md §6.
type Superblock struct {
	Size       uint32 // total blocks on the image, including boot+super+log+inodes+bitmap
	NBlocks    uint32 // number of data blocks
	NInodes    uint32 // number of on-disk inode slots
	NLog       uint32 // number of log blocks
	LogStart   uint32 // first log block
	InodeStart uint32 // first inode block
	BmapStart  uint32 // first free-bitmap block
}

// sbBinarySize is the on-disk size of a Superblock: seven uint32 fields.
const sbBinarySize = 7 * 4

// ReadSuperblock loads block 1 from dev and parses it. It is intended to
// be called exactly once, at mount time; the result is cached by the
// caller (see Mount in ops.go) and treated as read-only thereafter.
func ReadSuperblock(dev BlockDevice) (*Superblock, error) {
	buf := make([]byte, sbBinarySize)
	if _, err := dev.ReadAt(buf, BSIZE); err != nil {
		return nil, err
	}

	sb := &Superblock{}
	if err := sb.unmarshal(buf); err != nil {
		return nil, err
	}
	log.Printf("blockfs: superblock: %d blocks, %d data blocks, %d inodes, log at %d (%d blocks)",
		sb.Size, sb.NBlocks, sb.NInodes, sb.LogStart, sb.NLog)
	return sb, nil
}

// unmarshal decodes the seven exported fields of sb, in declaration
// order, as little-endian uint32s. The reflect-driven loop mirrors the
// teacher's Superblock.UnmarshalBinary: it walks exported fields instead
// of hand-listing each one, so adding a field to the struct keeps the
// decoder in sync automatically.
func (sb *Superblock) unmarshal(data []byte) error {
	if len(data) < sbBinarySize {
		return ErrInvalidSuper
	}

	v := reflect.ValueOf(sb).Elem()
	r := bytes.NewReader(data)
	for i := 0; i < v.NumField(); i++ {
		if err := binary.Read(r, binary.LittleEndian, v.Field(i).Addr().Interface()); err != nil {
			return err
		}
	}

	if sb.NInodes == 0 || sb.Size == 0 {
		return ErrInvalidSuper
	}
	return nil
}

// marshal encodes sb back to its seven-uint32 on-disk form. Used only by
// mkfs.go when laying out a fresh image.
func (sb *Superblock) marshal() []byte {
	buf := new(bytes.Buffer)
	v := reflect.ValueOf(sb).Elem()
	for i := 0; i < v.NumField(); i++ {
		binary.Write(buf, binary.LittleEndian, v.Field(i).Interface())
	}
	return buf.Bytes()
}

// BBLOCK returns the bitmap block containing the bit for data block b.
func (sb *Superblock) BBLOCK(b uint32) uint32 {
	return b/BPB + sb.BmapStart
}

// IBLOCK returns the inode block containing on-disk inode number inum.
func (sb *Superblock) IBLOCK(inum uint32) uint32 {
	return inum/IPB + sb.InodeStart
}
