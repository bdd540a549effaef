package blockfs

// bmap translates logical file-block index bn to an on-disk block
// number, lazily allocating it if absent (spec.md §4.4). Caller must
// hold ip's sleep-lock. Allocation here is not persisted to ip's dinode
// immediately; the caller must call Iupdate after the enclosing
// mutation completes (writei does this).
func (ic *ICache) bmap(ip *Inode, bn uint32) uint32 {
	if bn < NDIRECT {
		if ip.Addrs[bn] == 0 {
			ip.Addrs[bn] = ic.fs.Balloc()
		}
		return ip.Addrs[bn]
	}

	bn -= NDIRECT
	if bn < NINDIRECT {
		if ip.Addrs[NDIRECT] == 0 {
			ip.Addrs[NDIRECT] = ic.fs.Balloc()
		}

		ib := ic.fs.buf.Read(ip.Dev, ip.Addrs[NDIRECT])
		addr := le32(ib.Data[bn*4 : bn*4+4])
		if addr == 0 {
			addr = ic.fs.Balloc()
			putLE32(ib.Data[bn*4:bn*4+4], addr)
			ic.fs.log.LogWrite(ib)
		}
		ib.Release()
		return addr
	}

	panic("blockfs: bmap: file block index out of range (file too large)")
}

// Readi reads up to n bytes from ip starting at off into dst (len(dst)
// must be >= n). Returns the number of bytes read. Device inodes
// dispatch to DevSW. An offset past size (or an overflowing off+n)
// returns ErrTooLarge; a read that runs past size is clamped to end at
// size. Reads do not touch the log (pure read).
func (ic *ICache) Readi(ip *Inode, dst []byte, off int64, n int) (int, error) {
	if ip.Type == TypeDev {
		dev := DevSW[ip.Major]
		if dev == nil || dev.Read == nil {
			return 0, ErrNoDevice
		}
		return dev.Read(dst[:n], off)
	}

	if off < 0 || uint64(off) > uint64(ip.Size) || off+int64(n) < off {
		return 0, ErrTooLarge
	}
	if off+int64(n) > int64(ip.Size) {
		n = int(int64(ip.Size) - off)
	}
	if n <= 0 {
		return 0, nil
	}

	total := 0
	for total < n {
		bn := uint32(off / BSIZE)
		boff := int(off % BSIZE)

		b := ic.fs.buf.Read(ip.Dev, ic.bmap(ip, bn))
		m := n - total
		if m > BSIZE-boff {
			m = BSIZE - boff
		}
		copy(dst[total:total+m], b.Data[boff:boff+m])
		b.Release()

		total += m
		off += int64(m)
	}
	return total, nil
}

// Writei writes n bytes from src to ip starting at off (len(src) must be
// >= n). Device inodes dispatch to DevSW. Rejects offsets/lengths that
// would overflow or exceed MAXFILE*BSIZE. If the write extends the file,
// ip.Size and the on-disk inode are updated before returning.
func (ic *ICache) Writei(ip *Inode, src []byte, off int64, n int) (int, error) {
	if ip.Type == TypeDev {
		dev := DevSW[ip.Major]
		if dev == nil || dev.Write == nil {
			return 0, ErrNoDevice
		}
		return dev.Write(src[:n], off)
	}

	if off < 0 || uint64(off) > uint64(ip.Size) || off+int64(n) < off {
		return 0, ErrTooLarge
	}
	if off+int64(n) > MAXFILE*BSIZE {
		return 0, ErrTooLarge
	}

	total := 0
	for total < n {
		bn := uint32(off / BSIZE)
		boff := int(off % BSIZE)

		b := ic.fs.buf.Read(ip.Dev, ic.bmap(ip, bn))
		m := n - total
		if m > BSIZE-boff {
			m = BSIZE - boff
		}
		copy(b.Data[boff:boff+m], src[total:total+m])
		ic.fs.log.LogWrite(b)
		b.Release()

		total += m
		off += int64(m)
	}

	if total > 0 && off > int64(ip.Size) {
		ip.Size = uint32(off)
		ic.Iupdate(ip)
	}
	return total, nil
}

// itrunc frees every data block referenced by ip (direct and, if
// present, indirect) and resets ip to an empty file. Called only from
// Iput when NLink has dropped to 0 and the last reference is about to be
// released.
func (ic *ICache) itrunc(ip *Inode) {
	for i := 0; i < NDIRECT; i++ {
		if ip.Addrs[i] != 0 {
			ic.fs.Bfree(ip.Addrs[i])
			ip.Addrs[i] = 0
		}
	}

	if ip.Addrs[NDIRECT] != 0 {
		ib := ic.fs.buf.Read(ip.Dev, ip.Addrs[NDIRECT])
		for i := 0; i < NINDIRECT; i++ {
			addr := le32(ib.Data[i*4 : i*4+4])
			if addr != 0 {
				ic.fs.Bfree(addr)
			}
		}
		ib.Release()
		ic.fs.Bfree(ip.Addrs[NDIRECT])
		ip.Addrs[NDIRECT] = 0
	}

	ip.Size = 0
	ic.Iupdate(ip)
}

// writeChunk is the largest byte count a single Writei call inside one
// transaction should be asked to perform, per spec.md §4.4's
// transaction-size constraint: the inode block, the indirect block, and
// two blocks of slop for unaligned writes, leaving the remaining budget
// for freshly allocated data+bitmap blocks.
const writeChunk = ((MAXOPBLOCKS - 1 - 1 - 2) / 2) * BSIZE
