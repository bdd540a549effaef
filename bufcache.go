package blockfs

import (
	"container/list"
	"sync"
)

// NBUF is the size of the in-memory buffer cache.
const NBUF = 64

// Buf is one cached, sleep-locked block. Its Data is only valid to read
// or write between BufCache.Read, which returns the buffer locked, and
// Release, which unlocks it (matching spec.md §5's buffer
// lock, rank 1 — the leaf lock every other lock in the system is
// acquired above).
//
// This generalizes the teacher's tableReader (tablereader.go), which
// caches exactly one block per reader and discards it on the next read;
// here the cache is a fixed-capacity, shared, multi-block LRU because
// blockfs is read/write and many concurrent callers touch overlapping
// blocks (the inode table, the bitmap) during normal operation.
type Buf struct {
	mu    sync.Mutex
	dev   uint32
	block uint32
	valid bool
	dirty bool
	Data  [BSIZE]byte

	cache *BufCache
	elem  *list.Element
}

// BufCache is the process-wide buffer cache sitting between the
// filesystem core and a BlockDevice.
type BufCache struct {
	dev BlockDevice

	mu    sync.Mutex // guards lru/index/refcnt, analogous to icache.lock
	lru   *list.List // most-recently-used at the back
	index map[bufKey]*list.Element
}

type bufKey struct {
	dev   uint32
	block uint32
}

type bufEntry struct {
	buf    *Buf
	refcnt int
}

// NewBufCache creates a buffer cache of NBUF entries over dev.
func NewBufCache(dev BlockDevice) *BufCache {
	return &BufCache{
		dev:   dev,
		lru:   list.New(),
		index: make(map[bufKey]*list.Element),
	}
}

// Read returns a locked buffer holding block's contents, reading it from
// the device if it is not already cached. The caller must call Release
// when done. Fails fatally if the cache is full of pinned (in-use)
// buffers — same "no free slot" fatal condition as iget in spec.md §4.3.
func (bc *BufCache) Read(dev, block uint32) *Buf {
	b := bc.get(dev, block)
	b.mu.Lock()
	if !b.valid {
		if _, err := bc.dev.ReadAt(b.Data[:], int64(block)*BSIZE); err != nil {
			panic("blockfs: buffer cache read: " + err.Error())
		}
		b.valid = true
	}
	return b
}

// get finds-or-allocates the cache slot for (dev, block), under bc.mu,
// mirroring iget's "find matching identity, else recycle the LRU entry
// with refcnt==0" discipline from spec.md §4.3.
func (bc *BufCache) get(dev, block uint32) *Buf {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	key := bufKey{dev, block}
	if e, ok := bc.index[key]; ok {
		ent := e.Value.(*bufEntry)
		ent.refcnt++
		bc.lru.MoveToBack(e)
		return ent.buf
	}

	if bc.lru.Len() >= NBUF {
		// recycle the least-recently-used unreferenced buffer.
		for e := bc.lru.Front(); e != nil; e = e.Next() {
			ent := e.Value.(*bufEntry)
			if ent.refcnt == 0 {
				delete(bc.index, bufKey{ent.buf.dev, ent.buf.block})
				bc.lru.Remove(e)
				break
			}
		}
		if bc.lru.Len() >= NBUF {
			panic("blockfs: buffer cache exhausted, no unreferenced buffer to recycle")
		}
	}

	b := &Buf{dev: dev, block: block, cache: bc}
	ent := &bufEntry{buf: b, refcnt: 1}
	b.elem = bc.lru.PushBack(ent)
	bc.index[key] = b.elem
	return b
}

// Release unlocks b and drops the caller's reference. If a later Read of
// the same block finds refcnt==0, the slot is eligible for recycling
// (but its data is left in place, so a re-Read without an intervening
// recycle is served from cache rather than the device). The cache has
// no write path of its own: modified buffers are enlisted with LogWrite
// and reach the device only through the log's commit.
func (b *Buf) Release() {
	b.mu.Unlock()

	bc := b.cache
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if e, ok := bc.index[bufKey{b.dev, b.block}]; ok {
		e.Value.(*bufEntry).refcnt--
	}
}
