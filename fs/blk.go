// Package fs is the kernel's file layer: the block cache over the disk
// driver, the byte-stream adapter the FAT32 code mounts, the VFS open-file
// objects, pipes, and the console files.
package fs

import (
	"fmt"
	"sync"
)

var bdev_debug = false

// BSIZE is the size of a disk block in bytes.
const BSIZE = 512

// BCACHESLOTS bounds the cache. The working set of the FAT32 walker fits;
// running out with every slot pinned is a kernel bug, not a load condition.
const BCACHESLOTS = 16

// Disk_i is the block device the cache sits on. The virtio driver
// implements it on hardware; Memdisk_t implements it hosted.
type Disk_i interface {
	Readblk(blkno int, dst *[BSIZE]uint8)
	Writeblk(blkno int, src *[BSIZE]uint8)
	Nblocks() int
}

// Bdev_block_t is one cached disk block. dirty is set by Write and cleared
// by Sync; eviction and Syncall write dirty slots back.
type Bdev_block_t struct {
	sync.Mutex
	Block int
	Data  *[BSIZE]uint8
	dirty bool
	disk  Disk_i
	refs  int
}

// Read copies out min(BSIZE-offset, len(dst)) bytes starting at offset.
func (blk *Bdev_block_t) Read(offset int, dst []uint8) int {
	if offset < 0 || offset >= BSIZE {
		panic("bad block offset")
	}
	return copy(dst, blk.Data[offset:])
}

// Write copies in min(BSIZE-offset, len(src)) bytes at offset and marks
// the block dirty.
func (blk *Bdev_block_t) Write(offset int, src []uint8) int {
	if offset < 0 || offset >= BSIZE {
		panic("bad block offset")
	}
	if len(src) != 0 {
		blk.dirty = true
	}
	return copy(blk.Data[offset:], src)
}

// Sync writes the block back iff it is dirty and clears the flag.
func (blk *Bdev_block_t) Sync() {
	if blk.dirty {
		if bdev_debug {
			fmt.Printf("bdev_write %v\n", blk.Block)
		}
		blk.disk.Writeblk(blk.Block, blk.Data)
		blk.dirty = false
	}
}

// Bcache_t holds up to BCACHESLOTS blocks. At most one slot exists per
// block number. Eviction picks any slot no caller holds; if every slot is
// held the working-set assumption is broken and the cache panics.
type Bcache_t struct {
	sync.Mutex
	disk  Disk_i
	slots []*Bdev_block_t
}

// MkBcache returns a cache over disk.
func MkBcache(disk Disk_i) *Bcache_t {
	return &Bcache_t{disk: disk}
}

// Getblk returns the cached block, loading it from the device on a miss.
// The caller holds a reference and must Relse it.
func (bc *Bcache_t) Getblk(blkno int) *Bdev_block_t {
	bc.Lock()
	defer bc.Unlock()
	for _, blk := range bc.slots {
		if blk.Block == blkno {
			blk.refs++
			return blk
		}
	}
	if len(bc.slots) == BCACHESLOTS {
		evicted := false
		for i, blk := range bc.slots {
			if blk.refs == 0 {
				blk.Sync()
				bc.slots[i] = bc.slots[len(bc.slots)-1]
				bc.slots = bc.slots[:len(bc.slots)-1]
				evicted = true
				break
			}
		}
		if !evicted {
			panic("out of block cache slots")
		}
	}
	blk := &Bdev_block_t{Block: blkno, Data: &[BSIZE]uint8{}, disk: bc.disk, refs: 1}
	bc.disk.Readblk(blkno, blk.Data)
	if bdev_debug {
		fmt.Printf("bdev_read %v\n", blkno)
	}
	bc.slots = append(bc.slots, blk)
	return blk
}

// Relse drops the caller's reference.
func (bc *Bcache_t) Relse(blk *Bdev_block_t) {
	bc.Lock()
	defer bc.Unlock()
	if blk.refs <= 0 {
		panic("block not held")
	}
	blk.refs--
}

// Syncall writes every dirty slot back. This is the only ordering point
// the cache offers: writes to different blocks are unordered until here.
func (bc *Bcache_t) Syncall() {
	bc.Lock()
	defer bc.Unlock()
	for _, blk := range bc.slots {
		blk.Lock()
		blk.Sync()
		blk.Unlock()
	}
}

// Nslots reports how many blocks are resident.
func (bc *Bcache_t) Nslots() int {
	bc.Lock()
	defer bc.Unlock()
	return len(bc.slots)
}
