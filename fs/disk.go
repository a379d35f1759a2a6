package fs

import (
	"fmt"
	"io"
)

// Diskstream_t presents the block-cached device as a byte-addressable
// seekable stream; the FAT32 layer mounts it. Reads and writes walk block
// by block through the cache, rolling the block number forward at each
// BSIZE boundary. Seeking from the end is not supported: the stream has no
// way to discover the disk size.
type Diskstream_t struct {
	bc    *Bcache_t
	block int
	boff  int
}

// MkDiskstream returns a stream over the cache, positioned at byte 0.
func MkDiskstream(bc *Bcache_t) *Diskstream_t {
	return &Diskstream_t{bc: bc}
}

func (ds *Diskstream_t) advance(n int) {
	ds.boff += n
	for ds.boff >= BSIZE {
		ds.block++
		ds.boff -= BSIZE
	}
}

// Read fills p from the current position.
func (ds *Diskstream_t) Read(p []uint8) (int, error) {
	tot := 0
	for tot < len(p) {
		blk := ds.bc.Getblk(ds.block)
		blk.Lock()
		did := blk.Read(ds.boff, p[tot:])
		blk.Unlock()
		ds.bc.Relse(blk)
		ds.advance(did)
		tot += did
	}
	return tot, nil
}

// Write stores p at the current position through the cache.
func (ds *Diskstream_t) Write(p []uint8) (int, error) {
	tot := 0
	for tot < len(p) {
		blk := ds.bc.Getblk(ds.block)
		blk.Lock()
		did := blk.Write(ds.boff, p[tot:])
		blk.Unlock()
		ds.bc.Relse(blk)
		ds.advance(did)
		tot += did
	}
	return tot, nil
}

// Seek repositions the stream. io.SeekEnd fails.
func (ds *Diskstream_t) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(ds.block)*BSIZE + int64(ds.boff) + offset
	default:
		return 0, fmt.Errorf("seek from end unsupported")
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek")
	}
	ds.block = int(pos / BSIZE)
	ds.boff = int(pos % BSIZE)
	return pos, nil
}

// Sync flushes every dirty cached block to the device.
func (ds *Diskstream_t) Sync() {
	ds.bc.Syncall()
}
