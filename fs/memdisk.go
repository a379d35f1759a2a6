package fs

import (
	"os"
	"sync"
)

// Memdisk_t is an in-memory block device for tests and for the hosted boot
// path, which loads a disk image into one.
type Memdisk_t struct {
	sync.Mutex
	blocks [][BSIZE]uint8
	// Reads and Writes count device operations, letting tests observe
	// what the cache absorbed.
	Reads  int
	Writes int
}

// MkMemdisk returns a zeroed disk of nblocks blocks.
func MkMemdisk(nblocks int) *Memdisk_t {
	return &Memdisk_t{blocks: make([][BSIZE]uint8, nblocks)}
}

// MkMemdiskFile loads a disk image from the host filesystem.
func MkMemdiskFile(path string) (*Memdisk_t, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n := (len(data) + BSIZE - 1) / BSIZE
	md := MkMemdisk(n)
	for i := 0; i < n; i++ {
		end := (i + 1) * BSIZE
		if end > len(data) {
			end = len(data)
		}
		copy(md.blocks[i][:], data[i*BSIZE:end])
	}
	return md, nil
}

func (md *Memdisk_t) Readblk(blkno int, dst *[BSIZE]uint8) {
	md.Lock()
	defer md.Unlock()
	if blkno < 0 || blkno >= len(md.blocks) {
		panic("read past end of disk")
	}
	md.Reads++
	*dst = md.blocks[blkno]
}

func (md *Memdisk_t) Writeblk(blkno int, src *[BSIZE]uint8) {
	md.Lock()
	defer md.Unlock()
	if blkno < 0 || blkno >= len(md.blocks) {
		panic("write past end of disk")
	}
	md.Writes++
	md.blocks[blkno] = *src
}

func (md *Memdisk_t) Nblocks() int {
	md.Lock()
	defer md.Unlock()
	return len(md.blocks)
}
