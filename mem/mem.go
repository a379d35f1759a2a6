// Package mem owns physical memory: page-size constants, Sv39 PTE bits,
// the direct map, and the buddy frame allocator.
package mem

import (
	"sync"
	"unsafe"

	"github.com/cxz888/Neuclear/machine"
)

// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks offsets within a page.
const PGOFFSET uint64 = 0xfff

// PGMASK masks the page number of an address.
const PGMASK uint64 = ^PGOFFSET

// Sv39 page table entry bits.
const (
	PTE_V uint64 = 1 << 0
	PTE_R uint64 = 1 << 1
	PTE_W uint64 = 1 << 2
	PTE_X uint64 = 1 << 3
	PTE_U uint64 = 1 << 4
	PTE_G uint64 = 1 << 5
	PTE_A uint64 = 1 << 6
	PTE_D uint64 = 1 << 7
)

// PTE_PPNSHIFT is where the 44-bit PPN starts inside a PTE.
const PTE_PPNSHIFT uint = 10

// PTE_PPNMASK extracts the PPN field after shifting.
const PTE_PPNMASK uint64 = (1 << 44) - 1

// PATOVA is Φ, the fixed offset of the kernel linear map. Kernel code
// dereferences physical page pa at virtual address Φ+pa.
const PATOVA uint64 = 0xFFFF_FFFF_0000_0000

// Pa_t represents a physical address.
type Pa_t uint64

// Ppn_t represents a physical page number.
type Ppn_t uint64

// Bytepg_t is a byte addressed page.
type Bytepg_t [PGSIZE]uint8

// Ptepg_t is a page holding 512 page table entries.
type Ptepg_t [PGSIZE / 8]uint64

// Pa returns the first byte of the page.
func (ppn Ppn_t) Pa() Pa_t {
	return Pa_t(ppn) << PGSHIFT
}

// Kva returns the kernel linear-map address of the page.
func (ppn Ppn_t) Kva() uint64 {
	return uint64(ppn.Pa()) + PATOVA
}

// Ppn returns the page number containing pa.
func (pa Pa_t) Ppn() Ppn_t {
	return Ppn_t(pa >> PGSHIFT)
}

// Kvatopa converts a kernel linear-map address back to physical.
func Kvatopa(va uint64) Pa_t {
	if va < PATOVA {
		panic("not a kernel linear address")
	}
	return Pa_t(va - PATOVA)
}

// Dmap8 returns physical memory starting at pa for l bytes, through the
// direct map.
func Dmap8(pa Pa_t, l int) []uint8 {
	return machine.Phys(uint64(pa), l)
}

// Dmappg returns the page ppn as a byte page.
func Dmappg(ppn Ppn_t) *Bytepg_t {
	b := machine.Phys(uint64(ppn.Pa()), PGSIZE)
	return (*Bytepg_t)(unsafe.Pointer(&b[0]))
}

// Dmapptes returns the page ppn as an array of PTEs.
func Dmapptes(ppn Ppn_t) *Ptepg_t {
	b := machine.Phys(uint64(ppn.Pa()), PGSIZE)
	return (*Ptepg_t)(unsafe.Pointer(&b[0]))
}

// Frames_t tracks an owned run of physical pages. Allocation zero-fills
// (page cleaning: user pages must not leak prior contents and page-table
// nodes assume zero). Free returns the run to the allocator; freeing twice
// panics there.
type Frames_t struct {
	First Ppn_t
	Npgs  int
	order uint
	freed bool
}

// Free returns the frames to the allocator.
func (fr *Frames_t) Free() {
	if fr.freed {
		panic("double free")
	}
	fr.freed = true
	Physmem.dealloc(fr.First, fr.order)
}

// Physmem_t is a buddy allocator over the physical page range handed to
// Phys_init. Blocks are power-of-two runs; free lists hold the first PPN of
// each free block per order.
type Physmem_t struct {
	sync.Mutex
	start Ppn_t
	npgs  int
	free  [][]Ppn_t // index = order
	maxo  uint
	inuse int // pages currently allocated, for accounting
}

// Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

// Phys_init hands [start, end) to the allocator.
func Phys_init(start, end Pa_t) {
	p := Physmem
	p.Lock()
	defer p.Unlock()
	first := Ppn_t((uint64(start) + PGOFFSET) >> PGSHIFT)
	last := end.Ppn()
	if last <= first {
		panic("no memory")
	}
	p.start = first
	p.npgs = int(last - first)
	p.maxo = 0
	for 1<<(p.maxo+1) <= p.npgs {
		p.maxo++
	}
	p.free = make([][]Ppn_t, p.maxo+1)
	// carve the range into maximal aligned blocks
	pg := first
	left := p.npgs
	for left > 0 {
		o := p.maxo
		for o > 0 && (1<<o > left || uint64(pg-first)&((1<<o)-1) != 0) {
			o--
		}
		p.free[o] = append(p.free[o], pg)
		pg += 1 << o
		left -= 1 << o
	}
}

func order(n int) uint {
	o := uint(0)
	for 1<<o < n {
		o++
	}
	return o
}

// Alloc returns an owned, zero-filled run of n contiguous pages, or false
// on exhaustion. Kernel-internal callers panic on failure; user-facing
// paths turn it into ENOMEM.
func (p *Physmem_t) Alloc(n int) (*Frames_t, bool) {
	if n <= 0 {
		panic("bad alloc size")
	}
	if !machine.Physinited() {
		panic("phys not initted")
	}
	o := order(n)
	p.Lock()
	ppn, ok := p.takeblock(o)
	if ok {
		p.inuse += 1 << o
	}
	p.Unlock()
	if !ok {
		return nil, false
	}
	fr := &Frames_t{First: ppn, Npgs: n, order: o}
	for i := 0; i < 1<<o; i++ {
		pg := Dmappg(ppn + Ppn_t(i))
		for j := range pg {
			pg[j] = 0
		}
	}
	return fr, true
}

// takeblock pops a free block of order o, splitting larger blocks as
// needed. Caller holds the lock.
func (p *Physmem_t) takeblock(o uint) (Ppn_t, bool) {
	if o > p.maxo {
		return 0, false
	}
	if l := len(p.free[o]); l != 0 {
		ppn := p.free[o][l-1]
		p.free[o] = p.free[o][:l-1]
		return ppn, true
	}
	ppn, ok := p.takeblock(o + 1)
	if !ok {
		return 0, false
	}
	// keep the low half, free the high buddy
	p.free[o] = append(p.free[o], ppn+Ppn_t(1)<<o)
	return ppn, true
}

func (p *Physmem_t) dealloc(first Ppn_t, o uint) {
	p.Lock()
	defer p.Unlock()
	if first < p.start || int(first-p.start)+(1<<o) > p.npgs {
		panic("freeing frames never allocated")
	}
	p.inuse -= 1 << o
	// coalesce with the buddy as long as it is free. Block alignment is
	// relative to p.start, not absolute PPN 0, so the buddy XOR must be
	// too.
	rel := first - p.start
	for o < p.maxo {
		buddyrel := rel ^ (Ppn_t(1) << o)
		buddy := p.start + buddyrel
		found := -1
		for i, b := range p.free[o] {
			if b == buddy {
				found = i
				break
			}
		}
		if found == -1 {
			break
		}
		l := len(p.free[o])
		p.free[o][found] = p.free[o][l-1]
		p.free[o] = p.free[o][:l-1]
		if buddyrel < rel {
			rel = buddyrel
		}
		o++
	}
	p.free[o] = append(p.free[o], p.start+rel)
}

// Pgsfree returns the number of free pages.
func (p *Physmem_t) Pgsfree() int {
	p.Lock()
	defer p.Unlock()
	return p.npgs - p.inuse
}

// Pgsinuse returns the number of allocated pages.
func (p *Physmem_t) Pgsinuse() int {
	p.Lock()
	defer p.Unlock()
	return p.inuse
}
