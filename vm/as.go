package vm

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/mem"
	"github.com/cxz888/Neuclear/util"
)

var as_debug = false

// Mtype_t says how a region's pages map to frames.
type Mtype_t int

const (
	// VLINEAR maps va = pa + Off with no owned frames. Only the kernel
	// map uses it.
	VLINEAR Mtype_t = iota
	// VFRAMED owns one allocated frame per page.
	VFRAMED
)

// Vminfo_t is one mapped region: [Start, End) pages, how they are backed,
// and the R/W/X/U permission bits its leaves carry.
type Vminfo_t struct {
	Start  Vpn_t
	End    Vpn_t
	Mtype  Mtype_t
	Off    uint64
	Frames map[Vpn_t]*mem.Frames_t
	Perms  uint64
}

func mklinear(start, end Vpn_t, off uint64, perms uint64) *Vminfo_t {
	return &Vminfo_t{Start: start, End: end, Mtype: VLINEAR, Off: off, Perms: perms}
}

func mkframed(start, end Vpn_t, perms uint64) *Vminfo_t {
	return &Vminfo_t{Start: start, End: end, Mtype: VFRAMED,
		Frames: make(map[Vpn_t]*mem.Frames_t), Perms: perms}
}

// mapone installs the mapping for one page of the region.
func (vmi *Vminfo_t) mapone(pt *Pagetable_t, vpn Vpn_t) {
	var ppn mem.Ppn_t
	switch vmi.Mtype {
	case VLINEAR:
		ppn = mem.Pa_t(uint64(vpn.Va()) - vmi.Off).Ppn()
	case VFRAMED:
		fr, ok := mem.Physmem.Alloc(1)
		if !ok {
			panic("oom mapping framed page")
		}
		vmi.Frames[vpn] = fr
		ppn = fr.First
	}
	pt.Map(vpn, ppn, vmi.Perms)
}

func (vmi *Vminfo_t) unmapone(pt *Pagetable_t, vpn Vpn_t) {
	if vmi.Mtype == VFRAMED {
		vmi.Frames[vpn].Free()
		delete(vmi.Frames, vpn)
	}
	pt.Unmap(vpn)
}

func (vmi *Vminfo_t) mapall(pt *Pagetable_t) {
	for vpn := vmi.Start; vpn < vmi.End; vpn++ {
		vmi.mapone(pt, vpn)
	}
}

func (vmi *Vminfo_t) unmapall(pt *Pagetable_t) {
	for vpn := vmi.Start; vpn < vmi.End; vpn++ {
		vmi.unmapone(pt, vpn)
	}
}

// kernelroots are the root-table slots that cover kernel-half virtual
// addresses: 508 holds the MMIO gigapage range, 510 the linear map of the
// kernel image, physical memory, and kernel stacks. 511 is copied as well;
// with RAM ending at Memoryend nothing is mapped there.
var kernelroots = [...]int{508, 510, 511}

// Aspace_t is a virtual address space: a page table plus the ordered set of
// mapped regions. The mutex protects both.
type Aspace_t struct {
	sync.Mutex
	Pt      *Pagetable_t
	regions *btree.BTreeG[*Vminfo_t]
}

func mkregions() *btree.BTreeG[*Vminfo_t] {
	return btree.NewG(8, func(a, b *Vminfo_t) bool {
		return a.Start < b.Start
	})
}

// Mkbare returns an address space with a fresh root and no regions.
func Mkbare() *Aspace_t {
	return &Aspace_t{Pt: Mkpt(), regions: mkregions()}
}

// insert maps a region and records it. Regions must be disjoint; the
// caller guarantees it.
func (as *Aspace_t) insert(vmi *Vminfo_t) {
	vmi.mapall(as.Pt)
	if _, clobbered := as.regions.ReplaceOrInsert(vmi); clobbered {
		panic("overlapping region")
	}
}

// Kernelas is the kernel address space, built once at boot.
var Kernelas *Aspace_t

// Mkkernel builds the kernel address space: the kernel image, all of
// physical memory, and the MMIO windows, each linearly mapped at Φ+pa.
// The hosted image has no linker-section boundaries, so the image run
// keeps R|W|X; on hardware the loader splits text/rodata/data the way the
// linker script lays them out.
func Mkkernel(ekernel mem.Pa_t) *Aspace_t {
	as := Mkbare()
	kmap := func(start, end mem.Pa_t, perms uint64) {
		s := Va_t(uint64(start) + mem.PATOVA).Vpn()
		e := Va_t(uint64(end) + mem.PATOVA).Vpnceil()
		as.insert(mklinear(s, e, mem.PATOVA, perms))
	}
	fmt.Printf("kernel image [%#x, %#x)\n", machine.Kernbase, uint64(ekernel))
	kmap(mem.Pa_t(machine.Kernbase), ekernel, mem.PTE_R|mem.PTE_W|mem.PTE_X)
	fmt.Printf("physical memory [%#x, %#x)\n", uint64(ekernel), machine.Memoryend)
	kmap(ekernel, mem.Pa_t(machine.Memoryend), mem.PTE_R|mem.PTE_W)
	kmap(mem.Pa_t(machine.Virtio0), mem.Pa_t(machine.Virtio0+machine.Virtio0sz),
		mem.PTE_R|mem.PTE_W)
	return as
}

// Mapkernel copies the kernel-half root PTEs from a donor table into this
// address space without taking ownership of the referenced frames. Every
// user address space calls this right after construction so kernel stacks
// and MMIO stay mapped across switches.
func (as *Aspace_t) Mapkernel(donor *Pagetable_t) {
	for _, slot := range kernelroots {
		as.Pt.Wrootpte(slot, donor.Rootpte(slot))
	}
}

// Clone deep-copies src: every framed region gets fresh frames holding a
// copy of src's bytes, then the kernel half is shared in. Both sides end
// up fully writable; there is no copy-on-write.
func Clone(src *Aspace_t) *Aspace_t {
	src.Lock()
	defer src.Unlock()
	as := Mkbare()
	src.regions.Ascend(func(vmi *Vminfo_t) bool {
		if vmi.Mtype != VFRAMED {
			panic("user space with linear region")
		}
		nvmi := mkframed(vmi.Start, vmi.End, vmi.Perms)
		as.insert(nvmi)
		for vpn := vmi.Start; vpn < vmi.End; vpn++ {
			sp, ok := src.Pt.Translate(vpn)
			if !ok {
				panic("region page not mapped")
			}
			dp, ok := as.Pt.Translate(vpn)
			if !ok {
				panic("fresh region page not mapped")
			}
			*mem.Dmappg(dp) = *mem.Dmappg(sp)
		}
		return true
	})
	as.Mapkernel(src.Pt)
	return as
}

// Insertframed allocates and maps fresh zero frames for [start, end) and
// records the region.
func (as *Aspace_t) Insertframed(start, end Vpn_t, perms uint64) {
	as.insert(mkframed(start, end, perms))
}

// Remove unmaps and frees the region starting at vpn, if any.
func (as *Aspace_t) Remove(vpn Vpn_t) {
	if vmi, ok := as.regions.Get(&Vminfo_t{Start: vpn}); ok {
		vmi.unmapall(as.Pt)
		as.regions.Delete(vmi)
	}
}

// Lookup returns the region containing vpn.
func (as *Aspace_t) Lookup(vpn Vpn_t) (*Vminfo_t, bool) {
	var found *Vminfo_t
	as.regions.DescendLessOrEqual(&Vminfo_t{Start: vpn}, func(vmi *Vminfo_t) bool {
		if vpn < vmi.End {
			found = vmi
		}
		return false
	})
	return found, found != nil
}

// Setuserbrk grows or shrinks the heap region anchored at heapstart so it
// ends at newend, creating the region on first growth. The caller
// guarantees heapstart <= newend.
func (as *Aspace_t) Setuserbrk(newend, heapstart Vpn_t) {
	vmi, ok := as.regions.Get(&Vminfo_t{Start: heapstart})
	if !ok {
		if newend > heapstart {
			as.Insertframed(heapstart, newend, mem.PTE_R|mem.PTE_W|mem.PTE_U)
		}
		return
	}
	if newend >= vmi.End {
		for vpn := vmi.End; vpn < newend; vpn++ {
			vmi.mapone(as.Pt, vpn)
		}
	} else {
		for vpn := newend; vpn < vmi.End; vpn++ {
			vmi.unmapone(as.Pt, vpn)
		}
	}
	vmi.End = newend
	if vmi.Start == vmi.End {
		as.regions.Delete(vmi)
	}
}

// Trymap maps an anonymous region. With fixed set, the requested range is
// honored and anything already overlapping it is unmapped first. Without,
// the framed regions are scanned in start order for the first hole of the
// right size at or above the mmap base; ENOMEM if the window is exhausted.
// Returns the chosen start page.
func (as *Aspace_t) Trymap(start, end Vpn_t, perms uint64, fixed bool) (Vpn_t, defs.Err_t) {
	if end <= start {
		return 0, -defs.EINVAL
	}
	if fixed {
		as.removerange(start, end)
		as.Insertframed(start, end, perms)
		return start, 0
	}
	pos := Va_t(defs.MMAPSTART).Vpn()
	limit := Va_t(defs.LOWEND).Vpn()
	n := end - start
	var ret Vpn_t
	var found bool
	as.regions.AscendGreaterOrEqual(&Vminfo_t{Start: pos}, func(vmi *Vminfo_t) bool {
		if pos+n <= vmi.Start {
			found = true
			ret = pos
			return false
		}
		pos = util.Max(pos, vmi.End)
		return true
	})
	if !found && pos+n <= limit {
		found = true
		ret = pos
	}
	if !found || ret+n > limit {
		return 0, -defs.ENOMEM
	}
	as.Insertframed(ret, ret+n, perms)
	return ret, 0
}

// removerange unmaps [start, end) out of whatever framed regions overlap
// it, splitting regions that straddle an edge.
func (as *Aspace_t) removerange(start, end Vpn_t) {
	var hit []*Vminfo_t
	as.regions.Ascend(func(vmi *Vminfo_t) bool {
		if vmi.Start < end && start < vmi.End {
			hit = append(hit, vmi)
		}
		return vmi.Start < end
	})
	for _, vmi := range hit {
		if vmi.Mtype != VFRAMED {
			panic("unmapping kernel region")
		}
		as.regions.Delete(vmi)
		lo := util.Max(vmi.Start, start)
		hi := util.Min(vmi.End, end)
		for vpn := lo; vpn < hi; vpn++ {
			vmi.unmapone(as.Pt, vpn)
		}
		// surviving head and tail pieces keep their frames
		if vmi.Start < lo {
			head := mkframed(vmi.Start, lo, vmi.Perms)
			for vpn := vmi.Start; vpn < lo; vpn++ {
				head.Frames[vpn] = vmi.Frames[vpn]
			}
			as.regions.ReplaceOrInsert(head)
		}
		if hi < vmi.End {
			tail := mkframed(hi, vmi.End, vmi.Perms)
			for vpn := hi; vpn < vmi.End; vpn++ {
				tail.Frames[vpn] = vmi.Frames[vpn]
			}
			as.regions.ReplaceOrInsert(tail)
		}
	}
}

// Recycleuser drops every region in the user half and resets the page
// table to a fresh user table that still shares the kernel half. Used by
// exec and by process teardown.
func (as *Aspace_t) Recycleuser() {
	userend := Va_t(defs.LOWEND).Vpn()
	var gone []*Vminfo_t
	as.regions.Ascend(func(vmi *Vminfo_t) bool {
		if vmi.Start < userend {
			gone = append(gone, vmi)
		}
		return true
	})
	for _, vmi := range gone {
		if vmi.Mtype == VFRAMED {
			for _, fr := range vmi.Frames {
				fr.Free()
			}
		}
		as.regions.Delete(vmi)
	}
	// stale lower-half root entries must die before their node frames are
	// reused
	as.Pt.Zerolowerhalf()
	as.Pt.Clearexceptroot()
	if as_debug {
		fmt.Printf("recycled user half, %v regions left\n", as.regions.Len())
	}
}

// Recycleall drops every region, the page-table nodes included. Only for
// address spaces that are completely dead.
func (as *Aspace_t) Recycleall() {
	as.regions.Ascend(func(vmi *Vminfo_t) bool {
		if vmi.Mtype == VFRAMED {
			for _, fr := range vmi.Frames {
				fr.Free()
			}
		}
		return true
	})
	as.regions.Clear(false)
	as.Pt.Freenodes()
}

// Activate loads this space's page table if it is not already current.
func (as *Aspace_t) Activate() {
	as.Pt.Activate()
}

// Regioncount returns the number of mapped regions.
func (as *Aspace_t) Regioncount() int {
	return as.regions.Len()
}
