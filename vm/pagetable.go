// Package vm implements Sv39 page tables and virtual address spaces.
package vm

import (
	"fmt"

	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/mem"
)

// Va_t is a 64-bit virtual address. Vpn_t is the 27-bit Sv39 virtual page
// number (three 9-bit indices).
type Va_t uint64
type Vpn_t uint64

// VPNMASK keeps the 27 translated bits of a page number.
const VPNMASK uint64 = (1 << 27) - 1

// Vpn returns the page number containing va.
func (va Va_t) Vpn() Vpn_t {
	return Vpn_t((uint64(va) >> mem.PGSHIFT) & VPNMASK)
}

// Vpnceil returns the page number of the first page boundary at or above va.
func (va Va_t) Vpnceil() Vpn_t {
	return Va_t(uint64(va) + uint64(mem.PGSIZE) - 1).Vpn()
}

// Pgoff returns the offset of va within its page.
func (va Va_t) Pgoff() uint64 {
	return uint64(va) & mem.PGOFFSET
}

// Va returns the first address of the page, sign-extended for the kernel
// half the way Sv39 hardware expects.
func (vpn Vpn_t) Va() Va_t {
	v := uint64(vpn) << mem.PGSHIFT
	if vpn&(1<<26) != 0 {
		v |= ^uint64(0) << 39
	}
	return Va_t(v)
}

// indexes splits the vpn into its three level indices, most significant
// first.
func (vpn Vpn_t) indexes() [3]int {
	return [3]int{
		int(vpn >> 18 & 0x1ff),
		int(vpn >> 9 & 0x1ff),
		int(vpn & 0x1ff),
	}
}

// Pagetable_t is an Sv39 page table. It owns the frames backing its nodes
// unless constructed with Ptfromtoken, in which case it is a borrowed view
// used only for translation.
type Pagetable_t struct {
	root   mem.Ppn_t
	frames []*mem.Frames_t
}

// Mkpt allocates a page table with an empty root. Node allocation failure
// is a panic: the kernel has no retry path for page-table interior nodes.
func Mkpt() *Pagetable_t {
	fr, ok := mem.Physmem.Alloc(1)
	if !ok {
		panic("oom allocating page table root")
	}
	return &Pagetable_t{root: fr.First, frames: []*mem.Frames_t{fr}}
}

// Ptfromtoken wraps the page table named by a satp value without taking
// ownership of any frames.
func Ptfromtoken(token uint64) *Pagetable_t {
	return &Pagetable_t{root: mem.Ppn_t(token & mem.PTE_PPNMASK)}
}

// Token returns the satp value naming this table: Sv39 mode plus root PPN.
func (pt *Pagetable_t) Token() uint64 {
	return 8<<60 | uint64(pt.root)
}

func mkpte(ppn mem.Ppn_t, flags uint64) uint64 {
	return uint64(ppn)<<mem.PTE_PPNSHIFT | flags
}

func pteppn(pte uint64) mem.Ppn_t {
	return mem.Ppn_t(pte >> mem.PTE_PPNSHIFT & mem.PTE_PPNMASK)
}

// findptecreate walks to the leaf PTE for vpn, allocating intermediate
// nodes as needed. The returned PTE may be invalid; the caller fills it.
func (pt *Pagetable_t) findptecreate(vpn Vpn_t) *uint64 {
	ppn := pt.root
	idxs := vpn.indexes()
	for i, idx := range idxs {
		ptes := mem.Dmapptes(ppn)
		if i == 2 {
			return &ptes[idx]
		}
		if ptes[idx]&mem.PTE_V == 0 {
			fr, ok := mem.Physmem.Alloc(1)
			if !ok {
				panic("oom allocating page table node")
			}
			pt.frames = append(pt.frames, fr)
			ptes[idx] = mkpte(fr.First, mem.PTE_V)
		}
		ppn = pteppn(ptes[idx])
	}
	panic("unreachable")
}

// findpte walks to the leaf PTE for vpn. It returns nil if any level along
// the way is invalid.
func (pt *Pagetable_t) findpte(vpn Vpn_t) *uint64 {
	ppn := pt.root
	idxs := vpn.indexes()
	for i, idx := range idxs {
		ptes := mem.Dmapptes(ppn)
		if ptes[idx]&mem.PTE_V == 0 {
			return nil
		}
		if i == 2 {
			return &ptes[idx]
		}
		ppn = pteppn(ptes[idx])
	}
	panic("unreachable")
}

// Map installs a leaf mapping vpn -> ppn with the given R/W/X/U/G flags.
// Mapping over a valid leaf is a kernel bug and panics.
func (pt *Pagetable_t) Map(vpn Vpn_t, ppn mem.Ppn_t, flags uint64) {
	pte := pt.findptecreate(vpn)
	if *pte&mem.PTE_V != 0 {
		panic(fmt.Sprintf("vpn %#x already mapped", uint64(vpn)))
	}
	*pte = mkpte(ppn, flags|mem.PTE_V)
}

// Unmap removes the leaf mapping for vpn; unmapping an invalid leaf panics.
func (pt *Pagetable_t) Unmap(vpn Vpn_t) {
	pte := pt.findpte(vpn)
	if pte == nil || *pte&mem.PTE_V == 0 {
		panic(fmt.Sprintf("vpn %#x not mapped", uint64(vpn)))
	}
	*pte = 0
}

// Translate returns the physical page vpn maps to.
func (pt *Pagetable_t) Translate(vpn Vpn_t) (mem.Ppn_t, bool) {
	pte := pt.findpte(vpn)
	if pte == nil || *pte&mem.PTE_V == 0 {
		return 0, false
	}
	return pteppn(*pte), true
}

// Transvapa translates a virtual address to physical, page offset included.
func (pt *Pagetable_t) Transvapa(va Va_t) (mem.Pa_t, bool) {
	ppn, ok := pt.Translate(va.Vpn())
	if !ok {
		return 0, false
	}
	return ppn.Pa() + mem.Pa_t(va.Pgoff()), true
}

// Leafflags returns the flags of the leaf PTE for vpn.
func (pt *Pagetable_t) Leafflags(vpn Vpn_t) (uint64, bool) {
	pte := pt.findpte(vpn)
	if pte == nil || *pte&mem.PTE_V == 0 {
		return 0, false
	}
	return *pte &^ (uint64(mem.PTE_PPNMASK) << mem.PTE_PPNSHIFT), true
}

// Rootpte reads root entry i; Wrootpte overwrites it. Used to share the
// kernel-half mappings into user address spaces without owning them.
func (pt *Pagetable_t) Rootpte(i int) uint64 {
	return mem.Dmapptes(pt.root)[i]
}

func (pt *Pagetable_t) Wrootpte(i int, v uint64) {
	mem.Dmapptes(pt.root)[i] = v
}

// Zerolowerhalf clears the root entries covering user addresses so that
// recycled user pages cannot be reached through a stale walk.
func (pt *Pagetable_t) Zerolowerhalf() {
	ptes := mem.Dmapptes(pt.root)
	for i := 0; i < len(ptes)/2; i++ {
		ptes[i] = 0
	}
}

// Flushtlb invalidates cached translations for this table.
func (pt *Pagetable_t) Flushtlb() {
	machine.Sfencevma(0)
}

// Activate loads this table into satp if it is not already current, then
// flushes the TLB.
func (pt *Pagetable_t) Activate() {
	tok := pt.Token()
	if machine.Satp() != tok {
		machine.Wsatp(tok)
		pt.Flushtlb()
	}
}

// Freenodes releases the node frames of an owning table. The caller must
// guarantee no further walks.
func (pt *Pagetable_t) Freenodes() {
	for _, fr := range pt.frames {
		fr.Free()
	}
	pt.frames = nil
}

// Clearexceptroot frees every owned node frame but the root. The kernel-half
// root entries point at node pages owned by the kernel table, so after
// zeroing the lower half of the root the table is a fresh user table that
// still shares the kernel mappings.
func (pt *Pagetable_t) Clearexceptroot() {
	if len(pt.frames) == 0 {
		panic("not an owning table")
	}
	for _, fr := range pt.frames[1:] {
		fr.Free()
	}
	pt.frames = pt.frames[:1]
}
