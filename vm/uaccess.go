package vm

import (
	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/mem"
	"github.com/cxz888/Neuclear/ustr"
	"github.com/cxz888/Neuclear/util"
)

// User-memory access. Every page a transfer touches is walked and its leaf
// PTE checked for U plus the direction's R or W bit; a buffer that spans
// pages is only as good as its worst page. The copies go through the
// kernel linear map, so they work whether or not the target space is the
// one currently loaded in satp -- exec depends on that.

// userpage returns the kernel alias of user memory at va up to the end of
// its page, after checking the required PTE bits.
func (as *Aspace_t) userpage(va Va_t, write bool) ([]uint8, defs.Err_t) {
	flags, ok := as.Pt.Leafflags(va.Vpn())
	if !ok || flags&mem.PTE_U == 0 {
		return nil, -defs.EFAULT
	}
	need := mem.PTE_R
	if write {
		need = mem.PTE_W
	}
	if flags&need == 0 {
		return nil, -defs.EFAULT
	}
	ppn, _ := as.Pt.Translate(va.Vpn())
	pg := mem.Dmappg(ppn)
	return pg[va.Pgoff():], 0
}

// Userok verifies that [va, va+l) is mapped with the required bits without
// copying anything.
func (as *Aspace_t) Userok(va Va_t, l int, write bool) defs.Err_t {
	if l == 0 {
		l = 1
	}
	for n := 0; n < l; {
		pg, err := as.userpage(va+Va_t(n), write)
		if err != 0 {
			return err
		}
		n += len(pg)
	}
	return 0
}

// User2k copies len(dst) bytes from user address uva into dst.
func (as *Aspace_t) User2k(dst []uint8, uva Va_t) defs.Err_t {
	cnt := 0
	for len(dst) != 0 {
		src, err := as.userpage(uva+Va_t(cnt), false)
		if err != 0 {
			return err
		}
		did := copy(dst, src)
		dst = dst[did:]
		cnt += did
	}
	return 0
}

// K2user copies src into the user address space starting at uva.
func (as *Aspace_t) K2user(src []uint8, uva Va_t) defs.Err_t {
	cnt := 0
	for len(src) != 0 {
		dst, err := as.userpage(uva+Va_t(cnt), true)
		if err != 0 {
			return err
		}
		did := copy(dst, src)
		src = src[did:]
		cnt += did
	}
	return 0
}

// Userstr copies a NUL terminated string from user space, up to lenmax
// bytes.
func (as *Aspace_t) Userstr(uva Va_t, lenmax int) (ustr.Ustr, defs.Err_t) {
	s := ustr.MkUstr()
	i := 0
	for {
		pg, err := as.userpage(uva+Va_t(i), false)
		if err != 0 {
			return nil, err
		}
		for j, c := range pg {
			if c == 0 {
				if len(s)+j >= lenmax {
					return nil, -defs.ENAMETOOLONG
				}
				return append(s, pg[:j]...), 0
			}
		}
		s = append(s, pg...)
		i += len(pg)
		if len(s) >= lenmax {
			return nil, -defs.ENAMETOOLONG
		}
	}
}

// Userreadn reads an n byte little-endian value from user address va.
func (as *Aspace_t) Userreadn(va Va_t, n int) (uint64, defs.Err_t) {
	if n > 8 {
		panic("large n")
	}
	var buf [8]uint8
	if err := as.User2k(buf[:n], va); err != 0 {
		return 0, err
	}
	return uint64(util.Readn(buf[:], n, 0)), 0
}

// Userwriten writes an n byte little-endian value to user address va.
func (as *Aspace_t) Userwriten(va Va_t, n int, val uint64) defs.Err_t {
	if n > 8 {
		panic("large n")
	}
	var buf [8]uint8
	util.Writen(buf[:], n, 0, int(val))
	return as.K2user(buf[:n], va)
}

// Kcopy writes src at va through the page table with no permission
// check. Only image construction uses it: the loader fills text pages
// that are mapped read-execute, and the stack builder runs before the
// space is ever active.
func (as *Aspace_t) Kcopy(src []uint8, va Va_t) {
	cnt := 0
	for len(src) != 0 {
		cur := va + Va_t(cnt)
		ppn, ok := as.Pt.Translate(cur.Vpn())
		if !ok {
			panic("image page not mapped")
		}
		pg := mem.Dmappg(ppn)
		did := copy(pg[cur.Pgoff():], src)
		src = src[did:]
		cnt += did
	}
}

// Kread fills dst from va with no permission check; tests use it to
// inspect image pages.
func (as *Aspace_t) Kread(dst []uint8, va Va_t) {
	cnt := 0
	for len(dst) != 0 {
		cur := va + Va_t(cnt)
		ppn, ok := as.Pt.Translate(cur.Vpn())
		if !ok {
			panic("image page not mapped")
		}
		pg := mem.Dmappg(ppn)
		did := copy(dst, pg[cur.Pgoff():])
		dst = dst[did:]
		cnt += did
	}
}

// Useriov describes one entry of a readv/writev vector after validation.
type Useriov_t struct {
	Base Va_t
	Len  uint64
}
