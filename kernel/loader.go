package kernel

import (
	"bytes"
	"debug/elf"
	"fmt"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/fs"
	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/mem"
	"github.com/cxz888/Neuclear/proc"
	"github.com/cxz888/Neuclear/ustr"
	"github.com/cxz888/Neuclear/util"
	"github.com/cxz888/Neuclear/vm"
)

var loader_debug = false

// Auxv keys the loader emits.
const (
	AT_PAGESZ = 6
	AT_RANDOM = 25
)

// Load replaces the process image with the ELF at path: recycle the old
// user pages, map every PT_LOAD segment, place the heap right past the
// image, build the main thread's user stack, and point its trap context
// at the entry. The caller holds the process lock and has verified the
// process is single-threaded.
func Load(p *proc.Proc_t, path ustr.Ustr, args []ustr.Ustr) defs.Err_t {
	f, err := fs.Open_inode(path, fs.O_RDONLY)
	if err != 0 {
		return err
	}
	data, err := f.Readall()
	if err != 0 {
		return err
	}
	ef, perr := elf.NewFile(bytes.NewReader(data))
	if perr != nil {
		return -defs.ENOEXEC
	}
	// a wrong-flavored binary in the image is a build bug, not a load
	// condition
	if ef.Class != elf.ELFCLASS64 || ef.Data != elf.ELFDATA2LSB {
		panic("not a little-endian ELF64")
	}
	if ef.Type != elf.ET_EXEC {
		panic("not a static executable")
	}
	if ef.Machine != elf.EM_RISCV {
		panic("not a RISC-V binary")
	}
	if loader_debug {
		fmt.Printf("load %s entry %#x\n", path, ef.Entry)
	}

	p.As.Recycleuser()
	p.Sighands.Clear()
	mt := p.Mainthread()
	mt.Sigrecv.Clear()
	p.Closecloexec()

	var maxend vm.Vpn_t
	for _, ph := range ef.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		start := vm.Va_t(ph.Vaddr)
		end := vm.Va_t(ph.Vaddr + ph.Memsz)
		perms := mem.PTE_U
		if ph.Flags&elf.PF_R != 0 {
			perms |= mem.PTE_R
		}
		if ph.Flags&elf.PF_W != 0 {
			perms |= mem.PTE_W
		}
		if ph.Flags&elf.PF_X != 0 {
			perms |= mem.PTE_X
		}
		p.As.Insertframed(start.Vpn(), end.Vpnceil(), perms)
		fdata := data[ph.Off : ph.Off+ph.Filesz]
		p.As.Kcopy(fdata, start)
		maxend = util.Max(maxend, end.Vpnceil())
	}

	// the program break sits just past the image and grows up from there
	p.Heapstart = maxend
	p.Brk = uint64(maxend.Va())

	ur := mt.Res
	ur.Allocustack(p.As)
	si := &stackinit_t{as: p.As, sp: ur.Ustackhigh()}
	argvbase := si.buildstack(args, nil)

	mt.Trapctx = machine.Trapctx_t{}
	mt.Trapctx.Sepc = ef.Entry
	mt.Trapctx.Setsp(uint64(si.sp))
	// sstatus.SPP stays clear: sret lands in user mode
	mt.Trapctx.X[machine.REG_A0] = uint64(len(args))
	mt.Trapctx.X[machine.REG_A1] = uint64(argvbase)
	return 0
}

// stackinit_t builds the initial user stack, writing through the kernel
// alias of each frame so it works while the address space is inactive.
type stackinit_t struct {
	as *vm.Aspace_t
	sp vm.Va_t
}

func (si *stackinit_t) pushn(v uint64) vm.Va_t {
	si.sp -= 8
	var b [8]uint8
	util.Writen(b[:], 8, 0, int(v))
	si.as.Kcopy(b[:], si.sp)
	return si.sp
}

func (si *stackinit_t) pushstr(s ustr.Ustr) vm.Va_t {
	si.sp -= vm.Va_t(len(s) + 1)
	b := make([]uint8, len(s)+1)
	copy(b, s)
	si.as.Kcopy(b, si.sp)
	return si.sp
}

// buildstack lays out, top down: a 16-byte random block, environment
// strings, argument strings, 8-byte alignment, the auxv (terminator
// first), envp, argv, argc. It returns the argv base for a1.
func (si *stackinit_t) buildstack(args, envs []ustr.Ustr) vm.Va_t {
	si.pushn(0)
	// the random block doubles as the AT_RANDOM payload; the timer is
	// the entropy on hand
	si.pushn(machine.Rdtime())
	si.pushn(machine.Rdtime())
	randompos := si.sp

	envptrs := make([]uint64, len(envs))
	for i, e := range envs {
		envptrs[i] = uint64(si.pushstr(e))
	}
	argptrs := make([]uint64, len(args))
	for i, a := range args {
		argptrs[i] = uint64(si.pushstr(a))
	}
	si.sp &^= 0b111

	// auxv pairs are (key, value) ascending, so value goes on first
	si.pushn(0)
	si.pushn(0)
	si.pushn(uint64(randompos))
	si.pushn(AT_RANDOM)
	si.pushn(uint64(mem.PGSIZE))
	si.pushn(AT_PAGESZ)

	si.pushn(0)
	for i := len(envptrs) - 1; i >= 0; i-- {
		si.pushn(envptrs[i])
	}
	si.pushn(0)
	for i := len(argptrs) - 1; i >= 0; i-- {
		si.pushn(argptrs[i])
	}
	argvbase := si.sp
	si.pushn(uint64(len(args)))
	return argvbase
}
