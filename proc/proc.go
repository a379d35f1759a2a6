// Package proc implements processes, threads, and the scheduler.
package proc

import (
	"fmt"
	"sync"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/fd"
	"github.com/cxz888/Neuclear/signal"
	"github.com/cxz888/Neuclear/ustr"
	"github.com/cxz888/Neuclear/vm"
)

var proc_debug = false

// Proc_t is a process control block. The embedded mutex protects every
// mutable field; a thread mutating its own process takes the process lock
// before its thread lock, never the reverse.
type Proc_t struct {
	Pid int
	sync.Mutex
	Zombie   bool
	As       *vm.Aspace_t
	Parent   *Proc_t
	Children []*Proc_t
	Exitcode int
	// Heapstart is fixed at load time; Brk moves with sys_brk and never
	// drops below Heapstart's address.
	Heapstart vm.Vpn_t
	Brk       uint64
	Fdtable   []*fd.Fd_t
	// Threads is indexed by tid. Slots go nil when waittid reaps.
	Threads  []*Thread_t
	Tidalloc Idalloc_t
	Cwd      *fd.Cwd_t
	Sighands *signal.Sighands_t
	Accnt    Accnt_t
}

// Initproc is the ancestor process (pid 0). It adopts orphans and never
// exits.
var Initproc *Proc_t

// Mkproc allocates a pid and an empty process whose address space shares
// the kernel half. The main thread exists but owns no user memory until
// the loader builds the image. The caller installs the default fd table.
func Mkproc() *Proc_t {
	p := &Proc_t{
		Pid:      pid_alloc(),
		Cwd:      fd.MkRootCwd(),
		Sighands: signal.MkSighands(),
	}
	p.As = vm.Mkbare()
	p.As.Mapkernel(vm.Kernelas.Pt)
	Ptable.Set(p.Pid, p)
	t := mkthread(p)
	p.Threads = []*Thread_t{t}
	return p
}

// Mainthread returns the thread with tid 0, which exists for as long as
// the process is alive.
func (p *Proc_t) Mainthread() *Thread_t {
	t := p.Threads[0]
	if t == nil {
		panic("no main thread")
	}
	return t
}

// Threadcount returns the number of unreaped threads.
func (p *Proc_t) Threadcount() int {
	n := 0
	for _, t := range p.Threads {
		if t != nil {
			n++
		}
	}
	return n
}

// Allocfd returns the lowest free descriptor slot at or above min. The
// floor comes straight from fcntl arguments, so it is validated here
// rather than trusted.
func (p *Proc_t) Allocfd(min int) (int, defs.Err_t) {
	if min < 0 || min >= defs.NOFILE {
		return 0, -defs.EINVAL
	}
	if min > len(p.Fdtable) {
		for len(p.Fdtable) < min {
			p.Fdtable = append(p.Fdtable, nil)
		}
	}
	for i := min; i < len(p.Fdtable); i++ {
		if p.Fdtable[i] == nil {
			return i, 0
		}
	}
	if len(p.Fdtable) >= defs.NOFILE {
		return 0, -defs.EMFILE
	}
	p.Fdtable = append(p.Fdtable, nil)
	return len(p.Fdtable) - 1, 0
}

// Getfd returns the descriptor in slot fdn.
func (p *Proc_t) Getfd(fdn int) (*fd.Fd_t, defs.Err_t) {
	if fdn < 0 || fdn >= len(p.Fdtable) || p.Fdtable[fdn] == nil {
		return nil, -defs.EBADF
	}
	return p.Fdtable[fdn], 0
}

// Fork deep-clones the process: an independent address space populated
// with this process's bytes, a cloned fd table sharing the file objects,
// copied signal handlers, and a fresh main thread carrying a copy of the
// parent's trap context. Only single-threaded processes fork. The caller
// zeroes the child's return-value register and enqueues the child.
func (p *Proc_t) Fork() *Proc_t {
	p.Lock()
	defer p.Unlock()
	if p.Threadcount() != 1 {
		panic("fork with threads")
	}
	child := &Proc_t{
		Pid:       pid_alloc(),
		As:        vm.Clone(p.As),
		Parent:    p,
		Heapstart: p.Heapstart,
		Brk:       p.Brk,
		Cwd:       fd.MkRootCwd(),
		Sighands:  p.Sighands.Clone(),
		Tidalloc:  p.Tidalloc.Clone(),
	}
	child.Cwd.Path = append(ustr.MkUstr(), p.Cwd.Path...)
	child.Fdtable = make([]*fd.Fd_t, len(p.Fdtable))
	for i, f := range p.Fdtable {
		if f == nil {
			continue
		}
		nf, err := fd.Copyfd(f)
		if err != 0 {
			panic("copyfd")
		}
		child.Fdtable[i] = nf
	}
	Ptable.Set(child.Pid, child)
	p.Children = append(p.Children, child)

	pt := p.Mainthread()
	ct := mkthreadres(child, pt.Res.Tid)
	ct.Trapctx = pt.Trapctx
	child.Threads = []*Thread_t{ct}
	if proc_debug {
		fmt.Printf("fork: %v -> %v\n", p.Pid, child.Pid)
	}
	return child
}

// Closecloexec drops every descriptor whose file is marked close-on-exec;
// execve calls it.
func (p *Proc_t) Closecloexec() {
	for i, f := range p.Fdtable {
		if f != nil && f.Fops.Cloexec() {
			fd.Close_panic(f)
			p.Fdtable[i] = nil
		}
	}
}

// Destroy frees what exit left behind once the parent has collected the
// exit code: kernel stacks, the page-table root, the pid. The timer wheel
// may still hold the threads; the doomed flag tells it to drop them.
func (p *Proc_t) Destroy() {
	for _, t := range p.Threads {
		if t != nil {
			t.doomed = true
			t.Kstack.Free()
		}
	}
	p.Threads = nil
	p.As.Recycleall()
	Ptable.Del(p.Pid)
	pid_dealloc(p.Pid)
}

// Reparent moves this process's children to init, as happens when the
// process exits. Never creates a cycle: children keep weak-style parent
// pointers while init owns the strong slice entries.
func (p *Proc_t) reparent() {
	if p == Initproc || len(p.Children) == 0 {
		return
	}
	Initproc.Lock()
	for _, c := range p.Children {
		c.Parent = Initproc
		Initproc.Children = append(Initproc.Children, c)
	}
	Initproc.Unlock()
	p.Children = nil
}
