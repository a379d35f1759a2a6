package proc

import (
	"sync"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/mem"
	"github.com/cxz888/Neuclear/signal"
	"github.com/cxz888/Neuclear/vm"
)

// Tstate_t is a thread's scheduler state.
type Tstate_t int

const (
	Ready Tstate_t = iota
	Running
	Blocking
)

// Thread_t is a thread control block. The kernel stack and the saved trap
// context survive thread exit so that waittid can still read the exit
// code; the per-thread user resource (tid plus user stack) is torn down at
// exit time.
type Thread_t struct {
	Proc   *Proc_t
	Kstack *mem.Frames_t
	sync.Mutex
	// Tctx is the callee-saved state the scheduler switches through.
	// Trapctx is the full user state saved by the trap vector; it lives
	// at the top of the kernel stack on hardware.
	Tctx    machine.Taskctx_t
	Trapctx machine.Trapctx_t
	Status  Tstate_t
	Exited  bool
	Exitcode int
	// Res goes nil at thread exit while the TCB lingers for waittid.
	Res           *Userres_t
	Clearchildtid uint64
	Sigrecv       signal.Sigrecv_t
	// doomed marks a thread whose process has been reaped; the timer
	// wheel discards such threads instead of waking them.
	doomed bool
}

// Userres_t holds a thread's per-process resources: its tid and, through
// it, the location of its user stack. Freeing it returns the tid and
// unmaps the stack.
type Userres_t struct {
	Tid  defs.Tid_t
	proc *Proc_t
}

// Ustackhigh returns the top of the thread's user stack: stacks are
// carved downward from the top of the user half, one stack plus guard
// page per tid.
func (ur *Userres_t) Ustackhigh() vm.Va_t {
	return vm.Va_t(defs.LOWEND - uint64(ur.Tid)*uint64(defs.USTACKSZ+mem.PGSIZE))
}

// Ustacklow returns the bottom of the stack.
func (ur *Userres_t) Ustacklow() vm.Va_t {
	return ur.Ustackhigh() - vm.Va_t(defs.USTACKSZ)
}

// Allocustack maps the thread's user stack; the loader calls it when
// building a fresh image.
func (ur *Userres_t) Allocustack(as *vm.Aspace_t) {
	as.Insertframed(ur.Ustacklow().Vpn(), ur.Ustackhigh().Vpnceil(),
		mem.PTE_R|mem.PTE_W|mem.PTE_U)
}

// Free returns the tid and unmaps the user stack. The caller holds the
// process lock.
func (ur *Userres_t) Free() {
	ur.proc.Tidalloc.Dealloc(int(ur.Tid))
	ur.proc.As.Remove(ur.Ustacklow().Vpn())
}

func kstack_alloc() *mem.Frames_t {
	fr, ok := mem.Physmem.Alloc(defs.KSTACKSZ / mem.PGSIZE)
	if !ok {
		panic("oom allocating kernel stack")
	}
	return fr
}

// mkthread creates a TCB with a fresh tid, a kernel stack, and a task
// context that resumes at the trap-return trampoline. The user stack is
// not mapped yet.
func mkthread(p *Proc_t) *Thread_t {
	tid := defs.Tid_t(p.Tidalloc.Alloc())
	return mkthreadres(p, tid)
}

// mkthreadres is mkthread with the tid chosen by the caller; fork uses it
// to keep the parent's tid.
func mkthreadres(p *Proc_t, tid defs.Tid_t) *Thread_t {
	t := &Thread_t{
		Proc:   p,
		Kstack: kstack_alloc(),
		Status: Ready,
		Res:    &Userres_t{Tid: tid, proc: p},
	}
	t.Tctx = machine.Taskctx_t{Ra: trapret_addr, Sp: t.kstacktop()}
	return t
}

// trapret_addr is where a freshly created thread's saved ra points: the
// trampoline that restores the prepared trap context. On hardware it is
// the address of the assembly __restore stub; the machine layer installs
// it at boot.
var trapret_addr uint64

// Settrapret records the trampoline address.
func Settrapret(addr uint64) {
	trapret_addr = addr
}

// kstacktop is the initial kernel stack pointer, just below the slot the
// trap context occupies.
func (t *Thread_t) kstacktop() uint64 {
	high := (t.Kstack.First + mem.Ppn_t(t.Kstack.Npgs)).Kva()
	return high - uint64(len(machine.Trapctx_t{}.X)*8) - 16
}

// Tid returns the thread's id; it panics if the resource is already gone.
func (t *Thread_t) Tid() defs.Tid_t {
	if t.Res == nil {
		panic("no thread resource")
	}
	return t.Res.Tid
}

// Doomed reports whether the owning process has been reaped.
func (t *Thread_t) Doomed() bool {
	return t.doomed
}
