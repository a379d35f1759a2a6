package proc

import (
	"fmt"
	"sync"

	"github.com/cxz888/Neuclear/machine"
)

// The FIFO ready queue. Threads come off the front, go on the back;
// nothing else reorders.
var runq = struct {
	sync.Mutex
	q []*Thread_t
}{}

// Addrun marks the thread ready and appends it.
func Addrun(t *Thread_t) {
	t.Status = Ready
	runq.Lock()
	runq.q = append(runq.q, t)
	runq.Unlock()
}

func fetchready() (*Thread_t, bool) {
	runq.Lock()
	defer runq.Unlock()
	if len(runq.q) == 0 {
		return nil, false
	}
	t := runq.q[0]
	runq.q = runq.q[1:]
	return t, true
}

// Runqlen reports the number of ready threads.
func Runqlen() int {
	runq.Lock()
	defer runq.Unlock()
	return len(runq.q)
}

// cpu is the single hart's dispatch state: the running thread and the
// idle context the scheduler loop runs on.
var cpu = struct {
	current *Thread_t
	idlectx machine.Taskctx_t
}{}

// Current returns the running thread.
func Current() *Thread_t {
	return cpu.current
}

// Curproc returns the running thread's process.
func Curproc() *Proc_t {
	t := Current()
	if t == nil {
		panic("no current thread")
	}
	return t.Proc
}

// takecurrent removes the running thread from the hart.
func takecurrent() *Thread_t {
	t := cpu.current
	if t == nil {
		panic("no current thread")
	}
	cpu.current = nil
	return t
}

// Setcurrent installs the running thread; the boot path and tests use it.
func Setcurrent(t *Thread_t) {
	cpu.current = t
}

// Run_tasks is the idle loop: fetch the next ready thread, activate its
// address space, and switch to it. An empty queue means every thread is
// gone, which is a kernel bug -- init never exits.
func Run_tasks() {
	for {
		t, ok := fetchready()
		if !ok {
			panic("no runnable threads")
		}
		t.Status = Running
		t.Proc.As.Activate()
		cpu.current = t
		machine.Swtch(&cpu.idlectx, &t.Tctx)
	}
}

// schedule switches from the given saved context back to the idle loop.
// Crossing it obliterates locals; callers drop every lock first.
func schedule(cur *machine.Taskctx_t) {
	machine.Swtch(cur, &cpu.idlectx)
}

// Suspend gives up the CPU but stays runnable: the current thread goes to
// the back of the ready queue.
func Suspend() {
	t := takecurrent()
	t.Status = Ready
	Addrun(t)
	schedule(&t.Tctx)
}

// Block gives up the CPU without re-enqueueing; someone else (the timer
// wheel) makes the thread ready again.
func Block() {
	t := takecurrent()
	t.Status = Blocking
	schedule(&t.Tctx)
}

// Exit ends the current thread with the given code and never returns. The
// thread's user resource is freed now; the TCB and kernel stack stay for
// waittid. A main-thread exit takes the whole process down: children are
// handed to init, every thread's user resource is freed, user pages are
// recycled, and the fd table is dropped. The exit code parks in the PCB
// for wait4.
func Exit(code int) {
	t := takecurrent()
	Exitthread(t, code)
	// the exiting context is never resumed, so its save slot is a
	// throwaway
	var unused machine.Taskctx_t
	schedule(&unused)
	panic("zombie thread ran")
}

// Exitthread is the bookkeeping half of Exit: it frees the thread's user
// resource and, for a main thread, performs the whole process-exit
// protocol. Exit calls it before scheduling away.
func Exitthread(t *Thread_t, code int) {
	p := t.Proc
	tid := t.Tid()
	t.Exited = true
	t.Exitcode = code
	p.Lock()
	t.Res.Free()
	t.Res = nil

	if tid == 0 {
		if proc_debug {
			fmt.Printf("process %v exits with %v\n", p.Pid, code)
		}
		p.Zombie = true
		p.Exitcode = code
		p.reparent()
		for _, ot := range p.Threads {
			if ot != nil && ot.Res != nil {
				ot.Res.Free()
				ot.Res = nil
			}
		}
		p.As.Recycleuser()
		for _, f := range p.Fdtable {
			if f != nil {
				f.Fops.Close()
			}
		}
		p.Fdtable = nil
	}
	p.Unlock()
}
