package kernel

import (
	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/mem"
	"github.com/cxz888/Neuclear/proc"
	"github.com/cxz888/Neuclear/signal"
	"github.com/cxz888/Neuclear/ustr"
	"github.com/cxz888/Neuclear/vm"
)

// mmap prot and flag bits.
const (
	PROT_READ  = 1 << 0
	PROT_WRITE = 1 << 1
	PROT_EXEC  = 1 << 2

	MAP_SHARED    = 1 << 0
	MAP_PRIVATE   = 1 << 1
	MAP_FIXED     = 1 << 4
	MAP_ANONYMOUS = 1 << 5
	MAP_NORESERVE = 1 << 14
)

func sys_getppid() int64 {
	p := proc.Curproc()
	p.Lock()
	defer p.Unlock()
	if p.Parent == nil {
		return 0
	}
	return int64(p.Parent.Pid)
}

// sys_clone currently implements only fork: the low byte carries the exit
// signal, and any real clone flag is rejected rather than half-honored.
func sys_clone(flags, ustack, ptid, tls, ctid uint64) int64 {
	if flags&^uint64(0xff) != 0 {
		return err2ret(-defs.EINVAL)
	}
	p := proc.Curproc()
	child := p.Fork()
	ct := child.Mainthread()
	// fork returns 0 in the child
	ct.Trapctx.X[machine.REG_A0] = 0
	proc.Addrun(ct)
	return int64(child.Pid)
}

func sys_execve(pathva, argvva, envpva uint64) int64 {
	p := proc.Curproc()
	path, err := p.As.Userstr(vm.Va_t(pathva), 4096)
	if err != 0 {
		return err2ret(err)
	}
	var args []ustr.Ustr
	for i := uint64(0); ; i++ {
		ptr, err := p.As.Userreadn(vm.Va_t(argvva+i*8), 8)
		if err != 0 {
			return err2ret(err)
		}
		if ptr == 0 {
			break
		}
		arg, err := p.As.Userstr(vm.Va_t(ptr), 4096)
		if err != 0 {
			return err2ret(err)
		}
		args = append(args, arg)
	}
	full, err := path_with_fd(defs.AT_FDCWD, path)
	if err != 0 {
		return err2ret(err)
	}
	p.Lock()
	if p.Threadcount() != 1 {
		p.Unlock()
		return err2ret(-defs.EINVAL)
	}
	err = Load(p, full, args)
	p.Unlock()
	if err != 0 {
		return err2ret(err)
	}
	p.As.Pt.Flushtlb()
	return int64(len(args))
}

func sys_wait4(pid int, statusva uint64, options uint64) int64 {
	if pid == 0 || pid < -1 {
		return err2ret(-defs.EINVAL)
	}
	if options&^uint64(defs.WNOHANG|defs.WUNTRACED|defs.WCONTINUED) != 0 {
		return err2ret(-defs.EINVAL)
	}
	for {
		p := proc.Curproc()
		p.Lock()
		matched := false
		var zombie *proc.Proc_t
		zidx := -1
		for i, c := range p.Children {
			if pid == -1 || c.Pid == pid {
				matched = true
				c.Lock()
				if c.Zombie {
					zombie = c
					zidx = i
				}
				c.Unlock()
				if zombie != nil {
					break
				}
			}
		}
		if !matched {
			p.Unlock()
			return err2ret(-defs.ECHILD)
		}
		if zombie == nil {
			p.Unlock()
			if options&defs.WNOHANG != 0 {
				return 0
			}
			proc.Suspend()
			continue
		}
		// collect: drop the last owning reference and tear the child
		// down
		p.Children = append(p.Children[:zidx], p.Children[zidx+1:]...)
		p.Accnt.Add(&zombie.Accnt)
		p.Unlock()
		code := zombie.Exitcode
		zpid := zombie.Pid
		zombie.Destroy()
		if statusva != 0 {
			st := uint64(uint32(code) << 8)
			if err := p.As.Userwriten(vm.Va_t(statusva), 4, st); err != 0 {
				return err2ret(err)
			}
		}
		return int64(zpid)
	}
}

func sys_waittid(tid int) int64 {
	t := proc.Current()
	p := t.Proc
	if int(t.Tid()) == tid {
		return err2ret(-defs.EINVAL)
	}
	p.Lock()
	defer p.Unlock()
	if tid < 0 || tid >= len(p.Threads) || p.Threads[tid] == nil {
		return err2ret(-defs.ESRCH)
	}
	wt := p.Threads[tid]
	if !wt.Exited {
		return err2ret(-defs.EAGAIN)
	}
	code := wt.Exitcode
	wt.Kstack.Free()
	p.Threads[tid] = nil
	return int64(code)
}

// sys_brk with 0 reports the current break; otherwise it moves the break,
// refusing to drop below the heap base.
func sys_brk(newbrk uint64) int64 {
	p := proc.Curproc()
	p.Lock()
	defer p.Unlock()
	heapbase := uint64(p.Heapstart.Va())
	if newbrk == 0 || newbrk < heapbase {
		return int64(p.Brk)
	}
	newend := vm.Va_t(newbrk).Vpnceil()
	p.As.Setuserbrk(newend, p.Heapstart)
	p.Brk = newbrk
	return int64(newbrk)
}

func sys_mmap(addr, l uint64, prot, flags uint32, fdn int, offset uint64) int64 {
	if addr&mem.PGOFFSET != 0 || l == 0 {
		return err2ret(-defs.EINVAL)
	}
	if prot&^uint32(PROT_READ|PROT_WRITE|PROT_EXEC) != 0 {
		return err2ret(-defs.EINVAL)
	}
	known := uint32(MAP_SHARED | MAP_PRIVATE | MAP_FIXED | MAP_ANONYMOUS |
		MAP_NORESERVE)
	if flags&^known != 0 {
		return err2ret(-defs.EINVAL)
	}
	if flags&MAP_ANONYMOUS == 0 {
		// file mappings are not implemented
		return err2ret(-defs.ENOSYS)
	}
	if flags&MAP_SHARED != 0 {
		return err2ret(-defs.EPERM)
	}
	if fdn != -1 || offset != 0 {
		return err2ret(-defs.EPERM)
	}
	perms := mem.PTE_U
	if prot&PROT_READ != 0 {
		perms |= mem.PTE_R
	}
	if prot&PROT_WRITE != 0 {
		perms |= mem.PTE_W
	}
	if prot&PROT_EXEC != 0 {
		perms |= mem.PTE_X
	}
	p := proc.Curproc()
	p.Lock()
	defer p.Unlock()
	start := vm.Va_t(addr).Vpn()
	end := vm.Va_t(addr + l).Vpnceil()
	if flags&MAP_FIXED == 0 {
		n := vm.Va_t(l).Vpnceil()
		start = 0
		end = vm.Vpn_t(n)
		ret, err := p.As.Trymap(start, end, perms, false)
		if err != 0 {
			return err2ret(err)
		}
		return int64(ret.Va())
	}
	ret, err := p.As.Trymap(start, end, perms, true)
	if err != 0 {
		return err2ret(err)
	}
	return int64(ret.Va())
}

func sys_set_tid_address(tidva uint64) int64 {
	t := proc.Current()
	t.Clearchildtid = tidva
	return int64(t.Tid())
}

func sys_clock_gettime(clockid int, tsva uint64) int64 {
	if clockid != defs.CLOCK_REALTIME {
		return err2ret(-defs.EINVAL)
	}
	cyc := machine.Rdtime()
	sec := cyc / machine.Clockfreq
	nsec := (cyc % machine.Clockfreq) * 1_000_000_000 / machine.Clockfreq
	as := proc.Curproc().As
	if err := as.Userwriten(vm.Va_t(tsva), 8, sec); err != 0 {
		return err2ret(err)
	}
	if err := as.Userwriten(vm.Va_t(tsva+8), 8, nsec); err != 0 {
		return err2ret(err)
	}
	return 0
}

func sys_gettimeofday(tvva, tzva uint64) int64 {
	cyc := machine.Rdtime()
	sec := cyc / machine.Clockfreq
	usec := (cyc % machine.Clockfreq) * 1_000_000 / machine.Clockfreq
	as := proc.Curproc().As
	if err := as.Userwriten(vm.Va_t(tvva), 8, sec); err != 0 {
		return err2ret(err)
	}
	if err := as.Userwriten(vm.Va_t(tvva+8), 8, usec); err != 0 {
		return err2ret(err)
	}
	return 0
}

// sys_times reports CPU time in 100Hz clock ticks from the process
// accounting record.
func sys_times(tmsva uint64) int64 {
	p := proc.Curproc()
	userns, sysns := p.Accnt.Fetch()
	const tickns = 10_000_000
	as := p.As
	vals := [4]uint64{uint64(userns / tickns), uint64(sysns / tickns), 0, 0}
	for i, v := range vals {
		if err := as.Userwriten(vm.Va_t(tmsva+uint64(i)*8), 8, v); err != 0 {
			return err2ret(err)
		}
	}
	return int64(proc.Time_ms() / 10)
}

func sys_kill(pid, sig int) int64 {
	target, ok := proc.Lookup(pid)
	if !ok {
		return err2ret(-defs.ESRCH)
	}
	if sig == 0 {
		return 0
	}
	target.Lock()
	defer target.Unlock()
	if target.Zombie || len(target.Threads) == 0 {
		return err2ret(-defs.ESRCH)
	}
	return int64(target.Mainthread().Sigrecv.Post(sig))
}

func sys_sigaction(sig int, actva, oldactva uint64) int64 {
	p := proc.Curproc()
	p.Lock()
	defer p.Unlock()
	if oldactva != 0 {
		old, err := p.Sighands.Get(sig)
		if err != 0 {
			return err2ret(err)
		}
		buf := make([]uint8, 32)
		w := func(off int, v uint64) {
			for i := 0; i < 8; i++ {
				buf[off+i] = uint8(v >> (8 * i))
			}
		}
		w(0, old.Handler)
		w(8, old.Flags)
		w(16, old.Restorer)
		w(24, uint64(old.Mask))
		if err := p.As.K2user(buf, vm.Va_t(oldactva)); err != 0 {
			return err2ret(err)
		}
	}
	if actva != 0 {
		var act signal.Sigaction_t
		rd := func(off uint64) uint64 {
			v, err := p.As.Userreadn(vm.Va_t(actva+off), 8)
			if err != 0 {
				v = 0
			}
			return v
		}
		if err := p.As.Userok(vm.Va_t(actva), 32, false); err != 0 {
			return err2ret(err)
		}
		act.Handler = rd(0)
		act.Flags = rd(8)
		act.Restorer = rd(16)
		act.Mask = signal.Sigset_t(rd(24))
		if err := p.Sighands.Set(sig, act); err != 0 {
			return err2ret(err)
		}
	}
	return 0
}

const (
	sig_BLOCK   = 0
	sig_UNBLOCK = 1
	sig_SETMASK = 2
)

func sys_sigprocmask(how int, setva, oldsetva, setsize uint64) int64 {
	if setsize != 8 {
		return err2ret(-defs.EINVAL)
	}
	t := proc.Current()
	as := t.Proc.As
	if oldsetva != 0 {
		if err := as.Userwriten(vm.Va_t(oldsetva), 8, uint64(t.Sigrecv.Mask)); err != 0 {
			return err2ret(err)
		}
	}
	if setva == 0 {
		return 0
	}
	v, err := as.Userreadn(vm.Va_t(setva), 8)
	if err != 0 {
		return err2ret(err)
	}
	// SIGKILL and SIGSTOP cannot be masked
	set := signal.Sigset_t(v) &^
		(signal.Mkset(signal.SIGKILL) | signal.Mkset(signal.SIGSTOP))
	switch how {
	case sig_BLOCK:
		t.Sigrecv.Mask.Insert(set)
	case sig_UNBLOCK:
		t.Sigrecv.Mask.Remove(signal.Sigset_t(v))
	case sig_SETMASK:
		t.Sigrecv.Mask = set
	default:
		return err2ret(-defs.EINVAL)
	}
	return 0
}

// uname fields are 65 bytes each, the musl layout.
func sys_uname(bufva uint64) int64 {
	fields := [6]string{
		"Neuclear",
		"neuclear-machine0",
		"5.0.0",
		"0.1",
		"riscv64",
		"localdomain",
	}
	as := proc.Curproc().As
	for i, s := range fields {
		field := make([]uint8, 65)
		copy(field, s)
		if err := as.K2user(field, vm.Va_t(bufva+uint64(i)*65)); err != 0 {
			return err2ret(err)
		}
	}
	return 0
}
