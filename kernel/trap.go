// Package kernel is the S-mode core: trap dispatch, the syscall table,
// and the ELF loader.
package kernel

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/riscv64/riscv64asm"

	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/proc"
)

var trap_debug = false

// Trap is the C-level trap handler. The trap vector has already saved
// x0-x31, sstatus, and sepc into the current thread's trap context; this
// decodes scause and dispatches. A trap taken while already in S-mode is
// a kernel bug.
func Trap(scause, stval uint64) {
	t := proc.Current()
	tf := &t.Trapctx
	if !tf.Fromuser() {
		panic(fmt.Sprintf("trap %#x from kernel, stval %#x", scause, stval))
	}
	switch scause {
	case machine.EXC_USER_ECALL:
		// advance past the ecall whatever the syscall does
		tf.Sepc += 4
		num := int(tf.X[machine.REG_A7])
		args := [6]uint64{
			tf.X[machine.REG_A0], tf.X[machine.REG_A1],
			tf.X[machine.REG_A2], tf.X[machine.REG_A3],
			tf.X[machine.REG_A4], tf.X[machine.REG_A5],
		}
		ret := Syscall(num, args)
		// execve rebuilds the memory image and with it the trap
		// context; re-fetch before writing the return value
		tf = &proc.Current().Trapctx
		tf.X[machine.REG_A0] = uint64(ret)
	case machine.EXC_INST_FAULT, machine.EXC_LOAD_FAULT,
		machine.EXC_STORE_FAULT, machine.EXC_INST_PAGE_FAULT,
		machine.EXC_LOAD_PAGE_FAULT, machine.EXC_STORE_PAGE_FAULT:
		fmt.Printf("pid %v: memory fault (scause %v) at %#x, pc %#x; killed\n",
			t.Proc.Pid, scause, stval, tf.Sepc)
		proc.Exit(-2)
	case machine.EXC_ILLEGAL_INST:
		fmt.Printf("pid %v: illegal instruction %v at pc %#x; killed\n",
			t.Proc.Pid, badinst(stval), tf.Sepc)
		proc.Exit(-3)
	case machine.INTR_STIMER:
		machine.Nexttrigger()
		// one tick of user time on the current process's bill
		t.Proc.Accnt.Utadd(1_000_000_000 / machine.Tickspersec)
		proc.Checktimers()
		proc.Suspend()
	default:
		panic(fmt.Sprintf("unhandled trap %#x, stval %#x", scause, stval))
	}
}

// badinst renders the faulting instruction word stval carries on illegal
// instruction traps.
func badinst(stval uint64) string {
	var b [4]uint8
	binary.LittleEndian.PutUint32(b[:], uint32(stval))
	inst, err := riscv64asm.Decode(b[:])
	if err != nil {
		return fmt.Sprintf("%#x", uint32(stval))
	}
	return inst.String()
}
