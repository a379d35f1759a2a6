package kernel

import (
	"fmt"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/proc"
)

var sysc_debug = false

// Syscall dispatches a user ecall. Negative returns are errnos.
func Syscall(num int, args [6]uint64) int64 {
	if sysc_debug {
		fmt.Printf("pid %v: %s %x\n", proc.Curproc().Pid, defs.Sysname(num), args)
	}
	var ret int64
	switch num {
	case defs.SYS_GETCWD:
		ret = sys_getcwd(args[0], args[1])
	case defs.SYS_DUP:
		ret = sys_dup(int(args[0]))
	case defs.SYS_DUP3:
		ret = sys_dup3(int(args[0]), int(args[1]))
	case defs.SYS_FCNTL64:
		ret = sys_fcntl64(int(args[0]), int(args[1]), args[2])
	case defs.SYS_IOCTL:
		ret = sys_ioctl(int(args[0]), args[1], args[2])
	case defs.SYS_MKDIRAT:
		ret = sys_mkdirat(int(int64(args[0])), args[1])
	case defs.SYS_CHDIR:
		ret = sys_chdir(args[0])
	case defs.SYS_OPENAT:
		ret = sys_openat(int(int64(args[0])), args[1], uint32(args[2]), uint32(args[3]))
	case defs.SYS_CLOSE:
		ret = sys_close(int(args[0]))
	case defs.SYS_PIPE2:
		ret = sys_pipe2(args[0], uint32(args[1]))
	case defs.SYS_READ:
		ret = sys_read(int(args[0]), args[1], int(args[2]))
	case defs.SYS_WRITE:
		ret = sys_write(int(args[0]), args[1], int(args[2]))
	case defs.SYS_READV:
		ret = sys_readv(int(args[0]), args[1], int(args[2]))
	case defs.SYS_WRITEV:
		ret = sys_writev(int(args[0]), args[1], int(args[2]))
	case defs.SYS_PPOLL:
		ret = 1
	case defs.SYS_FSTATAT:
		ret = sys_fstatat(int(int64(args[0])), args[1], args[2], args[3])
	case defs.SYS_FSTAT:
		ret = sys_fstat(int(args[0]), args[1])
	case defs.SYS_EXIT, defs.SYS_EXIT_GROUP:
		proc.Exit(int(args[0] & 0xff))
	case defs.SYS_SET_TID_ADDRESS:
		ret = sys_set_tid_address(args[0])
	case defs.SYS_SLEEP:
		proc.Sleep(args[0])
		ret = 0
	case defs.SYS_CLOCK_GETTIME:
		ret = sys_clock_gettime(int(args[0]), args[1])
	case defs.SYS_SCHED_YIELD:
		proc.Suspend()
		ret = 0
	case defs.SYS_KILL:
		ret = sys_kill(int(args[0]), int(args[1]))
	case defs.SYS_SIGACTION:
		ret = sys_sigaction(int(args[0]), args[1], args[2])
	case defs.SYS_SIGPROCMASK:
		ret = sys_sigprocmask(int(args[0]), args[1], args[2], args[3])
	case defs.SYS_TIMES:
		ret = sys_times(args[0])
	case defs.SYS_SETPGID, defs.SYS_GETPGID:
		ret = 0
	case defs.SYS_UNAME:
		ret = sys_uname(args[0])
	case defs.SYS_GETTIMEOFDAY:
		ret = sys_gettimeofday(args[0], args[1])
	case defs.SYS_GETPID:
		ret = int64(proc.Curproc().Pid)
	case defs.SYS_GETPPID:
		ret = sys_getppid()
	case defs.SYS_GETUID, defs.SYS_GETEUID, defs.SYS_GETGID, defs.SYS_GETEGID:
		ret = 0
	case defs.SYS_GETTID:
		ret = int64(proc.Current().Tid())
	case defs.SYS_BRK:
		ret = sys_brk(args[0])
	case defs.SYS_MUNMAP:
		ret = -int64(defs.ENOSYS)
	case defs.SYS_CLONE:
		ret = sys_clone(args[0], args[1], args[2], args[3], args[4])
	case defs.SYS_EXECVE:
		ret = sys_execve(args[0], args[1], args[2])
	case defs.SYS_MMAP:
		ret = sys_mmap(args[0], args[1], uint32(args[2]), uint32(args[3]),
			int(int64(args[4])), args[5])
	case defs.SYS_WAIT4:
		ret = sys_wait4(int(int64(args[0])), args[1], args[2])
	case defs.SYS_WAITTID:
		ret = sys_waittid(int(args[0]))
	default:
		fmt.Printf("pid %v: unsupported syscall %v; killed\n",
			proc.Curproc().Pid, num)
		proc.Exit(-10)
	}
	if sysc_debug {
		fmt.Printf("pid %v: %s -> %v\n", proc.Curproc().Pid, defs.Sysname(num), ret)
	}
	return ret
}
