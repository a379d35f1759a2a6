package defs

// Syscall numbers, following the riscv64 Linux assignment.
const (
	SYS_GETCWD          = 17
	SYS_DUP             = 23
	SYS_DUP3            = 24
	SYS_FCNTL64         = 25
	SYS_IOCTL           = 29
	SYS_MKDIRAT         = 34
	SYS_CHDIR           = 49
	SYS_OPENAT          = 56
	SYS_CLOSE           = 57
	SYS_PIPE2           = 59
	SYS_READ            = 63
	SYS_WRITE           = 64
	SYS_READV           = 65
	SYS_WRITEV          = 66
	SYS_PPOLL           = 73
	SYS_FSTATAT         = 79
	SYS_FSTAT           = 80
	SYS_EXIT            = 93
	SYS_EXIT_GROUP      = 94
	SYS_SET_TID_ADDRESS = 96
	SYS_SLEEP           = 101
	SYS_CLOCK_GETTIME   = 113
	SYS_SCHED_YIELD     = 124
	SYS_KILL            = 129
	SYS_SIGACTION       = 134
	SYS_SIGPROCMASK     = 135
	SYS_TIMES           = 153
	SYS_SETPGID         = 154
	SYS_GETPGID         = 155
	SYS_UNAME           = 160
	SYS_GETTIMEOFDAY    = 169
	SYS_GETPID          = 172
	SYS_GETPPID         = 173
	SYS_GETUID          = 174
	SYS_GETEUID         = 175
	SYS_GETGID          = 176
	SYS_GETEGID         = 177
	SYS_GETTID          = 178
	SYS_BRK             = 214
	SYS_MUNMAP          = 215
	SYS_CLONE           = 220
	SYS_EXECVE          = 221
	SYS_MMAP            = 222
	SYS_WAIT4           = 260
	SYS_WAITTID         = 462
)

var sysnames = map[int]string{
	SYS_GETCWD:          "getcwd",
	SYS_DUP:             "dup",
	SYS_DUP3:            "dup3",
	SYS_FCNTL64:         "fcntl64",
	SYS_IOCTL:           "ioctl",
	SYS_MKDIRAT:         "mkdirat",
	SYS_CHDIR:           "chdir",
	SYS_OPENAT:          "openat",
	SYS_CLOSE:           "close",
	SYS_PIPE2:           "pipe2",
	SYS_READ:            "read",
	SYS_WRITE:           "write",
	SYS_READV:           "readv",
	SYS_WRITEV:          "writev",
	SYS_PPOLL:           "ppoll",
	SYS_FSTATAT:         "fstatat",
	SYS_FSTAT:           "fstat",
	SYS_EXIT:            "exit",
	SYS_EXIT_GROUP:      "exit_group",
	SYS_SET_TID_ADDRESS: "set_tid_address",
	SYS_SLEEP:           "sleep",
	SYS_CLOCK_GETTIME:   "clock_gettime",
	SYS_SCHED_YIELD:     "sched_yield",
	SYS_KILL:            "kill",
	SYS_SIGACTION:       "sigaction",
	SYS_SIGPROCMASK:     "sigprocmask",
	SYS_TIMES:           "times",
	SYS_SETPGID:         "setpgid",
	SYS_GETPGID:         "getpgid",
	SYS_UNAME:           "uname",
	SYS_GETTIMEOFDAY:    "gettimeofday",
	SYS_GETPID:          "getpid",
	SYS_GETPPID:         "getppid",
	SYS_GETUID:          "getuid",
	SYS_GETEUID:         "geteuid",
	SYS_GETGID:          "getgid",
	SYS_GETEGID:         "getegid",
	SYS_GETTID:          "gettid",
	SYS_BRK:             "brk",
	SYS_MUNMAP:          "munmap",
	SYS_CLONE:           "clone",
	SYS_EXECVE:          "execve",
	SYS_MMAP:            "mmap",
	SYS_WAIT4:           "wait4",
	SYS_WAITTID:         "waittid",
}

// Sysname returns the name of a syscall number for log lines.
func Sysname(n int) string {
	if s, ok := sysnames[n]; ok {
		return s
	}
	return "unknown"
}
