// Package defs holds kernel-wide constants: identifiers, errnos, syscall
// numbers, and the memory-layout policy values every subsystem agrees on.
package defs

// Tid_t names a thread within its owning process. The main thread of every
// process is tid 0.
type Tid_t int

const (
	KB = 1024
	MB = 1024 * KB
)

// Memory layout policy. The machine package owns the hardware facts
// (physical RAM window, MMIO windows); these are the kernel's choices
// layered on top.
const (
	// USTACKSZ is the size of each thread's user stack. A guard page sits
	// above every stack so that overflowing thread n faults instead of
	// silently scribbling on thread n+1's stack.
	USTACKSZ = 8 * KB
	// KSTACKSZ is the size of a thread's kernel stack.
	KSTACKSZ = 80 * KB
	// KHEAPSZ is the kernel's dynamic allocation budget.
	KHEAPSZ = 32 * MB

	// MMAPSTART is where the anonymous-mmap hole scan begins (128 GiB).
	MMAPSTART uint64 = 0x20_0000_0000
	// LOWEND is the first address past the user half (256 GiB). User
	// stacks grow down from here, one 8KiB stack plus guard page per tid.
	LOWEND uint64 = 0x40_0000_0000

	// NOFILE bounds the fd table.
	NOFILE = 256
)

// WAIT4 option bits.
const (
	WNOHANG    = 1 << 0
	WUNTRACED  = 1 << 1
	WCONTINUED = 1 << 3
)

// fcntl commands.
const (
	F_DUPFD         = 0
	F_GETFD         = 1
	F_SETFD         = 2
	F_DUPFD_CLOEXEC = 1030
)

// AT_FDCWD directs *at syscalls to resolve relative paths against the
// process's cwd.
const AT_FDCWD = -100

const CLOCK_REALTIME = 0
