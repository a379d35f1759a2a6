package kernel

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/fat32"
	"github.com/cxz888/Neuclear/fs"
	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/proc"
	"github.com/cxz888/Neuclear/vm"
)

// mkelf builds a minimal static ELF64 for RISC-V: one PT_LOAD at vaddr
// holding body, entry at vaddr.
func mkelf(vaddr uint64, body []uint8) []uint8 {
	const ehsize = 64
	const phsize = 56
	total := ehsize + phsize + len(body)
	out := make([]uint8, total)
	le := binary.LittleEndian

	copy(out, "\x7fELF")
	out[4] = 2 // ELFCLASS64
	out[5] = 1 // little endian
	out[6] = 1 // EV_CURRENT
	le.PutUint16(out[16:], 2)      // ET_EXEC
	le.PutUint16(out[18:], 243)    // EM_RISCV
	le.PutUint32(out[20:], 1)      // version
	le.PutUint64(out[24:], vaddr)  // entry
	le.PutUint64(out[32:], ehsize) // phoff
	le.PutUint16(out[52:], ehsize)
	le.PutUint16(out[54:], phsize)
	le.PutUint16(out[56:], 1) // phnum

	ph := out[ehsize:]
	le.PutUint32(ph[0:], 1)                  // PT_LOAD
	le.PutUint32(ph[4:], 0x5)                // PF_R|PF_X
	le.PutUint64(ph[8:], 0)                  // offset
	le.PutUint64(ph[16:], vaddr)             // vaddr
	le.PutUint64(ph[24:], vaddr)             // paddr
	le.PutUint64(ph[32:], uint64(total))     // filesz
	le.PutUint64(ph[40:], uint64(total)+256) // memsz: a little bss
	le.PutUint64(ph[48:], 0x1000)            // align

	copy(out[ehsize+phsize:], body)
	return out
}

var kernelonce sync.Once

const testentry = 0x10000

// syscall argument encodings for the sign-extended constants userspace
// passes in full registers.
var atfd = uint64(0) - 100
var anypid = ^uint64(0)

// kernelinit boots the whole stack on a memory disk holding an initproc
// and an echo binary.
func kernelinit(t *testing.T) {
	kernelonce.Do(func() {
		md := fs.MkMemdisk(8192)
		bc := fs.MkBcache(md)
		ds := fs.MkDiskstream(bc)
		if err := fat32.Format(ds, 8192); err != nil {
			panic(err)
		}
		f, err := fat32.Mount(ds)
		if err != nil {
			panic(err)
		}
		root := f.Root()
		image := mkelf(testentry, []uint8("the init program"))
		ent, err := root.Createfile("initproc")
		if err != nil {
			panic(err)
		}
		if _, err := ent.Write(image); err != nil {
			panic(err)
		}
		ent, err = root.Createfile("echo")
		if err != nil {
			panic(err)
		}
		if _, err := ent.Write(mkelf(testentry, []uint8("the echo program"))); err != nil {
			panic(err)
		}
		bc.Syncall()

		Bootall(md, machine.Kernbase+8*1024*1024)
		proc.Setcurrent(proc.Initproc.Mainthread())
	})
	_ = t
}

// uscratch is user memory every test can scribble on: the bottom of the
// main thread's stack, far below the live stack pointer.
func uscratch() vm.Va_t {
	return vm.Va_t(defs.LOWEND - uint64(defs.USTACKSZ))
}

// ustr0 places a NUL-terminated string in user scratch memory and
// returns its address.
func ustr0(t *testing.T, off uint64, s string) vm.Va_t {
	as := proc.Curproc().As
	va := uscratch() + vm.Va_t(off)
	b := append([]uint8(s), 0)
	require.Equal(t, defs.Err_t(0), as.K2user(b, va))
	return va
}

func TestBootLoads(t *testing.T) {
	kernelinit(t)
	p := proc.Initproc
	require.Equal(t, 0, p.Pid)
	mt := p.Mainthread()
	require.EqualValues(t, testentry, mt.Trapctx.Sepc)
	require.True(t, mt.Trapctx.Fromuser())

	// a0 = argc, a1 = argv; argv[0] names the program
	require.EqualValues(t, 1, mt.Trapctx.X[machine.REG_A0])
	argv := vm.Va_t(mt.Trapctx.X[machine.REG_A1])
	ptr, err := p.As.Userreadn(argv, 8)
	require.Equal(t, defs.Err_t(0), err)
	arg0, err := p.As.Userstr(vm.Va_t(ptr), 64)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, "initproc", arg0.String())
	// argv terminator
	ptr, err = p.As.Userreadn(argv+8, 8)
	require.Equal(t, defs.Err_t(0), err)
	require.Zero(t, ptr)
	// argc sits right below argv
	argc, err := p.As.Userreadn(argv-8, 8)
	require.Equal(t, defs.Err_t(0), err)
	require.EqualValues(t, 1, argc)
	// the stack pointer is 8-byte aligned
	require.Zero(t, mt.Trapctx.X[machine.REG_SP]&7)

	// the image bytes landed at their vaddr
	got := make([]uint8, 4)
	p.As.Kread(got, vm.Va_t(testentry))
	require.Equal(t, []uint8("\x7fEL"), got[:3])
	// bss past the file contents reads zero
	image := mkelf(testentry, []uint8("the init program"))
	p.As.Kread(got, vm.Va_t(testentry+uint64(len(image))))
	require.Equal(t, []uint8{0, 0, 0, 0}, got)
}

func TestOpenatRead(t *testing.T) {
	kernelinit(t)
	pathva := ustr0(t, 0, "initproc")
	fdn := Syscall(defs.SYS_OPENAT,
		[6]uint64{atfd, uint64(pathva), 0, 0})
	require.GreaterOrEqual(t, fdn, int64(3))

	bufva := uscratch() + 256
	n := Syscall(defs.SYS_READ, [6]uint64{uint64(fdn), uint64(bufva), 4})
	require.EqualValues(t, 4, n)
	magic := make([]uint8, 4)
	proc.Curproc().As.Kread(magic, bufva)
	require.Equal(t, []uint8("\x7fELF"), magic)

	require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{uint64(fdn)}))
	require.EqualValues(t, -defs.EBADF,
		Syscall(defs.SYS_CLOSE, [6]uint64{uint64(fdn)}))
}

func TestBrkGrow(t *testing.T) {
	kernelinit(t)
	x := Syscall(defs.SYS_BRK, [6]uint64{0})
	require.Greater(t, x, int64(0))
	nb := Syscall(defs.SYS_BRK, [6]uint64{uint64(x) + 8192})
	require.Equal(t, x+8192, nb)

	as := proc.Curproc().As
	require.Equal(t, defs.Err_t(0), as.K2user([]uint8{1}, vm.Va_t(x)))
	require.Equal(t, defs.Err_t(0), as.K2user([]uint8{2}, vm.Va_t(x+8191)))

	// shrinking below the heap base fails and leaves the break alone
	ret := Syscall(defs.SYS_BRK, [6]uint64{uint64(x) - 1})
	require.Equal(t, nb, ret)
	require.Equal(t, nb, Syscall(defs.SYS_BRK, [6]uint64{0}))
}

func TestMmapAnon(t *testing.T) {
	kernelinit(t)
	a := Syscall(defs.SYS_MMAP, [6]uint64{0, 12288,
		PROT_READ | PROT_WRITE, MAP_ANONYMOUS | MAP_PRIVATE,
		uint64(0xffffffffffffffff), 0})
	require.Greater(t, a, int64(0))
	require.GreaterOrEqual(t, uint64(a), defs.MMAPSTART)
	require.Less(t, uint64(a), defs.LOWEND)
	require.Zero(t, a%4096)

	as := proc.Curproc().As
	buf := make([]uint8, 12288)
	require.Equal(t, defs.Err_t(0), as.User2k(buf, vm.Va_t(a)))
	for _, b := range buf {
		require.Zero(t, b)
	}
	require.Equal(t, defs.Err_t(0), as.K2user([]uint8{0x7e}, vm.Va_t(a+5000)))
	one := make([]uint8, 1)
	require.Equal(t, defs.Err_t(0), as.User2k(one, vm.Va_t(a+5000)))
	require.EqualValues(t, 0x7e, one[0])

	// the flag matrix
	bad := Syscall(defs.SYS_MMAP, [6]uint64{0, 4096, PROT_READ,
		MAP_ANONYMOUS | MAP_SHARED, uint64(0xffffffffffffffff), 0})
	require.EqualValues(t, -defs.EPERM, bad)
	bad = Syscall(defs.SYS_MMAP, [6]uint64{1234, 4096, PROT_READ,
		MAP_ANONYMOUS | MAP_PRIVATE, uint64(0xffffffffffffffff), 0})
	require.EqualValues(t, -defs.EINVAL, bad)
}

func TestPipeSyscalls(t *testing.T) {
	kernelinit(t)
	fdva := uscratch() + 512
	require.Zero(t, Syscall(defs.SYS_PIPE2, [6]uint64{uint64(fdva), 0}))
	as := proc.Curproc().As
	rfd, err := as.Userreadn(fdva, 4)
	require.Equal(t, defs.Err_t(0), err)
	wfd, err := as.Userreadn(fdva+4, 4)
	require.Equal(t, defs.Err_t(0), err)

	msgva := ustr0(t, 600, "ABCD")
	n := Syscall(defs.SYS_WRITE, [6]uint64{wfd, uint64(msgva), 4})
	require.EqualValues(t, 4, n)
	require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{wfd}))

	bufva := uscratch() + 700
	n = Syscall(defs.SYS_READ, [6]uint64{rfd, uint64(bufva), 16})
	require.EqualValues(t, 4, n)
	got := make([]uint8, 4)
	as.Kread(got, bufva)
	require.Equal(t, "ABCD", string(got))

	// every writer is gone: EOF
	n = Syscall(defs.SYS_READ, [6]uint64{rfd, uint64(bufva), 16})
	require.Zero(t, n)
	require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{rfd}))
}

func TestForkWait(t *testing.T) {
	kernelinit(t)
	ready := proc.Runqlen()
	pid := Syscall(defs.SYS_CLONE, [6]uint64{0, 0, 0, 0, 0, 0})
	require.Greater(t, pid, int64(0))
	child, ok := proc.Lookup(int(pid))
	require.True(t, ok)
	cm := child.Mainthread()
	// fork returned 0 in the child
	require.Zero(t, cm.Trapctx.X[machine.REG_A0])
	// and the child is ready to run
	require.Equal(t, ready+1, proc.Runqlen())

	// nothing is zombie yet
	require.Zero(t, Syscall(defs.SYS_WAIT4,
		[6]uint64{anypid, 0, defs.WNOHANG}))

	// the child exits as if it ran exit(3)
	proc.Exitthread(cm, 3)
	statusva := uscratch() + 800
	got := Syscall(defs.SYS_WAIT4,
		[6]uint64{anypid, uint64(statusva), 0})
	require.Equal(t, pid, got)
	st, err := proc.Curproc().As.Userreadn(statusva, 4)
	require.Equal(t, defs.Err_t(0), err)
	require.EqualValues(t, 3<<8, st)

	// reaped: the pid is gone and further waits see no children
	_, ok = proc.Lookup(int(pid))
	require.False(t, ok)
	require.EqualValues(t, -defs.ECHILD, Syscall(defs.SYS_WAIT4,
		[6]uint64{anypid, 0, 0}))

}

func TestWait4Errors(t *testing.T) {
	kernelinit(t)
	require.EqualValues(t, -defs.EINVAL,
		Syscall(defs.SYS_WAIT4, [6]uint64{0, 0, 0}))
	require.EqualValues(t, -defs.ECHILD,
		Syscall(defs.SYS_WAIT4, [6]uint64{anypid, 0, 0}))
}

func TestCloexecClosedOnExec(t *testing.T) {
	kernelinit(t)
	p := proc.Curproc()

	keepva := ustr0(t, 0, "initproc")
	keep := Syscall(defs.SYS_OPENAT,
		[6]uint64{atfd, uint64(keepva), 0, 0})
	require.GreaterOrEqual(t, keep, int64(3))
	gone := Syscall(defs.SYS_OPENAT,
		[6]uint64{atfd, uint64(keepva),
			uint64(fs.O_CLOEXEC), 0})
	require.GreaterOrEqual(t, gone, int64(3))

	// exec /echo with argv {"echo", NULL}
	pathva := ustr0(t, 100, "/echo")
	arg0va := ustr0(t, 120, "echo")
	argvva := uscratch() + 160
	require.Equal(t, defs.Err_t(0),
		p.As.Userwriten(argvva, 8, uint64(arg0va)))
	require.Equal(t, defs.Err_t(0), p.As.Userwriten(argvva+8, 8, 0))
	ret := Syscall(defs.SYS_EXECVE,
		[6]uint64{uint64(pathva), uint64(argvva), 0})
	require.EqualValues(t, 1, ret)

	// the image was replaced
	mt := p.Mainthread()
	require.EqualValues(t, testentry, mt.Trapctx.Sepc)
	body := make([]uint8, 16)
	p.As.Kread(body, vm.Va_t(testentry+120))
	require.Equal(t, "the echo program", string(body))

	p.Lock()
	_, err := p.Getfd(int(keep))
	require.Equal(t, defs.Err_t(0), err)
	_, err = p.Getfd(int(gone))
	require.Equal(t, -defs.EBADF, err)
	p.Unlock()
	require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{uint64(keep)}))
}

func TestGetcwdChdir(t *testing.T) {
	kernelinit(t)
	as := proc.Curproc().As
	bufva := uscratch() + 900

	require.EqualValues(t, bufva,
		Syscall(defs.SYS_GETCWD, [6]uint64{uint64(bufva), 64}))
	cwd, err := as.Userstr(bufva, 64)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, "/", cwd.String())

	require.EqualValues(t, -defs.ERANGE,
		Syscall(defs.SYS_GETCWD, [6]uint64{uint64(bufva), 1}))

	dirva := ustr0(t, 950, "/subdir")
	require.Zero(t, Syscall(defs.SYS_MKDIRAT,
		[6]uint64{atfd, uint64(dirva)}))
	require.Zero(t, Syscall(defs.SYS_CHDIR, [6]uint64{uint64(dirva)}))
	require.EqualValues(t, bufva,
		Syscall(defs.SYS_GETCWD, [6]uint64{uint64(bufva), 64}))
	cwd, err = as.Userstr(bufva, 64)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, "/subdir/", cwd.String())

	// a relative path resolves under the new cwd
	relva := ustr0(t, 980, "rel.txt")
	fdn := Syscall(defs.SYS_OPENAT,
		[6]uint64{atfd, uint64(relva),
			uint64(fs.O_CREAT | fs.O_RDWR), 0})
	require.GreaterOrEqual(t, fdn, int64(3))
	require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{uint64(fdn)}))
	absva := ustr0(t, 1000, "/subdir/rel.txt")
	fdn = Syscall(defs.SYS_OPENAT,
		[6]uint64{atfd, uint64(absva), 0, 0})
	require.GreaterOrEqual(t, fdn, int64(3))
	require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{uint64(fdn)}))

	rootva := ustr0(t, 1020, "/")
	require.Zero(t, Syscall(defs.SYS_CHDIR, [6]uint64{uint64(rootva)}))
	nopeva := ustr0(t, 1040, "/nope")
	require.EqualValues(t, -defs.ENOENT,
		Syscall(defs.SYS_CHDIR, [6]uint64{uint64(nopeva)}))
}

func TestDupFcntl(t *testing.T) {
	kernelinit(t)
	d := Syscall(defs.SYS_DUP, [6]uint64{1})
	require.GreaterOrEqual(t, d, int64(3))
	d3 := Syscall(defs.SYS_DUP3, [6]uint64{1, 17})
	require.EqualValues(t, 17, d3)

	fcl := Syscall(defs.SYS_FCNTL64,
		[6]uint64{uint64(d), defs.F_DUPFD_CLOEXEC, 20})
	require.GreaterOrEqual(t, fcl, int64(20))
	require.EqualValues(t, 1, Syscall(defs.SYS_FCNTL64,
		[6]uint64{uint64(fcl), defs.F_GETFD, 0}))
	require.Zero(t, Syscall(defs.SYS_FCNTL64,
		[6]uint64{uint64(fcl), defs.F_SETFD, 0}))
	require.Zero(t, Syscall(defs.SYS_FCNTL64,
		[6]uint64{uint64(fcl), defs.F_GETFD, 0}))
	require.EqualValues(t, -defs.EINVAL, Syscall(defs.SYS_FCNTL64,
		[6]uint64{uint64(d), 99, 0}))
	// a huge dup floor must fail cleanly, not wrap negative
	require.EqualValues(t, -defs.EINVAL, Syscall(defs.SYS_FCNTL64,
		[6]uint64{uint64(d), defs.F_DUPFD, 1 << 63}))
	require.EqualValues(t, -defs.EINVAL, Syscall(defs.SYS_FCNTL64,
		[6]uint64{uint64(d), defs.F_DUPFD, defs.NOFILE}))

	for _, f := range []int64{d, d3, fcl} {
		require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{uint64(f)}))
	}
}

func TestFstat(t *testing.T) {
	kernelinit(t)
	pathva := ustr0(t, 0, "/initproc")
	stva := uscratch() + 1100
	require.Zero(t, Syscall(defs.SYS_FSTATAT,
		[6]uint64{atfd, uint64(pathva),
			uint64(stva), 0}))
	as := proc.Curproc().As
	mode, err := as.Userreadn(stva+16, 4)
	require.Equal(t, defs.Err_t(0), err)
	require.NotZero(t, uint32(mode)&0x8000)
	size, err := as.Userreadn(stva+48, 8)
	require.Equal(t, defs.Err_t(0), err)
	image := mkelf(testentry, []uint8("the init program"))
	require.EqualValues(t, len(image), size)
}

func TestSignalSyscalls(t *testing.T) {
	kernelinit(t)
	as := proc.Curproc().As
	actva := uscratch() + 1200
	oldva := uscratch() + 1300
	// install a handler for SIGTERM and read it back
	require.Equal(t, defs.Err_t(0), as.Userwriten(actva, 8, 0xdeadbeef))
	require.Equal(t, defs.Err_t(0), as.Userwriten(actva+8, 8, 0))
	require.Equal(t, defs.Err_t(0), as.Userwriten(actva+16, 8, 0))
	require.Equal(t, defs.Err_t(0), as.Userwriten(actva+24, 8, 0))
	require.Zero(t, Syscall(defs.SYS_SIGACTION,
		[6]uint64{15, uint64(actva), 0}))
	require.Zero(t, Syscall(defs.SYS_SIGACTION,
		[6]uint64{15, 0, uint64(oldva)}))
	h, err := as.Userreadn(oldva, 8)
	require.Equal(t, defs.Err_t(0), err)
	require.EqualValues(t, 0xdeadbeef, h)

	// SIGKILL and SIGSTOP are off limits
	require.EqualValues(t, -defs.EINVAL, Syscall(defs.SYS_SIGACTION,
		[6]uint64{9, uint64(actva), 0}))
	require.EqualValues(t, -defs.EINVAL, Syscall(defs.SYS_SIGACTION,
		[6]uint64{19, uint64(actva), 0}))

	// block a signal, read the mask back
	setva := uscratch() + 1400
	outva := uscratch() + 1500
	require.Equal(t, defs.Err_t(0), as.Userwriten(setva, 8, 1<<14))
	require.Zero(t, Syscall(defs.SYS_SIGPROCMASK,
		[6]uint64{0, uint64(setva), 0, 8}))
	require.Zero(t, Syscall(defs.SYS_SIGPROCMASK,
		[6]uint64{0, 0, uint64(outva), 8}))
	m, err := as.Userreadn(outva, 8)
	require.Equal(t, defs.Err_t(0), err)
	require.EqualValues(t, 1<<14, m)
	// bad sigsetsize
	require.EqualValues(t, -defs.EINVAL, Syscall(defs.SYS_SIGPROCMASK,
		[6]uint64{0, uint64(setva), 0, 4}))

	// kill marks a signal pending on the target
	require.Zero(t, Syscall(defs.SYS_KILL, [6]uint64{0, 15}))
	require.True(t,
		proc.Initproc.Mainthread().Sigrecv.Pending.Has(15))
}

func TestMiscSyscalls(t *testing.T) {
	kernelinit(t)
	as := proc.Curproc().As
	require.Zero(t, Syscall(defs.SYS_GETPID, [6]uint64{}))
	require.Zero(t, Syscall(defs.SYS_GETPPID, [6]uint64{}))
	require.Zero(t, Syscall(defs.SYS_GETUID, [6]uint64{}))
	require.EqualValues(t, 0, Syscall(defs.SYS_GETTID, [6]uint64{}))

	tsva := uscratch() + 1600
	require.Zero(t, Syscall(defs.SYS_CLOCK_GETTIME,
		[6]uint64{0, uint64(tsva)}))
	nsec, err := as.Userreadn(tsva+8, 8)
	require.Equal(t, defs.Err_t(0), err)
	require.Less(t, nsec, uint64(1_000_000_000))
	require.EqualValues(t, -defs.EINVAL, Syscall(defs.SYS_CLOCK_GETTIME,
		[6]uint64{5, uint64(tsva)}))

	unameva := uscratch() + 1700
	require.Zero(t, Syscall(defs.SYS_UNAME, [6]uint64{uint64(unameva)}))
	sysname, err := as.Userstr(unameva, 65)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, "Neuclear", sysname.String())

	tidva := uscratch() + 1800
	ret := Syscall(defs.SYS_SET_TID_ADDRESS, [6]uint64{uint64(tidva)})
	require.Zero(t, ret)
	require.EqualValues(t, uint64(tidva), proc.Current().Clearchildtid)

	require.EqualValues(t, -defs.ENOSYS,
		Syscall(defs.SYS_MUNMAP, [6]uint64{0, 4096}))
	require.EqualValues(t, -defs.EINVAL,
		Syscall(defs.SYS_WAITTID, [6]uint64{0}))
	require.EqualValues(t, -defs.ESRCH,
		Syscall(defs.SYS_WAITTID, [6]uint64{7}))

	// a bad user pointer is EFAULT, not a crash
	require.EqualValues(t, -defs.EFAULT,
		Syscall(defs.SYS_READ, [6]uint64{0, 0x1234, 8}))
}

func TestReadvWritev(t *testing.T) {
	kernelinit(t)
	as := proc.Curproc().As
	pathva := ustr0(t, 0, "/iov.txt")
	fdn := Syscall(defs.SYS_OPENAT,
		[6]uint64{atfd, uint64(pathva),
			uint64(fs.O_CREAT | fs.O_RDWR), 0})
	require.GreaterOrEqual(t, fdn, int64(3))

	// two buffers, "hello " and "world"
	b1 := ustr0(t, 100, "hello ")
	b2 := ustr0(t, 120, "world")
	iovva := uscratch() + 200
	wr := func(off, v uint64) {
		require.Equal(t, defs.Err_t(0), as.Userwriten(vm.Va_t(uint64(iovva)+off), 8, v))
	}
	wr(0, uint64(b1))
	wr(8, 6)
	wr(16, uint64(b2))
	wr(24, 5)
	n := Syscall(defs.SYS_WRITEV, [6]uint64{uint64(fdn), uint64(iovva), 2})
	require.EqualValues(t, 11, n)
	require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{uint64(fdn)}))

	fdn = Syscall(defs.SYS_OPENAT,
		[6]uint64{atfd, uint64(pathva), 0, 0})
	require.GreaterOrEqual(t, fdn, int64(3))
	outva := uscratch() + 300
	wr2 := func(off, v uint64) {
		require.Equal(t, defs.Err_t(0), as.Userwriten(vm.Va_t(uint64(iovva)+off), 8, v))
	}
	wr2(0, uint64(outva))
	wr2(8, 4)
	wr2(16, uint64(outva)+4)
	wr2(24, 7)
	n = Syscall(defs.SYS_READV, [6]uint64{uint64(fdn), uint64(iovva), 2})
	require.EqualValues(t, 11, n)
	got, err := as.Userstr(outva, 32)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, "hello world", got.String())
	require.Zero(t, Syscall(defs.SYS_CLOSE, [6]uint64{uint64(fdn)}))
}
