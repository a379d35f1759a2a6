package kernel

import (
	"fmt"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/fd"
	"github.com/cxz888/Neuclear/fs"
	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/mem"
	"github.com/cxz888/Neuclear/proc"
	"github.com/cxz888/Neuclear/ustr"
	"github.com/cxz888/Neuclear/vm"
)

// mkdefaultfds installs fds 0, 1, 2 as the console.
func mkdefaultfds(p *proc.Proc_t) {
	p.Fdtable = []*fd.Fd_t{
		{Fops: fs.MkStdin()},
		{Fops: fs.MkStdout()},
		{Fops: fs.MkStdout()},
	}
}

// Start builds a process from an ELF on the filesystem. The new main
// thread is ready but not yet enqueued.
func Start(path ustr.Ustr, args []ustr.Ustr) (*proc.Proc_t, defs.Err_t) {
	p := proc.Mkproc()
	mkdefaultfds(p)
	p.Lock()
	err := Load(p, path, args)
	p.Unlock()
	if err != 0 {
		return nil, err
	}
	return p, 0
}

// Bootall brings the kernel up over the given disk: physical memory, the
// kernel address space, the root filesystem, and the init process. It
// returns ready to enter proc.Run_tasks.
func Bootall(disk fs.Disk_i, ekernel uint64) {
	machine.Init(ekernel)
	mem.Phys_init(mem.Pa_t(ekernel), mem.Pa_t(machine.Memoryend))
	vm.Kernelas = vm.Mkkernel(mem.Pa_t(ekernel))
	vm.Kernelas.Activate()
	if err := fs.Mountroot(disk); err != 0 {
		panic("cannot mount root filesystem")
	}
	initpath := ustr.Ustr("/initproc")
	p, err := Start(initpath, []ustr.Ustr{ustr.Ustr("initproc")})
	if err != 0 {
		panic(fmt.Sprintf("no init process: %v", err))
	}
	if p.Pid != 0 {
		panic("init must be pid 0")
	}
	proc.Initproc = p
	proc.Addrun(p.Mainthread())
	machine.Nexttrigger()
}

// Listapps prints the root directory, the boot-time nicety the shell
// users expect.
func Listapps() {
	f, err := fs.Open_inode(ustr.MkUstrRoot(), fs.O_RDONLY)
	if err != 0 {
		panic("no root directory")
	}
	names, err := f.Ls()
	if err != 0 {
		panic("root not a directory")
	}
	fmt.Printf("/**** APPS ****\n")
	for _, n := range names {
		fmt.Printf("%s\n", n)
	}
	fmt.Printf("**************/\n")
}
