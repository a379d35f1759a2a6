package kernel

import (
	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/fd"
	"github.com/cxz888/Neuclear/fs"
	"github.com/cxz888/Neuclear/proc"
	"github.com/cxz888/Neuclear/stat"
	"github.com/cxz888/Neuclear/ustr"
	"github.com/cxz888/Neuclear/vm"
)

func err2ret(err defs.Err_t) int64 {
	return int64(err)
}

// prepare_io fetches a descriptor and checks it against the transfer
// direction.
func prepare_io(fdn int, isread bool) (*fd.Fd_t, defs.Err_t) {
	p := proc.Curproc()
	p.Lock()
	defer p.Unlock()
	f, err := p.Getfd(fdn)
	if err != 0 {
		return nil, err
	}
	if isread && !f.Fops.Readable() || !isread && !f.Fops.Writable() {
		return nil, -defs.EBADF
	}
	if f.Fops.Isdir() {
		return nil, -defs.EISDIR
	}
	return f, 0
}

func sys_read(fdn int, bufva uint64, l int) int64 {
	if l < 0 {
		return err2ret(-defs.EINVAL)
	}
	as := proc.Curproc().As
	if err := as.Userok(vm.Va_t(bufva), l, true); err != 0 {
		return err2ret(err)
	}
	f, err := prepare_io(fdn, true)
	if err != 0 {
		return err2ret(err)
	}
	kbuf := make([]uint8, l)
	n, err := f.Fops.Read(kbuf)
	if err != 0 {
		return err2ret(err)
	}
	if err := as.K2user(kbuf[:n], vm.Va_t(bufva)); err != 0 {
		return err2ret(err)
	}
	return int64(n)
}

func sys_write(fdn int, bufva uint64, l int) int64 {
	if l < 0 {
		return err2ret(-defs.EINVAL)
	}
	as := proc.Curproc().As
	kbuf := make([]uint8, l)
	if err := as.User2k(kbuf, vm.Va_t(bufva)); err != 0 {
		return err2ret(err)
	}
	f, err := prepare_io(fdn, false)
	if err != 0 {
		return err2ret(err)
	}
	n, err := f.Fops.Write(kbuf)
	if err != 0 {
		return err2ret(err)
	}
	return int64(n)
}

// useriovs validates and fetches an iovec array.
func useriovs(iovva uint64, vlen int) ([]vm.Useriov_t, defs.Err_t) {
	if vlen < 0 || vlen > 1024 {
		return nil, -defs.EINVAL
	}
	as := proc.Curproc().As
	iovs := make([]vm.Useriov_t, vlen)
	for i := 0; i < vlen; i++ {
		base, err := as.Userreadn(vm.Va_t(iovva+uint64(i)*16), 8)
		if err != 0 {
			return nil, err
		}
		l, err := as.Userreadn(vm.Va_t(iovva+uint64(i)*16+8), 8)
		if err != 0 {
			return nil, err
		}
		iovs[i] = vm.Useriov_t{Base: vm.Va_t(base), Len: l}
	}
	return iovs, 0
}

// Vectorized I/O stops at the first zero-length transfer.
func sys_readv(fdn int, iovva uint64, vlen int) int64 {
	iovs, err := useriovs(iovva, vlen)
	if err != 0 {
		return err2ret(err)
	}
	tot := int64(0)
	for _, iov := range iovs {
		n := sys_read(fdn, uint64(iov.Base), int(iov.Len))
		if n < 0 {
			return n
		}
		if n == 0 {
			break
		}
		tot += n
	}
	return tot
}

func sys_writev(fdn int, iovva uint64, vlen int) int64 {
	iovs, err := useriovs(iovva, vlen)
	if err != 0 {
		return err2ret(err)
	}
	tot := int64(0)
	for _, iov := range iovs {
		n := sys_write(fdn, uint64(iov.Base), int(iov.Len))
		if n < 0 {
			return n
		}
		if n == 0 {
			break
		}
		tot += n
	}
	return tot
}

// path_with_fd resolves a user path against AT_FDCWD or a directory
// descriptor, returning an absolute canonical path.
func path_with_fd(dirfd int, path ustr.Ustr) (ustr.Ustr, defs.Err_t) {
	p := proc.Curproc()
	if path.IsAbsolute() {
		return p.Cwd.Canonicalpath(path), 0
	}
	if dirfd == defs.AT_FDCWD {
		p.Lock()
		defer p.Unlock()
		return p.Cwd.Canonicalpath(path), 0
	}
	p.Lock()
	defer p.Unlock()
	f, err := p.Getfd(dirfd)
	if err != 0 {
		return nil, err
	}
	if !f.Fops.Isdir() {
		return nil, -defs.ENOTDIR
	}
	base, ok := f.Fops.Pathname()
	if !ok {
		return nil, -defs.ENOTDIR
	}
	full := base.Extend(path)
	return p.Cwd.Canonicalpath(full), 0
}

func sys_openat(dirfd int, pathva uint64, flags uint32, mode uint32) int64 {
	p := proc.Curproc()
	path, err := p.As.Userstr(vm.Va_t(pathva), 4096)
	if err != 0 {
		return err2ret(err)
	}
	full, err := path_with_fd(dirfd, path)
	if err != 0 {
		return err2ret(err)
	}
	fops, err := fs.Open_file(full, fs.Flags_t(flags))
	if err != 0 {
		return err2ret(err)
	}
	if fs.Flags_t(flags)&fs.O_CLOEXEC != 0 {
		fops.Setcloexec(true)
	}
	p.Lock()
	defer p.Unlock()
	fdn, err := p.Allocfd(0)
	if err != 0 {
		fops.Close()
		return err2ret(err)
	}
	p.Fdtable[fdn] = &fd.Fd_t{Fops: fops}
	return int64(fdn)
}

func sys_close(fdn int) int64 {
	p := proc.Curproc()
	p.Lock()
	defer p.Unlock()
	f, err := p.Getfd(fdn)
	if err != 0 {
		return err2ret(err)
	}
	p.Fdtable[fdn] = nil
	return int64(f.Fops.Close())
}

func sys_mkdirat(dirfd int, pathva uint64) int64 {
	p := proc.Curproc()
	path, err := p.As.Userstr(vm.Va_t(pathva), 4096)
	if err != 0 {
		return err2ret(err)
	}
	full, err := path_with_fd(dirfd, path)
	if err != 0 {
		return err2ret(err)
	}
	_, err = fs.Open_inode(full, fs.O_CREAT|fs.O_EXCL|fs.O_DIRECTORY)
	return err2ret(err)
}

func sys_pipe2(fdva uint64, flags uint32) int64 {
	if fs.Flags_t(flags)&^fs.O_CLOEXEC != 0 {
		return err2ret(-defs.EINVAL)
	}
	p := proc.Curproc()
	if err := p.As.Userok(vm.Va_t(fdva), 8, true); err != 0 {
		return err2ret(err)
	}
	r, w := fs.MkPipe()
	if fs.Flags_t(flags)&fs.O_CLOEXEC != 0 {
		r.Setcloexec(true)
		w.Setcloexec(true)
	}
	p.Lock()
	rfd, err := p.Allocfd(0)
	if err != 0 {
		p.Unlock()
		r.Close()
		w.Close()
		return err2ret(err)
	}
	p.Fdtable[rfd] = &fd.Fd_t{Fops: r}
	wfd, err := p.Allocfd(0)
	if err != 0 {
		p.Fdtable[rfd] = nil
		p.Unlock()
		r.Close()
		w.Close()
		return err2ret(err)
	}
	p.Fdtable[wfd] = &fd.Fd_t{Fops: w}
	p.Unlock()
	if err := p.As.Userwriten(vm.Va_t(fdva), 4, uint64(rfd)); err != 0 {
		return err2ret(err)
	}
	if err := p.As.Userwriten(vm.Va_t(fdva+4), 4, uint64(wfd)); err != 0 {
		return err2ret(err)
	}
	return 0
}

func dupfd(p *proc.Proc_t, fdn, min int, cloexec bool) int64 {
	p.Lock()
	defer p.Unlock()
	f, err := p.Getfd(fdn)
	if err != 0 {
		return err2ret(err)
	}
	nf, err := fd.Copyfd(f)
	if err != 0 {
		return err2ret(err)
	}
	if cloexec {
		nf.Fops.Setcloexec(true)
	}
	newfd, err := p.Allocfd(min)
	if err != 0 {
		nf.Fops.Close()
		return err2ret(err)
	}
	p.Fdtable[newfd] = nf
	return int64(newfd)
}

func sys_dup(fdn int) int64 {
	return dupfd(proc.Curproc(), fdn, 0, false)
}

func sys_dup3(oldfd, newfd int) int64 {
	p := proc.Curproc()
	if newfd < 0 || newfd >= defs.NOFILE || oldfd == newfd {
		return err2ret(-defs.EINVAL)
	}
	p.Lock()
	defer p.Unlock()
	f, err := p.Getfd(oldfd)
	if err != 0 {
		return err2ret(err)
	}
	nf, err := fd.Copyfd(f)
	if err != 0 {
		return err2ret(err)
	}
	for len(p.Fdtable) <= newfd {
		p.Fdtable = append(p.Fdtable, nil)
	}
	if p.Fdtable[newfd] != nil {
		p.Fdtable[newfd].Fops.Close()
	}
	p.Fdtable[newfd] = nf
	return int64(newfd)
}

func sys_fcntl64(fdn, cmd int, arg uint64) int64 {
	p := proc.Curproc()
	switch cmd {
	case defs.F_DUPFD, defs.F_DUPFD_CLOEXEC:
		// arg is attacker-controlled; a huge value must not wrap into a
		// negative fd floor
		if arg >= defs.NOFILE {
			return err2ret(-defs.EINVAL)
		}
		return dupfd(p, fdn, int(arg), cmd == defs.F_DUPFD_CLOEXEC)
	case defs.F_GETFD:
		p.Lock()
		defer p.Unlock()
		f, err := p.Getfd(fdn)
		if err != 0 {
			return err2ret(err)
		}
		if f.Fops.Cloexec() {
			return 1
		}
		return 0
	case defs.F_SETFD:
		p.Lock()
		defer p.Unlock()
		f, err := p.Getfd(fdn)
		if err != 0 {
			return err2ret(err)
		}
		f.Fops.Setcloexec(arg&1 != 0)
		return 0
	}
	return err2ret(-defs.EINVAL)
}

// sys_ioctl validates its arguments and otherwise does nothing; no device
// here has controls.
func sys_ioctl(fdn int, cmd, argva uint64) int64 {
	p := proc.Curproc()
	p.Lock()
	_, err := p.Getfd(fdn)
	p.Unlock()
	if err != 0 {
		return err2ret(err)
	}
	if _, ok := p.As.Pt.Transvapa(vm.Va_t(argva)); !ok {
		return err2ret(-defs.EFAULT)
	}
	return 0
}

func sys_getcwd(bufva, size uint64) int64 {
	p := proc.Curproc()
	p.Lock()
	cwd := append(ustr.MkUstr(), p.Cwd.Path...)
	p.Unlock()
	need := uint64(len(cwd)) + 1
	if need > size {
		return err2ret(-defs.ERANGE)
	}
	cwd = append(cwd, 0)
	if err := p.As.K2user(cwd, vm.Va_t(bufva)); err != 0 {
		return err2ret(err)
	}
	return int64(bufva)
}

func sys_chdir(pathva uint64) int64 {
	p := proc.Curproc()
	path, err := p.As.Userstr(vm.Va_t(pathva), 4096)
	if err != 0 {
		return err2ret(err)
	}
	full, err := path_with_fd(defs.AT_FDCWD, path)
	if err != 0 {
		return err2ret(err)
	}
	f, err := fs.Open_inode(full, fs.O_RDONLY|fs.O_DIRECTORY)
	if err != 0 {
		return err2ret(err)
	}
	f.Close()
	p.Lock()
	p.Cwd.Chdir(full)
	p.Unlock()
	return 0
}

func fstatfops(f *fd.Fd_t, stva uint64) int64 {
	var st stat.Stat_t
	if err := f.Fops.Fstat(&st); err != 0 {
		return err2ret(err)
	}
	if err := proc.Curproc().As.K2user(st.Bytes(), vm.Va_t(stva)); err != 0 {
		return err2ret(err)
	}
	return 0
}

func sys_fstat(fdn int, stva uint64) int64 {
	p := proc.Curproc()
	p.Lock()
	f, err := p.Getfd(fdn)
	p.Unlock()
	if err != 0 {
		return err2ret(err)
	}
	return fstatfops(f, stva)
}

func sys_fstatat(dirfd int, pathva, stva, flags uint64) int64 {
	if flags != 0 {
		return err2ret(-defs.EINVAL)
	}
	p := proc.Curproc()
	path, err := p.As.Userstr(vm.Va_t(pathva), 4096)
	if err != 0 {
		return err2ret(err)
	}
	full, err := path_with_fd(dirfd, path)
	if err != 0 {
		return err2ret(err)
	}
	fops, err := fs.Open_file(full, fs.O_RDONLY)
	if err != 0 {
		return err2ret(err)
	}
	defer fops.Close()
	var st stat.Stat_t
	if err := fops.Fstat(&st); err != 0 {
		return err2ret(err)
	}
	if err := p.As.K2user(st.Bytes(), vm.Va_t(stva)); err != 0 {
		return err2ret(err)
	}
	return 0
}
