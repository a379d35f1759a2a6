package fs

import (
	"sync"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/fat32"
	"github.com/cxz888/Neuclear/stat"
	"github.com/cxz888/Neuclear/ustr"
)

// Fsfile_t is a disk-backed open file: a FAT32 entry plus the open mode
// and flags the descriptor layer consults. It is shared by dup'd
// descriptors, so its mutable state sits behind a lock.
type Fsfile_t struct {
	path     ustr.Ustr
	readable bool
	writable bool
	sync.Mutex
	ent   *fat32.Entry_t
	flags Flags_t
}

func mkfsfile(path ustr.Ustr, readable, writable bool, flags Flags_t, ent *fat32.Entry_t) *Fsfile_t {
	return &Fsfile_t{path: path, readable: readable, writable: writable,
		flags: flags, ent: ent}
}

func (f *Fsfile_t) Readable() bool {
	return f.readable
}

func (f *Fsfile_t) Writable() bool {
	return f.writable
}

func (f *Fsfile_t) Read(dst []uint8) (int, defs.Err_t) {
	f.Lock()
	defer f.Unlock()
	n, err := f.ent.Read(dst)
	if err != nil {
		return 0, -defs.EISDIR
	}
	return n, 0
}

func (f *Fsfile_t) Write(src []uint8) (int, defs.Err_t) {
	f.Lock()
	defer f.Unlock()
	n, err := f.ent.Write(src)
	if err != nil {
		return 0, -defs.EISDIR
	}
	return n, 0
}

// Readall slurps the whole file; the ELF loader uses it.
func (f *Fsfile_t) Readall() ([]uint8, defs.Err_t) {
	f.Lock()
	defer f.Unlock()
	data, err := f.ent.Readall()
	if err != nil {
		return nil, -defs.EISDIR
	}
	return data, 0
}

// Ls names the children of a directory.
func (f *Fsfile_t) Ls() ([]string, defs.Err_t) {
	f.Lock()
	defer f.Unlock()
	names, err := f.ent.Ls()
	if err != nil {
		return nil, -defs.ENOTDIR
	}
	return names, 0
}

// Remove unlinks a child of a directory.
func (f *Fsfile_t) Remove(name string) defs.Err_t {
	f.Lock()
	defer f.Unlock()
	if !f.ent.Isdir() {
		return -defs.ENOTDIR
	}
	if err := f.ent.Remove(name); err != nil {
		return -defs.ENOENT
	}
	return 0
}

func (f *Fsfile_t) Fstat(st *stat.Stat_t) defs.Err_t {
	f.Lock()
	defer f.Unlock()
	mode := stat.S_IFREG
	if f.ent.Isdir() {
		mode = stat.S_IFDIR
	}
	// FAT32 has no inodes, no links, and no owners
	st.Wdev(1)
	st.Wino(1)
	st.Nlink = 1
	st.Wmode(mode | stat.S_PERMS)
	st.Wsize(f.ent.Size())
	st.Blksize = BSIZE
	st.Blocks = (f.ent.Size() + BSIZE - 1) / BSIZE
	return 0
}

func (f *Fsfile_t) Reopen() defs.Err_t {
	return 0
}

func (f *Fsfile_t) Close() defs.Err_t {
	return 0
}

func (f *Fsfile_t) Isdir() bool {
	f.Lock()
	defer f.Unlock()
	return f.ent.Isdir()
}

func (f *Fsfile_t) Pathname() (ustr.Ustr, bool) {
	return f.path, true
}

func (f *Fsfile_t) Setcloexec(v bool) {
	f.Lock()
	defer f.Unlock()
	if v {
		f.flags |= O_CLOEXEC
	} else {
		f.flags &^= O_CLOEXEC
	}
}

func (f *Fsfile_t) Cloexec() bool {
	f.Lock()
	defer f.Unlock()
	return f.flags&O_CLOEXEC != 0
}
