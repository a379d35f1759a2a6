package fs

import (
	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/fat32"
	"github.com/cxz888/Neuclear/fdops"
	"github.com/cxz888/Neuclear/ustr"
)

// Open flags. The low two bits are the access mode: 0 read, 1 write,
// 2 read-write, 3 invalid.
type Flags_t uint32

const (
	O_RDONLY    Flags_t = 0
	O_WRONLY    Flags_t = 1 << 0
	O_RDWR      Flags_t = 1 << 1
	O_CREAT     Flags_t = 1 << 6
	O_EXCL      Flags_t = 1 << 7
	O_NOCTTY    Flags_t = 1 << 8
	O_TRUNC     Flags_t = 1 << 9
	O_APPEND    Flags_t = 1 << 10
	O_DSYNC     Flags_t = 1 << 12
	O_ASYNC     Flags_t = 1 << 13
	O_DIRECT    Flags_t = 1 << 14
	O_LARGEFILE Flags_t = 1 << 15
	// bit 21, not musl's bit 16; the libcs the user binaries link against
	// put it there.
	O_DIRECTORY Flags_t = 1 << 21
	O_CLOEXEC   Flags_t = 1 << 19
)

const knownflags = O_WRONLY | O_RDWR | O_CREAT | O_EXCL | O_NOCTTY |
	O_TRUNC | O_APPEND | O_DSYNC | O_ASYNC | O_DIRECT | O_LARGEFILE |
	O_DIRECTORY | O_CLOEXEC

// Accmode decodes the low access-mode bits into (readable, writable).
func (fl Flags_t) Accmode() (bool, bool, defs.Err_t) {
	switch fl & 3 {
	case O_RDONLY:
		return true, false, 0
	case O_WRONLY:
		return false, true, 0
	case O_RDWR:
		return true, true, 0
	}
	return false, false, -defs.EINVAL
}

// The mounted volume and its plumbing, set up once at boot.
var fsroot *fat32.Fs_t
var thebc *Bcache_t

// Mountroot builds the block cache and disk stream over the device and
// mounts the FAT32 volume on it.
func Mountroot(disk Disk_i) defs.Err_t {
	thebc = MkBcache(disk)
	ds := MkDiskstream(thebc)
	f, err := fat32.Mount(ds)
	if err != nil {
		return -defs.EIO
	}
	fsroot = f
	return 0
}

// Sync_all flushes every dirty cached block to the device.
func Sync_all() {
	if thebc != nil {
		thebc.Syncall()
	}
}

// Bcache returns the root block cache; tests use it to observe residency.
func Bcache() *Bcache_t {
	return thebc
}

// Open_inode walks an absolute, canonical path and returns the open file.
// The flag matrix follows Linux: O_CREAT creates a missing final
// component (a directory when O_DIRECTORY rides along), O_CREAT|O_EXCL
// refuses an existing file, O_DIRECTORY refuses non-directories, O_TRUNC
// with write access truncates. O_APPEND, O_ASYNC, and O_DSYNC are
// rejected outright.
func Open_inode(path ustr.Ustr, flags Flags_t) (*Fsfile_t, defs.Err_t) {
	if fsroot == nil {
		panic("no root filesystem")
	}
	if flags&^(knownflags|3) != 0 {
		return nil, -defs.EINVAL
	}
	if flags&(O_ASYNC|O_APPEND|O_DSYNC) != 0 {
		return nil, -defs.EINVAL
	}
	readable, writable, err := flags.Accmode()
	if err != 0 {
		return nil, err
	}
	cur := fsroot.Root()
	comps := path.Split()
	for i, comp := range comps {
		if !cur.Isdir() {
			return nil, -defs.ENOTDIR
		}
		next, ferr := cur.Find(comp.String())
		if ferr != nil {
			return nil, -defs.EIO
		}
		if next == nil {
			last := i == len(comps)-1
			if !last || flags&O_CREAT == 0 {
				return nil, -defs.ENOENT
			}
			var cerr error
			if flags&O_DIRECTORY != 0 {
				next, cerr = cur.Createdir(comp.String())
			} else {
				next, cerr = cur.Createfile(comp.String())
			}
			if cerr != nil {
				return nil, -defs.EIO
			}
			return mkfsfile(path, readable, writable, flags, next), 0
		}
		cur = next
	}
	// the walk ended on an existing entry
	if flags&(O_CREAT|O_EXCL) == O_CREAT|O_EXCL {
		return nil, -defs.EEXIST
	}
	if flags&O_DIRECTORY != 0 && !cur.Isdir() {
		return nil, -defs.ENOTDIR
	}
	if flags&O_TRUNC != 0 && writable && cur.Isfile() {
		if cur.Clear() != nil {
			return nil, -defs.EIO
		}
	}
	return mkfsfile(path, readable, writable, flags, cur), 0
}

// Open_file resolves special /dev paths before falling back to the disk.
func Open_file(path ustr.Ustr, flags Flags_t) (fdops.Fdops_i, defs.Err_t) {
	if path.Eq(ustr.Ustr("/dev/tty")) {
		return MkStdout(), 0
	}
	if len(path) >= 5 && path[:5].Eq(ustr.Ustr("/dev/")) {
		return nil, -defs.ENOENT
	}
	f, err := Open_inode(path, flags)
	if err != 0 {
		return nil, err
	}
	return f, 0
}
