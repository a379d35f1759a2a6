// Package stat defines the stat structure surfaced by fstat/fstatat,
// following the riscv64 Linux layout.
package stat

import "unsafe"

// File type and permission bits for the mode field.
const (
	S_IFREG  uint32 = 1 << 15
	S_IFDIR  uint32 = 1 << 14
	S_IFCHR  uint32 = 1 << 13
	S_IFIFO  uint32 = 1 << 12
	S_IRWXU  uint32 = 0o700
	S_IRWXG  uint32 = 0o070
	S_IRWXO  uint32 = 0o007
	S_PERMS  uint32 = S_IRWXU | S_IRWXG | S_IRWXO
)

// Timespec_t is the two-word time format inside Stat_t.
type Timespec_t struct {
	Sec  int64
	Nsec int64
}

// Stat_t mirrors the riscv64 struct stat byte for byte; Bytes exposes the
// raw view that read/write paths copy to userspace.
type Stat_t struct {
	Dev     uint64
	Ino     uint64
	Mode    uint32
	Nlink   uint32
	Uid     uint32
	Gid     uint32
	Rdev    uint64
	_pad0   uint64
	Size    uint64
	Blksize uint32
	_pad1   uint32
	Blocks  uint64
	Atime   Timespec_t
	Mtime   Timespec_t
	Ctime   Timespec_t
	_unused [2]uint32
}

// Wmode records the file mode.
func (st *Stat_t) Wmode(v uint32) {
	st.Mode = v
}

// Wsize records the file size.
func (st *Stat_t) Wsize(v uint64) {
	st.Size = v
}

// Wdev stores the device ID.
func (st *Stat_t) Wdev(v uint64) {
	st.Dev = v
}

// Wino stores the inode number.
func (st *Stat_t) Wino(v uint64) {
	st.Ino = v
}

// Bytes exposes the raw bytes of the structure.
func (st *Stat_t) Bytes() []uint8 {
	const sz = unsafe.Sizeof(*st)
	sl := (*[sz]uint8)(unsafe.Pointer(st))
	return sl[:]
}
