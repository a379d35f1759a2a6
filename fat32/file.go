package fat32

import (
	"encoding/binary"
	"fmt"
)

// Entry_t is an open handle on one directory member (or the root). File
// handles carry their own cursor; two opens of the same file do not share
// position. Metadata updates (size, first cluster) are written back to the
// member's directory slot as they happen.
type Entry_t struct {
	fs        *Fs_t
	name      string
	dir       bool
	firstClus uint32 // 0 until the first cluster is allocated
	size      uint32
	entOff    int64 // device offset of the short slot; -1 for the root
	lfnOffs   []int64
	pos       uint32
}

// Isdir reports whether the entry is a directory.
func (e *Entry_t) Isdir() bool {
	return e.dir
}

// Isfile reports whether the entry is a regular file.
func (e *Entry_t) Isfile() bool {
	return !e.dir
}

// Name returns the entry's name.
func (e *Entry_t) Name() string {
	return e.name
}

// Size returns the file size; directories report 0.
func (e *Entry_t) Size() uint64 {
	return uint64(e.size)
}

func (e *Entry_t) mkentry(fe *foundent) *Entry_t {
	return &Entry_t{
		fs:        e.fs,
		name:      fe.name,
		dir:       fe.short.attr()&attrDir != 0,
		firstClus: fe.short.firstclus(),
		size:      fe.short.size(),
		entOff:    fe.short.off,
		lfnOffs:   fe.lfnOffs,
	}
}

// Ls lists the names in a directory.
func (e *Entry_t) Ls() ([]string, error) {
	if !e.dir {
		return nil, fmt.Errorf("not a directory")
	}
	e.fs.Lock()
	defer e.fs.Unlock()
	ms, err := e.fs.members(e.firstClus)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range ms {
		if m.name == "." || m.name == ".." {
			continue
		}
		names = append(names, m.name)
	}
	return names, nil
}

// Find looks name up in a directory. A nil entry with nil error means the
// name does not exist.
func (e *Entry_t) Find(name string) (*Entry_t, error) {
	if !e.dir {
		return nil, fmt.Errorf("not a directory")
	}
	e.fs.Lock()
	defer e.fs.Unlock()
	fe, err := e.fs.lookup(e, name)
	if err != nil || fe == nil {
		return nil, err
	}
	return e.mkentry(fe), nil
}

// Createfile adds a regular file to a directory, or opens the existing
// member of that name, FAT semantics.
func (e *Entry_t) Createfile(name string) (*Entry_t, error) {
	return e.create(name, false)
}

// Createdir adds a subdirectory, or opens the existing member.
func (e *Entry_t) Createdir(name string) (*Entry_t, error) {
	return e.create(name, true)
}

func (e *Entry_t) create(name string, dir bool) (*Entry_t, error) {
	if !e.dir {
		return nil, fmt.Errorf("not a directory")
	}
	e.fs.Lock()
	defer e.fs.Unlock()
	fe, err := e.fs.lookup(e, name)
	if err != nil {
		return nil, err
	}
	if fe != nil {
		return e.mkentry(fe), nil
	}
	attr := uint8(attrArchive)
	firstClus := uint32(0)
	if dir {
		attr = attrDir
		firstClus, err = e.fs.allocclus()
		if err != nil {
			return nil, err
		}
		if err := e.fs.dotents(firstClus, e.firstClus); err != nil {
			return nil, err
		}
	}
	if _, err := e.fs.addent(e, name, attr, firstClus); err != nil {
		return nil, err
	}
	fe, err = e.fs.lookup(e, name)
	if err != nil {
		return nil, err
	}
	if fe == nil {
		return nil, fmt.Errorf("created entry vanished")
	}
	return e.mkentry(fe), nil
}

// Remove deletes the named member of a directory. Non-empty directories
// refuse.
func (e *Entry_t) Remove(name string) error {
	if !e.dir {
		return fmt.Errorf("not a directory")
	}
	e.fs.Lock()
	defer e.fs.Unlock()
	fe, err := e.fs.lookup(e, name)
	if err != nil {
		return err
	}
	if fe == nil {
		return fmt.Errorf("no such entry")
	}
	if fe.short.attr()&attrDir != 0 {
		ms, err := e.fs.members(fe.short.firstclus())
		if err != nil {
			return err
		}
		for _, m := range ms {
			if m.name != "." && m.name != ".." {
				return fmt.Errorf("directory not empty")
			}
		}
	}
	if c := fe.short.firstclus(); c != 0 {
		if err := e.fs.freechain(c); err != nil {
			return err
		}
	}
	mark := []uint8{slotFree}
	for _, off := range fe.lfnOffs {
		if err := e.fs.writeat(off, mark); err != nil {
			return err
		}
	}
	return e.fs.writeat(fe.short.off, mark)
}

// flushent rewrites the size and first-cluster fields of the entry's
// directory slot.
func (e *Entry_t) flushent() error {
	if e.entOff == -1 {
		return nil
	}
	var b [8]uint8
	binary.LittleEndian.PutUint16(b[0:], uint16(e.firstClus>>16))
	if err := e.fs.writeat(e.entOff+20, b[:2]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b[0:], uint16(e.firstClus))
	if err := e.fs.writeat(e.entOff+26, b[:2]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[0:], e.size)
	return e.fs.writeat(e.entOff+28, b[:4])
}

// Read copies from the cursor into buf and advances. Returns 0 at EOF.
func (e *Entry_t) Read(buf []uint8) (int, error) {
	if e.dir {
		return 0, fmt.Errorf("is a directory")
	}
	e.fs.Lock()
	defer e.fs.Unlock()
	if e.pos >= e.size || e.firstClus == 0 {
		return 0, nil
	}
	left := e.size - e.pos
	if uint32(len(buf)) > left {
		buf = buf[:left]
	}
	cb := uint32(e.fs.clusBytes())
	tot := 0
	for len(buf) != 0 {
		c, err := e.fs.clusat(e.firstClus, int(e.pos/cb), false)
		if err != nil {
			return tot, err
		}
		off := e.pos % cb
		n := cb - off
		if uint32(len(buf)) < n {
			n = uint32(len(buf))
		}
		if err := e.fs.readat(e.fs.clusPos(c)+int64(off), buf[:n]); err != nil {
			return tot, err
		}
		buf = buf[n:]
		e.pos += n
		tot += int(n)
	}
	return tot, nil
}

// Readall returns the whole file, ignoring and resetting the cursor.
func (e *Entry_t) Readall() ([]uint8, error) {
	if e.dir {
		return nil, fmt.Errorf("is a directory")
	}
	e.fs.Lock()
	sz := e.size
	e.fs.Unlock()
	e.pos = 0
	buf := make([]uint8, sz)
	n, err := e.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Write stores buf at the cursor, growing the file (and its chain) as
// needed, and advances.
func (e *Entry_t) Write(buf []uint8) (int, error) {
	if e.dir {
		return 0, fmt.Errorf("is a directory")
	}
	e.fs.Lock()
	defer e.fs.Unlock()
	if len(buf) == 0 {
		return 0, nil
	}
	if e.firstClus == 0 {
		c, err := e.fs.allocclus()
		if err != nil {
			return 0, err
		}
		e.firstClus = c
	}
	cb := uint32(e.fs.clusBytes())
	tot := 0
	for len(buf) != 0 {
		c, err := e.fs.clusat(e.firstClus, int(e.pos/cb), true)
		if err != nil {
			return tot, err
		}
		off := e.pos % cb
		n := cb - off
		if uint32(len(buf)) < n {
			n = uint32(len(buf))
		}
		if err := e.fs.writeat(e.fs.clusPos(c)+int64(off), buf[:n]); err != nil {
			return tot, err
		}
		buf = buf[n:]
		e.pos += n
		tot += int(n)
	}
	if e.pos > e.size {
		e.size = e.pos
	}
	if err := e.flushent(); err != nil {
		return tot, err
	}
	return tot, nil
}

// Clear truncates the file to zero length and rewinds the cursor.
func (e *Entry_t) Clear() error {
	if e.dir {
		return fmt.Errorf("is a directory")
	}
	e.fs.Lock()
	defer e.fs.Unlock()
	if e.firstClus != 0 {
		if err := e.fs.freechain(e.firstClus); err != nil {
			return err
		}
	}
	e.firstClus = 0
	e.size = 0
	e.pos = 0
	return e.flushent()
}
