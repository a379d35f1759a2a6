package fs

import (
	"sync"

	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/machine"
	"github.com/cxz888/Neuclear/proc"
	"github.com/cxz888/Neuclear/stat"
	"github.com/cxz888/Neuclear/ustr"
)

// Stdin_t reads the console. Stdout_t writes it; stderr is another
// Stdout_t.
type Stdin_t struct {
	sync.Mutex
	cloexec bool
}

type Stdout_t struct {
	sync.Mutex
	cloexec bool
}

func MkStdin() *Stdin_t {
	return &Stdin_t{}
}

func MkStdout() *Stdout_t {
	return &Stdout_t{}
}

func (s *Stdin_t) Readable() bool {
	return true
}

func (s *Stdin_t) Writable() bool {
	return false
}

// Read blocks until the console has at least one byte, then takes what is
// immediately available.
func (s *Stdin_t) Read(dst []uint8) (int, defs.Err_t) {
	if len(dst) == 0 {
		return 0, 0
	}
	var c int
	for {
		c = machine.Consread()
		if c != 0 {
			break
		}
		proc.Suspend()
	}
	n := 0
	for {
		dst[n] = uint8(c)
		n++
		if n == len(dst) {
			break
		}
		c = machine.Consread()
		if c == 0 {
			break
		}
	}
	return n, 0
}

func (s *Stdin_t) Write(src []uint8) (int, defs.Err_t) {
	panic("cannot write to stdin")
}

func constat(st *stat.Stat_t) defs.Err_t {
	st.Wdev(1)
	st.Wino(1)
	st.Nlink = 1
	st.Wmode(stat.S_IFCHR | stat.S_PERMS)
	st.Blksize = BSIZE
	return 0
}

func (s *Stdin_t) Fstat(st *stat.Stat_t) defs.Err_t {
	return constat(st)
}

func (s *Stdin_t) Reopen() defs.Err_t {
	return 0
}

func (s *Stdin_t) Close() defs.Err_t {
	return 0
}

func (s *Stdin_t) Isdir() bool {
	return false
}

func (s *Stdin_t) Pathname() (ustr.Ustr, bool) {
	return nil, false
}

func (s *Stdin_t) Setcloexec(v bool) {
	s.Lock()
	s.cloexec = v
	s.Unlock()
}

func (s *Stdin_t) Cloexec() bool {
	s.Lock()
	defer s.Unlock()
	return s.cloexec
}

func (s *Stdout_t) Readable() bool {
	return false
}

func (s *Stdout_t) Writable() bool {
	return true
}

func (s *Stdout_t) Read(dst []uint8) (int, defs.Err_t) {
	panic("cannot read from stdout")
}

func (s *Stdout_t) Write(src []uint8) (int, defs.Err_t) {
	machine.Conswrite(src)
	return len(src), 0
}

func (s *Stdout_t) Fstat(st *stat.Stat_t) defs.Err_t {
	return constat(st)
}

func (s *Stdout_t) Reopen() defs.Err_t {
	return 0
}

func (s *Stdout_t) Close() defs.Err_t {
	return 0
}

func (s *Stdout_t) Isdir() bool {
	return false
}

func (s *Stdout_t) Pathname() (ustr.Ustr, bool) {
	return nil, false
}

func (s *Stdout_t) Setcloexec(v bool) {
	s.Lock()
	s.cloexec = v
	s.Unlock()
}

func (s *Stdout_t) Cloexec() bool {
	s.Lock()
	defer s.Unlock()
	return s.cloexec
}
