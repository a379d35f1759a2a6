// Package fd wraps open-file objects into descriptor-table slots.
package fd

import (
	"sync"

	"github.com/cxz888/Neuclear/bpath"
	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/fdops"
	"github.com/cxz888/Neuclear/ustr"
)

// Fd_t represents an open file descriptor.
type Fd_t struct {
	// fops is an interface implemented via a "pointer receiver", thus fops
	// is a reference, not a value
	Fops fdops.Fdops_i
}

// Copyfd duplicates an open file descriptor by reopening it.
func Copyfd(fd *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *fd
	err := nfd.Fops.Reopen()
	if err != 0 {
		return nil, err
	}
	return nfd, 0
}

// Close_panic closes the descriptor and panics on failure.
func Close_panic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("must succeed")
	}
}

// Cwd_t tracks the current working directory for a process. The stored
// path always ends in '/', so joining a relative path is a plain append.
type Cwd_t struct {
	sync.Mutex // to serialize chdirs
	Path ustr.Ustr
}

// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p ustr.Ustr) ustr.Ustr {
	if p.IsAbsolute() {
		return p
	}
	full := make(ustr.Ustr, len(cwd.Path))
	copy(full, cwd.Path)
	return append(full, p...)
}

// Canonicalpath resolves path components relative to cwd.
func (cwd *Cwd_t) Canonicalpath(p ustr.Ustr) ustr.Ustr {
	p1 := cwd.Fullpath(p)
	return bpath.Canonicalize(p1)
}

// Chdir replaces the cwd, restoring the trailing '/' invariant.
func (cwd *Cwd_t) Chdir(p ustr.Ustr) {
	canon := bpath.Canonicalize(p)
	if len(canon) == 0 || canon[len(canon)-1] != '/' {
		canon = append(canon, '/')
	}
	cwd.Path = canon
}

// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd() *Cwd_t {
	c := &Cwd_t{}
	c.Path = ustr.MkUstrRoot()
	return c
}
