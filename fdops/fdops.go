// Package fdops declares the interface every open-file object implements.
// It is its own package so that fs and proc can both name the type without
// importing each other.
package fdops

import (
	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/stat"
	"github.com/cxz888/Neuclear/ustr"
)

// Fdops_i is the closed set of operations on an open file: disk files,
// pipe ends, and the console all implement it.
type Fdops_i interface {
	Readable() bool
	Writable() bool
	// Read and Write move bytes through kernel buffers; syscalls stage
	// the user side with the address-space copy helpers.
	Read(dst []uint8) (int, defs.Err_t)
	Write(src []uint8) (int, defs.Err_t)
	Fstat(st *stat.Stat_t) defs.Err_t
	// Reopen is called when another descriptor starts sharing this
	// object (dup, fork); Close when one stops.
	Reopen() defs.Err_t
	Close() defs.Err_t
	Isdir() bool
	Pathname() (ustr.Ustr, bool)
	// close-on-exec lives on the file object and is shared by dup'd
	// descriptors; execve consults it.
	Setcloexec(bool)
	Cloexec() bool
}
