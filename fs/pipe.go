package fs

import (
	"sync"

	"github.com/cxz888/Neuclear/circbuf"
	"github.com/cxz888/Neuclear/defs"
	"github.com/cxz888/Neuclear/proc"
	"github.com/cxz888/Neuclear/stat"
	"github.com/cxz888/Neuclear/ustr"
)

// PIPESZ is the pipe ring capacity.
const PIPESZ = 32

// pipebuf_t is the shared heart of a pipe. The end counts stand in for
// liveness: a reader learns EOF from writers hitting zero. Blocking is
// cooperative polling; a blocked end yields and retries.
type pipebuf_t struct {
	sync.Mutex
	cb      *circbuf.Circbuf_t
	readers int
	writers int
}

// Pipe_t is one end of a pipe.
type Pipe_t struct {
	readable bool
	writable bool
	buf      *pipebuf_t
	sync.Mutex
	cloexec bool
}

// MkPipe returns the read end and the write end of a fresh pipe.
func MkPipe() (*Pipe_t, *Pipe_t) {
	pb := &pipebuf_t{cb: circbuf.MkCircbuf(PIPESZ), readers: 1, writers: 1}
	r := &Pipe_t{readable: true, buf: pb}
	w := &Pipe_t{writable: true, buf: pb}
	return r, w
}

func (p *Pipe_t) Readable() bool {
	return p.readable
}

func (p *Pipe_t) Writable() bool {
	return p.writable
}

// Read blocks until bytes are available or every write end is gone, then
// returns what it drained -- zero bytes meaning EOF.
func (p *Pipe_t) Read(dst []uint8) (int, defs.Err_t) {
	if !p.readable {
		return 0, -defs.EBADF
	}
	for {
		pb := p.buf
		pb.Lock()
		n := pb.cb.Copyout(dst)
		if n > 0 {
			pb.Unlock()
			return n, 0
		}
		if pb.writers == 0 {
			pb.Unlock()
			return 0, 0
		}
		pb.Unlock()
		proc.Suspend()
	}
}

// Write blocks until the ring has room, then stores what fits without
// blocking again and returns that count.
func (p *Pipe_t) Write(src []uint8) (int, defs.Err_t) {
	if !p.writable {
		return 0, -defs.EBADF
	}
	if len(src) == 0 {
		return 0, 0
	}
	for {
		pb := p.buf
		pb.Lock()
		n := pb.cb.Copyin(src)
		if n > 0 {
			pb.Unlock()
			return n, 0
		}
		pb.Unlock()
		proc.Suspend()
	}
}

func (p *Pipe_t) Fstat(st *stat.Stat_t) defs.Err_t {
	st.Wmode(stat.S_IFIFO | stat.S_PERMS)
	st.Wsize(PIPESZ)
	st.Blksize = BSIZE
	return 0
}

// Reopen records another descriptor sharing this end.
func (p *Pipe_t) Reopen() defs.Err_t {
	pb := p.buf
	pb.Lock()
	if p.readable {
		pb.readers++
	}
	if p.writable {
		pb.writers++
	}
	pb.Unlock()
	return 0
}

func (p *Pipe_t) Close() defs.Err_t {
	pb := p.buf
	pb.Lock()
	if p.readable {
		pb.readers--
	}
	if p.writable {
		pb.writers--
	}
	if pb.readers < 0 || pb.writers < 0 {
		panic("pipe end count")
	}
	pb.Unlock()
	return 0
}

func (p *Pipe_t) Isdir() bool {
	return false
}

func (p *Pipe_t) Pathname() (ustr.Ustr, bool) {
	return nil, false
}

func (p *Pipe_t) Setcloexec(v bool) {
	p.Lock()
	p.cloexec = v
	p.Unlock()
}

func (p *Pipe_t) Cloexec() bool {
	p.Lock()
	defer p.Unlock()
	return p.cloexec
}
