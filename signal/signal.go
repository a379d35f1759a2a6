// Package signal keeps per-process handler tables and per-thread
// mask/pending sets. State is maintained through sigaction, sigprocmask,
// and kill; delivery to userspace is not implemented.
package signal

import "github.com/cxz888/Neuclear/defs"

// Signal numbers.
const (
	SIGHUP  = 1
	SIGINT  = 2
	SIGQUIT = 3
	SIGILL  = 4
	SIGABRT = 6
	SIGKILL = 9
	SIGSEGV = 11
	SIGPIPE = 13
	SIGTERM = 15
	SIGCHLD = 17
	SIGSTOP = 19

	NSIG = 64
)

// Sigset_t is a 64-bit signal bitset; bit n-1 stands for signal n.
type Sigset_t uint64

// Mkset returns the set containing just sig.
func Mkset(sig int) Sigset_t {
	return 1 << (sig - 1)
}

// Insert adds the signals of o to the set.
func (ss *Sigset_t) Insert(o Sigset_t) {
	*ss |= o
}

// Remove drops the signals of o from the set.
func (ss *Sigset_t) Remove(o Sigset_t) {
	*ss &^= o
}

// Has reports whether sig is in the set.
func (ss Sigset_t) Has(sig int) bool {
	return ss&Mkset(sig) != 0
}

// Sigaction_t follows the rt_sigaction layout.
type Sigaction_t struct {
	Handler  uint64
	Flags    uint64
	Restorer uint64
	Mask     Sigset_t
}

// Sighands_t is a process's handler table.
type Sighands_t struct {
	acts [NSIG + 1]Sigaction_t
}

// MkSighands returns a table of default actions.
func MkSighands() *Sighands_t {
	return &Sighands_t{}
}

func badsig(sig int) bool {
	return sig < 1 || sig > NSIG
}

// Get returns the recorded action for sig.
func (sh *Sighands_t) Get(sig int) (Sigaction_t, defs.Err_t) {
	if badsig(sig) {
		return Sigaction_t{}, -defs.EINVAL
	}
	return sh.acts[sig], 0
}

// Set records the action for sig. The dispositions of SIGKILL and SIGSTOP
// cannot be changed.
func (sh *Sighands_t) Set(sig int, act Sigaction_t) defs.Err_t {
	if badsig(sig) || sig == SIGKILL || sig == SIGSTOP {
		return -defs.EINVAL
	}
	sh.acts[sig] = act
	return 0
}

// Clear resets every action to the default; exec calls this.
func (sh *Sighands_t) Clear() {
	sh.acts = [NSIG + 1]Sigaction_t{}
}

// Clone copies the table; fork calls this.
func (sh *Sighands_t) Clone() *Sighands_t {
	n := MkSighands()
	n.acts = sh.acts
	return n
}

// Sigrecv_t is a thread's signal mask and pending set.
type Sigrecv_t struct {
	Mask    Sigset_t
	Pending Sigset_t
}

// Clear empties both sets; exec calls this.
func (sr *Sigrecv_t) Clear() {
	sr.Mask = 0
	sr.Pending = 0
}

// Post records sig as pending.
func (sr *Sigrecv_t) Post(sig int) defs.Err_t {
	if badsig(sig) {
		return -defs.EINVAL
	}
	sr.Pending.Insert(Mkset(sig))
	return 0
}
