package proc

import "sync"

// ptable_t maps pids to live processes. It is a bucket-locked hash table;
// lookups take only the bucket lock, so kill does not contend with fork.
type ptable_t struct {
	buckets []ptbucket_t
}

type ptbucket_t struct {
	sync.RWMutex
	first *ptelem_t
}

type ptelem_t struct {
	pid  int
	proc *Proc_t
	next *ptelem_t
}

const ptbuckets = 64

func mkptable() *ptable_t {
	return &ptable_t{buckets: make([]ptbucket_t, ptbuckets)}
}

func (pt *ptable_t) bucket(pid int) *ptbucket_t {
	h := uint(pid) * 1103515245
	return &pt.buckets[h%ptbuckets]
}

// Get returns the process with the given pid.
func (pt *ptable_t) Get(pid int) (*Proc_t, bool) {
	b := pt.bucket(pid)
	b.RLock()
	defer b.RUnlock()
	for e := b.first; e != nil; e = e.next {
		if e.pid == pid {
			return e.proc, true
		}
	}
	return nil, false
}

// Set registers a process.
func (pt *ptable_t) Set(pid int, p *Proc_t) {
	b := pt.bucket(pid)
	b.Lock()
	defer b.Unlock()
	for e := b.first; e != nil; e = e.next {
		if e.pid == pid {
			panic("pid already registered")
		}
	}
	b.first = &ptelem_t{pid: pid, proc: p, next: b.first}
}

// Del unregisters a process.
func (pt *ptable_t) Del(pid int) {
	b := pt.bucket(pid)
	b.Lock()
	defer b.Unlock()
	pp := &b.first
	for e := b.first; e != nil; e = e.next {
		if e.pid == pid {
			*pp = e.next
			return
		}
		pp = &e.next
	}
	panic("pid not registered")
}

// Ptable is the global pid table.
var Ptable = mkptable()

// Lookup returns the live process with the given pid.
func Lookup(pid int) (*Proc_t, bool) {
	return Ptable.Get(pid)
}
