package proc

import (
	"container/heap"
	"sync"

	"github.com/cxz888/Neuclear/machine"
)

// The sleep-timer wheel: a min-heap of (deadline, thread). The timer tick
// moves every expired entry back to the ready queue.

type timer_t struct {
	expirems uint64
	thread   *Thread_t
}

type timerheap_t []timer_t

func (th timerheap_t) Len() int {
	return len(th)
}

func (th timerheap_t) Less(i, j int) bool {
	return th[i].expirems < th[j].expirems
}

func (th timerheap_t) Swap(i, j int) {
	th[i], th[j] = th[j], th[i]
}

func (th *timerheap_t) Push(x any) {
	*th = append(*th, x.(timer_t))
}

func (th *timerheap_t) Pop() any {
	old := *th
	n := len(old)
	x := old[n-1]
	*th = old[:n-1]
	return x
}

var timers = struct {
	sync.Mutex
	h timerheap_t
}{}

// Time_ms returns milliseconds since boot, derived from the CPU timer.
func Time_ms() uint64 {
	return machine.Rdtime() / (machine.Clockfreq / 1000)
}

// Addtimer schedules thread to wake at expirems.
func Addtimer(expirems uint64, t *Thread_t) {
	timers.Lock()
	heap.Push(&timers.h, timer_t{expirems: expirems, thread: t})
	timers.Unlock()
}

// Checktimers wakes every thread whose deadline has passed, skipping
// threads whose process has been reaped out from under them.
func Checktimers() {
	now := Time_ms()
	timers.Lock()
	defer timers.Unlock()
	for len(timers.h) != 0 && timers.h[0].expirems <= now {
		tm := heap.Pop(&timers.h).(timer_t)
		if tm.thread.Doomed() {
			continue
		}
		Addrun(tm.thread)
	}
}

// Timerpending reports the number of armed timers.
func Timerpending() int {
	timers.Lock()
	defer timers.Unlock()
	return len(timers.h)
}

// Sleep blocks the current thread for at least ms milliseconds; wakeup
// happens on the first tick past the deadline.
func Sleep(ms uint64) {
	t := Current()
	Addtimer(Time_ms()+ms, t)
	Block()
}
