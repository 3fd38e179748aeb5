package hal

import "sync/atomic"

// Timer simulates the periodic timer interrupt (IRQ 0) that drives
// preemptive scheduling; production hardware would reprogram the PIT/APIC,
// this kernel instead exposes a tick counter irq.Core advances once per
// simulated interrupt.
type Timer struct {
	ticks int64
}

func MkTimer() *Timer { return &Timer{} }

// Tick advances the timer by one and returns the new tick count.
func (t *Timer) Tick() int64 { return atomic.AddInt64(&t.ticks, 1) }

// Now returns the current tick count without advancing it.
func (t *Timer) Now() int64 { return atomic.LoadInt64(&t.ticks) }
