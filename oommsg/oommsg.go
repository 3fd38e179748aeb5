// Package oommsg carries out-of-memory notifications from the frame
// allocator to any subsystem waiting on memory pressure to ease.
package oommsg

// OomCh is sent on when memory is exhausted.
var OomCh = make(chan Oommsg_t, 1)

// Oommsg_t is sent on OomCh when memory is exhausted.
type Oommsg_t struct {
	Need   int
	Resume chan bool
}
