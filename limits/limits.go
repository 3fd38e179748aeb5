// Package limits tracks system-wide resource ceilings, grounded on the
// teacher's limits.Syslimit_t, retuned to this kernel's single-CPU,
// single-disk scope (no futexes, sockets, or NIC resources to bound).
package limits

import (
	"sync/atomic"
	"unsafe"
)

// Sysatomic_t is an atomically adjustable resource quota: Taken subtracts
// and refuses to go negative, Given adds back.
type Sysatomic_t int64

func (s *Sysatomic_t) ptr() *int64 { return (*int64)(unsafe.Pointer(s)) }

// Taken tries to consume n units, returning false (and leaving the counter
// unchanged) if that would make it negative.
func (s *Sysatomic_t) Taken(n uint) bool {
	g := atomic.AddInt64(s.ptr(), -int64(n))
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s.ptr(), int64(n))
	return false
}

// Given returns n units to the quota.
func (s *Sysatomic_t) Given(n uint) { atomic.AddInt64(s.ptr(), int64(n)) }
func (s *Sysatomic_t) Take() bool   { return s.Taken(1) }
func (s *Sysatomic_t) Give()        { s.Given(1) }

// Syslimit_t bounds the kernel's global process/fd/vnode/page resources.
type Syslimit_t struct {
	Sysprocs Sysatomic_t
	Vnodes   Sysatomic_t
	Openfds  Sysatomic_t
	Blocks   Sysatomic_t
}

// Syslimit is the configured set of system-wide limits.
var Syslimit = MkSysLimit()

// MkSysLimit returns the default limit set: at most 512 processes (spec's
// process-table sizing is otherwise unspecified; chosen as a generous but
// bounded ceiling appropriate for a single-CPU teaching kernel), 20000
// vnodes, and 256 * Sysprocs open file descriptors in aggregate (each
// process's descriptor table is separately sized at proc.NOFILE = 256).
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{
		Sysprocs: 512,
		Vnodes:   20000,
		Openfds:  512 * 256,
		Blocks:   1 << 20,
	}
}
