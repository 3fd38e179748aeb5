// Package stats accumulates kernel counters and, for the /dev/prof device,
// exports them as a pprof-shaped profile via github.com/google/pprof/profile
// (SPEC_FULL.md's domain stack). Grounded on the teacher's
// stats.Counter_t/Cycles_t reflection dumper; Cycles_t.Add here takes an
// already-measured nanosecond duration instead of calling the teacher's
// runtime.Rdtsc(), a symbol only the forked Go runtime backing biscuit
// exposes.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/pprof/profile"
)

// Enabled gates whether counters actually accumulate; cheap no-ops when
// false, matching the teacher's Stats/Timing build-time switches.
var Enabled = true

// Counter_t is a simple statistical counter.
type Counter_t int64

// Cycles_t holds an accumulated nanosecond duration.
type Cycles_t int64

func (c *Counter_t) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1)
	}
}

func (c *Cycles_t) Add(nanos int64) {
	if Enabled {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), nanos)
	}
}

// Stats2String converts a struct of Counter_t/Cycles_t fields to a
// printable dump, via reflection exactly as the teacher does.
func Stats2String(st interface{}) string {
	if !Enabled {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		switch {
		case strings.HasSuffix(t, "Counter_t"):
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		case strings.HasSuffix(t, "Cycles_t"):
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}

// ProfSample is one scheduler-tick sample for the /dev/prof device: which
// pid ran, at which priority, for how many nanoseconds.
type ProfSample struct {
	Pid      int32
	Priority int
	Nanos    int64
}

// Profiler accumulates ProfSamples and marshals them into a pprof Profile
// on demand, giving the kernel's tick accounting a real pprof-compatible
// export instead of a bespoke counter dump.
type Profiler struct {
	mu      sync.Mutex
	samples []ProfSample
}

var DefaultProfiler = &Profiler{}

// Record appends one scheduler-tick sample.
func (p *Profiler) Record(s ProfSample) {
	p.mu.Lock()
	p.samples = append(p.samples, s)
	p.mu.Unlock()
}

// Snapshot marshals accumulated samples into a pprof profile.Profile,
// tagging each sample with its pid and scheduling priority as labels.
func (p *Profiler) Snapshot() *profile.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "cpu", Unit: "nanoseconds"}},
		PeriodType: &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:     1,
	}
	for _, s := range p.samples {
		prof.Sample = append(prof.Sample, &profile.Sample{
			Value: []int64{s.Nanos},
			Label: map[string][]string{
				"pid":      {strconv.Itoa(int(s.Pid))},
				"priority": {strconv.Itoa(s.Priority)},
			},
		})
	}
	return prof
}
