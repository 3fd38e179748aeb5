// Package hal collects the hardware-collaborator interfaces the kernel
// drives: the text console, the keyboard, and the timer. Grounded on the
// teacher's console_t stub-collaborator pattern (ufs/driver.go), which used
// a minimal interface implementation for host-side testing; generalized
// here into a real (non-stub) simulated VGA-text console and PS/2-style
// keyboard, since this kernel never runs on real hardware either.
package hal

import (
	"fmt"
	"strings"
	"sync"
)

// ConsoleCols/ConsoleRows are the visible text console's dimensions, per
// spec §6.5's 80x24 display plus a reserved status line.
const (
	ConsoleCols = 80
	ConsoleRows = 24
	ScrollbackLines = 1000
)

// Console simulates an 80x24 VGA-text display with a scrollback buffer and
// a status line, matching spec §6.5.
type Console struct {
	sync.Mutex
	lines     []string // scrollback, oldest first, capped at ScrollbackLines
	cur       strings.Builder
	status    string
	scrollPos int  // 0 = bottom (live); >0 = lines scrolled back
	scrolling bool // true once F1 has toggled scroll mode
}

func MkConsole() *Console {
	return &Console{}
}

// Write appends raw bytes to the console, splitting on newlines into
// scrollback lines, matching the teacher's io.Writer-shaped console sink.
func (c *Console) Write(p []byte) (int, error) {
	c.Lock()
	defer c.Unlock()
	for _, b := range p {
		if b == '\n' {
			c.pushLine(c.cur.String())
			c.cur.Reset()
			continue
		}
		c.cur.WriteByte(b)
	}
	return len(p), nil
}

func (c *Console) pushLine(s string) {
	c.lines = append(c.lines, s)
	if len(c.lines) > ScrollbackLines {
		c.lines = c.lines[len(c.lines)-ScrollbackLines:]
	}
}

// Printf writes formatted text to the console, the kernel's primary
// logging sink (SPEC_FULL.md AMBIENT STACK).
func (c *Console) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c, format, args...)
}

// SetStatus updates the reserved status line text.
func (c *Console) SetStatus(s string) {
	c.Lock()
	c.status = s
	c.Unlock()
}

// ToggleScroll flips scroll mode without delivering the keystroke
// downstream, resolving spec §REDESIGN/Open-Question L363's ambiguity in
// favor of "hotkeys are non-delivering" (SPEC_FULL.md OPEN QUESTION
// DECISIONS).
func (c *Console) ToggleScroll() {
	c.Lock()
	c.scrolling = !c.scrolling
	if !c.scrolling {
		c.scrollPos = 0
	}
	c.Unlock()
}

// ScrollUp/ScrollDown move the scrollback window while in scroll mode.
func (c *Console) ScrollUp(n int) {
	c.Lock()
	defer c.Unlock()
	if !c.scrolling {
		return
	}
	c.scrollPos += n
	if max := len(c.lines) - ConsoleRows; c.scrollPos > max {
		if max < 0 {
			max = 0
		}
		c.scrollPos = max
	}
}

func (c *Console) ScrollDown(n int) {
	c.Lock()
	defer c.Unlock()
	c.scrollPos -= n
	if c.scrollPos < 0 {
		c.scrollPos = 0
	}
}

// Home/End jump to the oldest/most recent scrollback position.
func (c *Console) Home() {
	c.Lock()
	defer c.Unlock()
	if max := len(c.lines) - ConsoleRows; max > 0 {
		c.scrollPos = max
	}
}

func (c *Console) End() {
	c.Lock()
	c.scrollPos = 0
	c.Unlock()
}

// Visible returns the ConsoleRows lines currently displayed, accounting
// for scrollPos, for tests and for a /dev/console snapshot read.
func (c *Console) Visible() []string {
	c.Lock()
	defer c.Unlock()
	all := c.lines
	if c.cur.Len() > 0 {
		all = append(append([]string{}, all...), c.cur.String())
	}
	end := len(all) - c.scrollPos
	if end < 0 {
		end = 0
	}
	start := end - ConsoleRows
	if start < 0 {
		start = 0
	}
	return all[start:end]
}
