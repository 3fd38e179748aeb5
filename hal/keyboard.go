package hal

import (
	"pageos/circbuf"
	"pageos/proc"
)

// Key codes for the non-ASCII hotkeys spec §6.5 names: arrows, Page
// Up/Down, Home/End, F1. Ordinary characters are delivered as their ASCII
// byte value instead.
const (
	KeyUp = 0x100 + iota
	KeyDown
	KeyLeft
	KeyRight
	KeyPageUp
	KeyPageDown
	KeyHome
	KeyEnd
	KeyF1
)

// KeyboardBufSize is the bounded ring IRQ 1 enqueues ASCII characters
// into (spec §6.5's "enqueue the resulting ASCII in a bounded ring").
const KeyboardBufSize = 256

// Keyboard simulates a PS/2-style keyboard: a scan-code-to-ASCII ring for
// GETCH/TRYGETCH, plus direct dispatch of the console's scroll hotkeys.
type Keyboard struct {
	ring    circbuf.Circbuf_t
	console *Console
	sched   *proc.Scheduler
}

func MkKeyboard(console *Console, sched *proc.Scheduler) *Keyboard {
	kb := &Keyboard{console: console, sched: sched}
	kb.ring.Init(KeyboardBufSize)
	return kb
}

// Deliver handles one already-decoded key; scan-code decoding and
// modifier state are not handled here. An ordinary character wakes exactly
// one GETCH-blocked process (FIFO) with the character as its syscall
// result, or, if none is blocked, goes into the bounded ring. Hotkeys
// (arrows, PgUp/PgDn, Home/End, F1) drive the console directly and are not
// delivered to the character ring or a blocked GETCH, resolving
// SPEC_FULL.md's OPEN QUESTION DECISIONS entry on scroll-hotkey delivery.
func (kb *Keyboard) Deliver(key int) {
	switch key {
	case KeyF1:
		kb.console.ToggleScroll()
	case KeyUp:
		kb.console.ScrollUp(1)
	case KeyDown:
		kb.console.ScrollDown(1)
	case KeyPageUp:
		kb.console.ScrollUp(ConsoleRows)
	case KeyPageDown:
		kb.console.ScrollDown(ConsoleRows)
	case KeyHome:
		kb.console.Home()
	case KeyEnd:
		kb.console.End()
	default:
		if key >= 0 && key < 0x100 {
			if kb.sched.DeliverInput(uint8(key)) {
				return
			}
			kb.ring.WriteByte(uint8(key))
		}
	}
}

// TryGetch returns the next buffered character without blocking, matching
// the TRYGETCH syscall.
func (kb *Keyboard) TryGetch() (uint8, bool) {
	return kb.ring.TryPop()
}
