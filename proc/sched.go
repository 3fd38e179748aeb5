package proc

import "sync"

// queue is an intrusive doubly-linked FIFO of Process PCBs threaded
// through qnext/qprev, matching original_source's PriorityQueue
// (head/tail/count) instead of a slice that would need to shift on
// dequeue.
type queue struct {
	head, tail *Process
	count      int
}

func (q *queue) pushBack(p *Process) {
	p.qnext, p.qprev = nil, q.tail
	if q.tail != nil {
		q.tail.qnext = p
	} else {
		q.head = p
	}
	q.tail = p
	q.count++
}

func (q *queue) popFront() *Process {
	p := q.head
	if p == nil {
		return nil
	}
	q.head = p.qnext
	if q.head != nil {
		q.head.qprev = nil
	} else {
		q.tail = nil
	}
	p.qnext, p.qprev = nil, nil
	q.count--
	return p
}

func (q *queue) remove(p *Process) {
	if p.qprev != nil {
		p.qprev.qnext = p.qnext
	} else if q.head == p {
		q.head = p.qnext
	}
	if p.qnext != nil {
		p.qnext.qprev = p.qprev
	} else if q.tail == p {
		q.tail = p.qprev
	}
	p.qnext, p.qprev = nil, nil
	q.count--
}

// Scheduler holds the per-priority ready queues, the sleep queue, and the
// input-wait queue, matching ProcessManager's readyQueues/sleepQueue/
// inputWaitQueue plus its aging pass.
type Scheduler struct {
	sync.Mutex
	ready      [MaxPriority + 1]queue
	sleeping   []*Process
	inputWait  queue
	ticks      uint32
	lastAging  uint32
}

func MkScheduler() *Scheduler { return &Scheduler{} }

// AddReady enqueues p onto its priority's ready queue.
func (s *Scheduler) AddReady(p *Process) {
	s.Lock()
	defer s.Unlock()
	p.Lock()
	p.State = READY
	pr := clampPriority(p.Priority)
	p.Unlock()
	s.ready[pr].pushBack(p)
}

func clampPriority(pr uint32) uint32 {
	if pr > MaxPriority {
		return MaxPriority
	}
	return pr
}

// Next pops the highest-priority ready process (lowest numeric value),
// FIFO within a level, matching spec's tie-break rule.
func (s *Scheduler) Next() *Process {
	s.Lock()
	defer s.Unlock()
	for pr := 0; pr <= MaxPriority; pr++ {
		if p := s.ready[pr].popFront(); p != nil {
			return p
		}
	}
	return nil
}

// Sleep parks p on the sleep queue until wakeTick.
func (s *Scheduler) Sleep(p *Process, wakeTick int64) {
	s.Lock()
	defer s.Unlock()
	p.Lock()
	p.State = SLEEPING
	p.sleepUntil = wakeTick
	p.Unlock()
	s.sleeping = append(s.sleeping, p)
}

// BlockForInput parks p on the input-wait queue (GETCH with nothing
// buffered).
func (s *Scheduler) BlockForInput(p *Process) {
	s.Lock()
	defer s.Unlock()
	p.Lock()
	p.State = BLOCKED
	p.Unlock()
	s.inputWait.pushBack(p)
}

// DeliverInput wakes exactly one process parked on the input-wait queue
// with the given character, matching spec's "wake exactly one (FIFO)"
// keyboard-IRQ rule. Returns false if no process was waiting, in which
// case the caller is expected to buffer ch for a future TRYGETCH/GETCH.
func (s *Scheduler) DeliverInput(ch byte) bool {
	s.Lock()
	p := s.inputWait.popFront()
	s.Unlock()
	if p == nil {
		return false
	}
	p.Lock()
	p.PendingSyscallReturn = int(ch)
	p.Unlock()
	p.Wake()
	return true
}

// Tick advances the scheduler clock by one timer interrupt: it wakes any
// sleepers whose deadline has passed and performs aging every
// AgingInterval ticks, matching ProcessManager::process_sleep_queue /
// perform_aging.
func (s *Scheduler) Tick(now int64) []*Process {
	s.Lock()
	var woken []*Process
	remaining := s.sleeping[:0]
	for _, p := range s.sleeping {
		if p.sleepUntil <= now {
			woken = append(woken, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	s.sleeping = remaining

	s.ticks++
	doAge := s.ticks-s.lastAging >= AgingInterval
	if doAge {
		s.lastAging = s.ticks
	}
	s.Unlock()

	for _, p := range woken {
		s.AddReady(p)
		p.Wake()
	}
	if doAge {
		s.ageReadyQueues()
	}
	return woken
}

// ageReadyQueues increments the age of every ready process below the top
// priority (level 0 is skipped, as it cannot be promoted further) and
// promotes any that have waited long enough, preventing starvation,
// matching ProcessManager::perform_aging.
func (s *Scheduler) ageReadyQueues() {
	s.Lock()
	var promote []*Process
	for pr := 1; pr <= MaxPriority; pr++ {
		q := &s.ready[pr]
		for p := q.head; p != nil; {
			next := p.qnext
			p.Lock()
			p.Age++
			promoteNow := p.Age > 50
			if promoteNow {
				p.Age = 0
				p.Priority = clampPriority(p.Priority - 1)
			}
			p.Unlock()
			if promoteNow {
				q.remove(p)
				promote = append(promote, p)
			}
			p = next
		}
	}
	s.Unlock()
	for _, p := range promote {
		s.AddReady(p)
	}
}

// Remove pulls p out of whichever ready queue currently holds it (used
// when a process is killed while still runnable).
func (s *Scheduler) Remove(p *Process) {
	s.Lock()
	defer s.Unlock()
	p.Lock()
	pr := clampPriority(p.Priority)
	p.Unlock()
	s.ready[pr].remove(p)
}
