package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// task is a callback scheduled for a point in time, optionally recurring
type task struct {
	id    string
	runAt time.Time
	fn    func()
	// next computes the following run time of a recurring task, nil for one-shot tasks
	next      func(time.Time) time.Time
	cancelled bool
	index     int // position in the heap, -1 while not queued
}

// taskHeap is a min-heap of tasks ordered by runAt
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].runAt.Before(h[j].runAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler runs callbacks at their due time on a fixed pool of workers. Tasks are
// keyed by ID: scheduling an existing ID replaces it.
type Scheduler struct {
	mu      sync.Mutex
	heap    taskHeap
	tasks   map[string]*task
	wakeup  chan struct{}
	due     chan *task
	workers int
	wg      sync.WaitGroup
	stopped bool
	stopCh  chan struct{}
}

// New creates a scheduler with the given number of workers
func New(workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		tasks:   make(map[string]*task),
		wakeup:  make(chan struct{}, 1),
		due:     make(chan *task),
		workers: workers,
		stopCh:  make(chan struct{}),
	}
	heap.Init(&s.heap)
	return s
}

// Start starts the dispatch loop and the worker pool
func (s *Scheduler) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.wg.Add(1)
	go s.run()
}

// Stop discards pending tasks and waits for running callbacks to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

// Schedule runs fn once at runAt
func (s *Scheduler) Schedule(id string, runAt time.Time, fn func()) error {
	return s.add(&task{id: id, runAt: runAt, fn: fn})
}

// ScheduleRecurring runs fn at first and then at next(finish time) after every run
func (s *Scheduler) ScheduleRecurring(id string, first time.Time, next func(time.Time) time.Time, fn func()) error {
	return s.add(&task{id: id, runAt: first, fn: fn, next: next})
}

func (s *Scheduler) add(t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}
	s.removeLocked(t.id)
	s.tasks[t.id] = t
	s.pushLocked(t)
	return nil
}

func (s *Scheduler) pushLocked(t *task) {
	heap.Push(&s.heap, t)
	if s.heap[0] == t {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
}

func (s *Scheduler) removeLocked(id string) bool {
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	if t.index >= 0 {
		heap.Remove(&s.heap, t.index)
	}
	t.cancelled = true
	delete(s.tasks, id)
	return true
}

// Cancel removes a task. A recurring task that is currently running finishes its run
// and is not rescheduled.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

// Pending returns how many tasks are scheduled, running recurring tasks included
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// NextRun returns when a task is due, false if it is unknown or running
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.index < 0 {
		return time.Time{}, false
	}
	return t.runAt, true
}

// run pops due tasks and hands them to the workers
func (s *Scheduler) run() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		wait := 24 * time.Hour
		if s.heap.Len() > 0 {
			next := s.heap[0]
			wait = time.Until(next.runAt)
			if wait <= 0 {
				t := heap.Pop(&s.heap).(*task)
				if t.next == nil {
					delete(s.tasks, t.id)
				}
				s.mu.Unlock()

				select {
				case s.due <- t:
				case <-s.stopCh:
					return
				}
				continue
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case t := <-s.due:
			t.fn()
			if t.next != nil {
				s.reschedule(t)
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) reschedule(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || t.cancelled || s.tasks[t.id] != t {
		return
	}
	t.runAt = t.next(time.Now())
	s.pushLocked(t)
}

var (
	ErrSchedulerStopped = &SchedulerError{"scheduler is stopped"}
)

// SchedulerError represents a scheduler error
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string {
	return e.msg
}
