package render

import (
	"sync"
	"time"
)

// DashStep is how far the dash phase moves each frame.
const DashStep = 1.0

// DefaultFrameRate is the redraw rate when none is configured.
const DefaultFrameRate = 60

// Scheduler runs callbacks later, one at a time, on the thread that owns the
// session state.
type Scheduler interface {
	Schedule(fn func())
}

// Loop redraws once per frame for the life of a session. Each tick advances
// the dash phase, redraws, and schedules the next tick.
//
// A Loop is started once and runs until Stop; it cannot be restarted.
type Loop struct {
	sched Scheduler
	draw  func(dashOffset float64)

	dashOffset float64
	frames     uint64
	started    bool
	stopped    bool
}

// NewLoop returns a loop that calls draw on every tick.
func NewLoop(sched Scheduler, draw func(dashOffset float64)) *Loop {
	return &Loop{sched: sched, draw: draw}
}

// Start schedules the first tick. Later calls do nothing.
func (l *Loop) Start() {
	if l.started || l.stopped {
		return
	}
	l.started = true
	l.sched.Schedule(l.Tick)
}

// Tick runs one frame and re-enqueues itself.
func (l *Loop) Tick() {
	if l.stopped {
		return
	}
	l.dashOffset -= DashStep
	l.frames++
	l.draw(l.dashOffset)
	l.sched.Schedule(l.Tick)
}

// Stop ends the loop when the session ends. Pending ticks become no-ops.
func (l *Loop) Stop() {
	l.stopped = true
}

// DashOffset returns the current dash phase.
func (l *Loop) DashOffset() float64 {
	return l.dashOffset
}

// Frames returns how many ticks have run.
func (l *Loop) Frames() uint64 {
	return l.frames
}

// QueueScheduler collects callbacks until RunPending is called. Headless
// tools and tests use it to step frames by hand.
type QueueScheduler struct {
	queue []func()
}

// Schedule appends fn to the queue.
func (q *QueueScheduler) Schedule(fn func()) {
	q.queue = append(q.queue, fn)
}

// RunPending runs the callbacks queued before the call; callbacks they
// schedule wait for the next call. It returns how many ran.
func (q *QueueScheduler) RunPending() int {
	batch := q.queue
	q.queue = nil
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Len returns the number of queued callbacks.
func (q *QueueScheduler) Len() int {
	return len(q.queue)
}

// FrameScheduler batches callbacks and hands each batch to a main-thread
// executor (fyne.Do in the editor) once per frame interval.
type FrameScheduler struct {
	interval time.Duration
	run      func(func())

	mu      sync.Mutex
	pending []func()
	stop    chan struct{}
	once    sync.Once
}

// NewFrameScheduler returns a scheduler ticking at fps frames per second.
// run must execute its argument on the thread that owns the session.
func NewFrameScheduler(fps int, run func(func())) *FrameScheduler {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &FrameScheduler{
		interval: time.Second / time.Duration(fps),
		run:      run,
		stop:     make(chan struct{}),
	}
}

// Schedule queues fn for the next frame. Safe to call from any goroutine.
func (s *FrameScheduler) Schedule(fn func()) {
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
}

// Start begins ticking in a background goroutine.
func (s *FrameScheduler) Start() {
	go s.tickLoop()
}

// Stop ends the ticking goroutine. Queued callbacks are dropped.
func (s *FrameScheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *FrameScheduler) tickLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			batch := s.pending
			s.pending = nil
			s.mu.Unlock()

			if len(batch) == 0 {
				continue
			}
			s.run(func() {
				for _, fn := range batch {
					fn()
				}
			})
		}
	}
}
