// Package scheduler runs named periodic and delayed tasks. Ticker tasks are
// told how much wall time passed since their previous run, which is what the
// world tick uses as its dt.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for ticker tasks. dt is the time since the
// task last ran (the interval on the first run).
type TaskFn func(dt time.Duration)

// DelayFn runs once.
type DelayFn func()

// Scheduler manages periodic and delayed tasks.
type Scheduler struct {
	mu      sync.Mutex
	tickers map[string]*tickerEntry
	timers  map[string]*time.Timer
	logger  *zap.Logger
	stopCh  chan struct{}
	running sync.WaitGroup
}

type tickerEntry struct {
	ticker   *time.Ticker
	stopCh   chan struct{}
	interval time.Duration

	statsMu sync.Mutex
	stats   TaskStats
}

// TaskStats describes a ticker task for the admin metrics endpoint.
type TaskStats struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	Runs     uint64        `json:"runs"`
	Panics   uint64        `json:"panics"`
	LastRun  time.Time     `json:"last_run"`
	LastTook time.Duration `json:"last_took"`
}

// New creates a new Scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		tickers: make(map[string]*tickerEntry),
		timers:  make(map[string]*time.Timer),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
}

func (s *Scheduler) stopped() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// AddTicker registers a task to run on a fixed interval.
// If a task with the same name exists, it is replaced. Tasks added after
// Stop are ignored.
func (s *Scheduler) AddTicker(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped() {
		return
	}

	if old, ok := s.tickers[name]; ok {
		close(old.stopCh)
		delete(s.tickers, name)
	}

	entry := &tickerEntry{
		ticker:   time.NewTicker(interval),
		stopCh:   make(chan struct{}),
		interval: interval,
		stats:    TaskStats{Name: name, Interval: interval},
	}
	s.tickers[name] = entry

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		last := time.Now()
		for {
			select {
			case now := <-entry.ticker.C:
				dt := now.Sub(last)
				last = now
				s.run(name, entry, dt, fn)
			case <-entry.stopCh:
				entry.ticker.Stop()
				return
			case <-s.stopCh:
				entry.ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

func (s *Scheduler) run(name string, entry *tickerEntry, dt time.Duration, fn TaskFn) {
	start := time.Now()
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
		entry.statsMu.Lock()
		entry.stats.Runs++
		if panicked {
			entry.stats.Panics++
		}
		entry.stats.LastRun = start
		entry.stats.LastTook = time.Since(start)
		entry.statsMu.Unlock()
	}()
	fn(dt)
}

// AddDelay runs fn once after the given delay.
func (s *Scheduler) AddDelay(name string, delay time.Duration, fn DelayFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped() {
		return
	}

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("delay task panicked",
					zap.String("task", name), zap.Any("recover", r))
			}
			s.mu.Lock()
			if s.timers[name] == timer {
				delete(s.timers, name)
			}
			s.mu.Unlock()
		}()
		fn()
	})
	s.timers[name] = timer
}

// Remove stops and removes a ticker or delay task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tickers[name]; ok {
		close(entry.stopCh)
		delete(s.tickers, name)
	}
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
}

// Stop cancels pending delays and waits for ticker tasks to finish their
// current run, so a final save after Stop never overlaps a tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped() {
		close(s.stopCh)
	}
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()
	s.running.Wait()
}

// ListTickers returns the names of all registered ticker tasks, sorted.
func (s *Scheduler) ListTickers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tickers))
	for name := range s.tickers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a copy of every ticker's counters, sorted by name.
func (s *Scheduler) Stats() []TaskStats {
	s.mu.Lock()
	entries := make([]*tickerEntry, 0, len(s.tickers))
	for _, e := range s.tickers {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]TaskStats, 0, len(entries))
	for _, e := range entries {
		e.statsMu.Lock()
		out = append(out, e.stats)
		e.statsMu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
