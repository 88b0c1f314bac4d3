// Package audit keeps a durable ledger of job lifecycle transitions: created,
// completed and cancelled. Rows are written in batches off the tick goroutine.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kasuganosora/basebuild/server/game/event"
	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/kasuganosora/basebuild/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Options tune batching. Zero values take the defaults.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
}

// Service logs job entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.JobLog
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger

	batchSize     int
	flushInterval time.Duration

	mu    sync.Mutex
	unsub map[*world.World][]func()
}

type requirement struct {
	Type   string `json:"type"`
	Have   int    `json:"have"`
	Amount int    `json:"amount"`
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	svc := &Service{
		db:            db,
		ch:            make(chan *model.JobLog, opts.QueueSize),
		stopCh:        make(chan struct{}),
		logger:        logger,
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		unsub:         make(map[*world.World][]func()),
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues one transition of j for async DB write.
func (svc *Service) Record(j *world.Job, ev string, tick uint64) {
	rec := &model.JobLog{
		JobID:         j.ID,
		Event:         ev,
		FurnitureType: j.FurnitureType,
		Tick:          tick,
	}
	if t := j.Tile(); t != nil {
		rec.X, rec.Y = t.X, t.Y
	}
	reqs := j.Requirements()
	if len(reqs) > 0 {
		out := make([]requirement, 0, len(reqs))
		for _, r := range reqs {
			out = append(out, requirement{Type: r.Type, Have: r.StackSize, Amount: r.MaxStackSize})
		}
		b, err := json.Marshal(out)
		if err != nil {
			svc.logger.Warn("audit requirements marshal failed", zap.String("job_id", j.ID), zap.Error(err))
		} else {
			rec.Requirements = datatypes.JSON(b)
		}
	}
	select {
	case <-svc.stopCh:
		return
	default:
	}
	select {
	case svc.ch <- rec:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("job_id", j.ID), zap.String("event", ev))
	}
}

func subscribe(svc *Service, w *world.World, reg *event.Registry[*world.Job], ev string) func() {
	h := reg.Subscribe(func(j *world.Job) { svc.Record(j, ev, w.Tick()) })
	return func() { reg.Unsubscribe(h) }
}

// Attach records job transitions of w.
func (svc *Service) Attach(w *world.World) {
	ev := w.Events()
	fns := []func(){
		subscribe(svc, w, &ev.JobCreated, model.JobEventCreated),
		subscribe(svc, w, &ev.JobCompleted, model.JobEventCompleted),
		subscribe(svc, w, &ev.JobCancelled, model.JobEventCancelled),
	}
	svc.mu.Lock()
	svc.unsub[w] = append(svc.unsub[w], fns...)
	svc.mu.Unlock()
}

// Detach stops recording w.
func (svc *Service) Detach(w *world.World) {
	svc.mu.Lock()
	fns := svc.unsub[w]
	delete(svc.unsub, w)
	svc.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// History returns the logged transitions of one job, oldest first.
func (svc *Service) History(ctx context.Context, jobID string) ([]model.JobLog, error) {
	var logs []model.JobLog
	err := svc.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id").Find(&logs).Error
	return logs, err
}

// Recent returns up to limit entries, newest first.
func (svc *Service) Recent(ctx context.Context, limit int) ([]model.JobLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var logs []model.JobLog
	err := svc.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.mu.Lock()
	for w, fns := range svc.unsub {
		for _, fn := range fns {
			fn()
		}
		delete(svc.unsub, w)
	}
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.mu.Unlock()
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.flushInterval)
	defer ticker.Stop()

	batch := make([]*model.JobLog, 0, svc.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("rows", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= svc.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
