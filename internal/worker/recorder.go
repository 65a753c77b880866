// Package worker записывает клики в фоне через ограниченную очередь.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tempizhere/shortlink/internal/cache"
	"github.com/tempizhere/shortlink/internal/device"
	"github.com/tempizhere/shortlink/internal/events"
	"github.com/tempizhere/shortlink/internal/geo"
	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/repository"
	"go.uber.org/zap"
)

// Параметры по умолчанию
const (
	DefaultWorkers    = 4
	DefaultQueueSize  = 1024
	DefaultJobTimeout = 5 * time.Second
)

// Options настройки Recorder
type Options struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// Recorder принимает клики без блокировки и записывает их пулом воркеров.
// Клики, не поместившиеся в очередь или пришедшие после Shutdown, отбрасываются.
type Recorder struct {
	repo      repository.Repository
	cache     cache.Cache
	geo       geo.Resolver
	publisher events.Publisher
	logger    *zap.Logger
	timeout   time.Duration

	jobs chan models.ClickRequest
	wg   sync.WaitGroup

	// mu защищает closed и закрытие jobs от гонки с Enqueue
	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc

	recorded atomic.Int64
	dropped  atomic.Int64
}

// NewRecorder создаёт Recorder и запускает воркеры; publisher может быть nil
func NewRecorder(repo repository.Repository, c cache.Cache, resolver geo.Resolver, publisher events.Publisher, logger *zap.Logger, opts Options) *Recorder {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if resolver == nil {
		resolver = geo.NopResolver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Recorder{
		repo:      repo,
		cache:     c,
		geo:       resolver,
		publisher: publisher,
		logger:    logger,
		timeout:   opts.JobTimeout,
		jobs:      make(chan models.ClickRequest, opts.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.run()
	}
	return r
}

// Enqueue ставит клик в очередь; false, если очередь полна или Recorder остановлен
func (r *Recorder) Enqueue(req models.ClickRequest) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return false
	}
	select {
	case r.jobs <- req:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Shutdown прекращает приём кликов и дожидается обработки очереди.
// Если ctx завершится раньше, незаписанные клики отбрасываются.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	}
}

// Recorded число записанных кликов
func (r *Recorder) Recorded() int64 {
	return r.recorded.Load()
}

// Dropped число отброшенных кликов
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for req := range r.jobs {
		if r.ctx.Err() != nil {
			r.dropped.Add(1)
			continue
		}
		if err := r.record(req); err != nil {
			r.logger.Warn("Failed to record click", zap.String("code", req.Code), zap.Error(err))
			continue
		}
		r.recorded.Add(1)
	}
}

func (r *Recorder) record(req models.ClickRequest) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	ip := req.Meta.IP
	if ip == "" {
		ip = models.Unknown
	}
	ev := &models.ClickEvent{
		Code:         req.Code,
		SourceIP:     ip,
		Referrer:     req.Meta.Referrer,
		UserAgentRaw: req.Meta.UserAgent,
		Device:       device.Parse(req.Meta.UserAgent),
		Geo:          r.geo.Lookup(ctx, req.Meta.IP),
		OccurredAt:   req.OccurredAt.UTC(),
	}
	saved, err := r.repo.AppendClickEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("append click: %w", err)
	}

	at := saved.OccurredAt
	_, err = r.repo.Update(ctx, req.Code, models.LinkPatch{ClickDelta: 1, LastAccessedAt: &at})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// ссылку удалили после разрешения; клик остаётся в истории
		r.logger.Debug("Click for deleted link", zap.String("code", req.Code))
	case err != nil:
		r.logger.Warn("Failed to update click counters", zap.String("code", req.Code), zap.Error(err))
	}

	key := cache.ClickCounterKey(req.Code)
	if _, err := r.cache.Increment(ctx, key, 1); err != nil {
		r.logger.Warn("Failed to increment cache counter", zap.String("key", key), zap.Error(err))
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, saved); err != nil {
			r.logger.Warn("Failed to publish click", zap.String("code", req.Code), zap.Error(err))
		}
	}
	return nil
}
