package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/tempizhere/shortlink/internal/cache"
	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Параметры кэширования по умолчанию
const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxCachedClicks = 500
)

// Размеры топов в сводке
const (
	summaryTopReferrers = 5
	summaryTopBrowsers  = 5
	summaryTopDevices   = 3
	summaryTopLocations = 5
)

// Stat число кликов для одного значения поля
type Stat struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Bucket число кликов в интервале [Start, Start+step)
type Bucket struct {
	Start time.Time `json:"start"`
	Count int64     `json:"count"`
}

// Summary сводка по ссылке
type Summary struct {
	Code           string     `json:"code"`
	OriginalURL    string     `json:"original_url"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
	IsActive       bool       `json:"is_active"`
	ClickCount     int64      `json:"click_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at"`
	LiveClickCount int64      `json:"live_click_count"`
	TotalClicks    int64      `json:"total_clicks"`
	TopReferrers   []Stat     `json:"top_referrers"`
	TopBrowsers    []Stat     `json:"top_browsers"`
	TopDevices     []Stat     `json:"top_devices"`
	TopLocations   []Stat     `json:"top_locations"`
	TimeSeries     []Bucket   `json:"time_series"`
}

// Result результат запроса; заполнено поле, соответствующее виду отчёта
type Result struct {
	Code    string              `json:"code"`
	View    string              `json:"view"`
	Total   int64               `json:"total"`
	Clicks  []models.ClickEvent `json:"clicks"`
	Stats   []Stat              `json:"stats"`
	Buckets []Bucket            `json:"buckets"`
	Summary *Summary            `json:"summary"`
}

// Config настройки Aggregator
type Config struct {
	TTL             time.Duration
	MaxCachedClicks int
	// Now подменяется в тестах
	Now func() time.Time
}

// Aggregator считает аналитику поверх хранилища кликов
type Aggregator struct {
	repo   repository.Repository
	cache  cache.Cache
	logger *zap.Logger
	cfg    Config
}

type handler func(a *Aggregator, ctx context.Context, link *models.Link, v View, opts Options) (*Result, error)

var handlers = map[View]handler{
	ViewSummary:    (*Aggregator).summary,
	ViewClicks:     (*Aggregator).clicks,
	ViewReferrers:  (*Aggregator).grouped,
	ViewBrowsers:   (*Aggregator).grouped,
	ViewDevices:    (*Aggregator).grouped,
	ViewOS:         (*Aggregator).grouped,
	ViewLocations:  (*Aggregator).grouped,
	ViewTimeSeries: (*Aggregator).timeSeries,
}

// NewAggregator создаёт новый экземпляр Aggregator
func NewAggregator(repo repository.Repository, c cache.Cache, logger *zap.Logger, cfg Config) *Aggregator {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxCachedClicks <= 0 {
		cfg.MaxCachedClicks = DefaultMaxCachedClicks
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Aggregator{repo: repo, cache: c, logger: logger, cfg: cfg}
}

// Get возвращает отчёт view по ссылке code
func (a *Aggregator) Get(ctx context.Context, code string, v View, opts Options) (*Result, error) {
	h, ok := handlers[v]
	if !ok {
		return nil, fmt.Errorf("%w: unknown view %d", models.ErrInvalidAnalyticsOptions, int(v))
	}

	// неизвестная ссылка важнее некорректных параметров
	link, err := a.repo.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrAggregationFailed, err)
	}

	opts, err = opts.normalize(v)
	if err != nil {
		return nil, err
	}

	key := cache.AnalyticsKey(code, v.String(), opts.Fingerprint())
	if res, ok := a.cached(ctx, key); ok {
		return res, nil
	}

	res, err := h(a, ctx, link, v, opts)
	if err != nil {
		return nil, err
	}
	if v == ViewClicks && len(res.Clicks) > a.cfg.MaxCachedClicks {
		return res, nil
	}
	a.store(ctx, key, res)
	return res, nil
}

func (a *Aggregator) cached(ctx context.Context, key string) (*Result, bool) {
	raw, hit, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("Failed to read cache", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		a.logger.Warn("Corrupted analytics entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &res, true
}

func (a *Aggregator) store(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(res)
	if err != nil {
		a.logger.Warn("Failed to encode analytics", zap.String("key", key), zap.Error(err))
		return
	}
	if err := a.cache.Set(ctx, key, string(data), a.cfg.TTL); err != nil {
		a.logger.Warn("Failed to write cache", zap.String("key", key), zap.Error(err))
	}
}

func (a *Aggregator) clicks(ctx context.Context, link *models.Link, v View, opts Options) (*Result, error) {
	filter := opts.filter()
	total, err := a.repo.CountClickEvents(ctx, link.Code, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrAggregationFailed, err)
	}
	filter.Limit, filter.Skip = opts.Limit, opts.Skip
	events, err := a.repo.ListClickEvents(ctx, link.Code, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrAggregationFailed, err)
	}
	if events == nil {
		events = []models.ClickEvent{}
	}
	return &Result{Code: link.Code, View: v.String(), Total: total, Clicks: events}, nil
}

func (a *Aggregator) grouped(ctx context.Context, link *models.Link, v View, opts Options) (*Result, error) {
	stats, total, err := a.group(ctx, link.Code, v, opts.filter())
	if err != nil {
		return nil, err
	}
	return &Result{Code: link.Code, View: v.String(), Total: total, Stats: page(stats, opts.Skip, opts.Limit)}, nil
}

// group считает клики по значению поля и сортирует по убыванию
func (a *Aggregator) group(ctx context.Context, code string, v View, filter models.ClickFilter) ([]Stat, int64, error) {
	dim := dimensions[v]
	events, err := a.repo.ListClickEvents(ctx, code, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", models.ErrAggregationFailed, err)
	}

	counts := make(map[string]int64)
	for i := range events {
		counts[dim(&events[i])]++
	}
	stats := make([]Stat, 0, len(counts))
	for label, n := range counts {
		stats = append(stats, Stat{Label: label, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Label < stats[j].Label
	})
	return stats, int64(len(events)), nil
}

func page(stats []Stat, skip, limit int) []Stat {
	if skip >= len(stats) {
		return []Stat{}
	}
	stats = stats[skip:]
	if limit > 0 && limit < len(stats) {
		stats = stats[:limit]
	}
	return stats
}

func (a *Aggregator) timeSeries(ctx context.Context, link *models.Link, v View, opts Options) (*Result, error) {
	buckets, total, err := a.series(ctx, link.Code, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Code: link.Code, View: v.String(), Total: total, Buckets: buckets}, nil
}

// series строит плотный ряд: интервалы без кликов включаются с нулём
func (a *Aggregator) series(ctx context.Context, code string, opts Options) ([]Bucket, int64, error) {
	step := opts.Interval.step()
	to := a.cfg.Now().UTC()
	if opts.To != nil {
		to = *opts.To
	}
	last := to.Truncate(step)
	first := last.Add(-step * (DefaultBuckets - 1))
	if opts.From != nil {
		first = opts.From.Truncate(step)
	}
	n := int(last.Sub(first)/step) + 1
	if n < 1 {
		return nil, 0, fmt.Errorf("%w: from is in the future", models.ErrInvalidAnalyticsOptions)
	}
	if n > MaxBuckets {
		return nil, 0, fmt.Errorf("%w: %d buckets requested, at most %d allowed", models.ErrInvalidAnalyticsOptions, n, MaxBuckets)
	}

	from := first
	if opts.From != nil {
		from = *opts.From
	}
	events, err := a.repo.ListClickEvents(ctx, code, models.ClickFilter{From: &from, To: &to})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", models.ErrAggregationFailed, err)
	}

	buckets := make([]Bucket, n)
	for i := range buckets {
		buckets[i].Start = first.Add(step * time.Duration(i))
	}
	for _, ev := range events {
		i := int(ev.OccurredAt.UTC().Truncate(step).Sub(first) / step)
		if i >= 0 && i < n {
			buckets[i].Count++
		}
	}
	return buckets, int64(len(events)), nil
}

// summary собирает сводку из независимых запросов, выполняемых параллельно
func (a *Aggregator) summary(ctx context.Context, link *models.Link, v View, opts Options) (*Result, error) {
	s := &Summary{
		Code:           link.Code,
		OriginalURL:    link.OriginalURL,
		CreatedAt:      link.CreatedAt,
		ExpiresAt:      link.ExpiresAt,
		IsActive:       link.IsActive,
		ClickCount:     link.ClickCount,
		LastAccessedAt: link.LastAccessedAt,
		LiveClickCount: a.liveCounter(ctx, link.Code),
	}
	filter := opts.filter()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.repo.CountClickEvents(gctx, link.Code, filter)
		if err != nil {
			return fmt.Errorf("%w: %w", models.ErrAggregationFailed, err)
		}
		s.TotalClicks = n
		return nil
	})
	tops := []struct {
		view  View
		limit int
		dst   *[]Stat
	}{
		{ViewReferrers, summaryTopReferrers, &s.TopReferrers},
		{ViewBrowsers, summaryTopBrowsers, &s.TopBrowsers},
		{ViewDevices, summaryTopDevices, &s.TopDevices},
		{ViewLocations, summaryTopLocations, &s.TopLocations},
	}
	for _, top := range tops {
		g.Go(func() error {
			stats, _, err := a.group(gctx, link.Code, top.view, filter)
			if err != nil {
				return err
			}
			*top.dst = page(stats, 0, top.limit)
			return nil
		})
	}
	g.Go(func() error {
		// последние DefaultBuckets интервалов до to
		seriesOpts := Options{To: opts.To, Interval: opts.Interval}
		buckets, _, err := a.series(gctx, link.Code, seriesOpts)
		if err != nil {
			return err
		}
		s.TimeSeries = buckets
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Code: link.Code, View: v.String(), Total: s.TotalClicks, Summary: s}, nil
}

// liveCounter читает счётчик clicks:<code>, который ведёт запись кликов
func (a *Aggregator) liveCounter(ctx context.Context, code string) int64 {
	key := cache.ClickCounterKey(code)
	raw, hit, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("Failed to read cache", zap.String("key", key), zap.Error(err))
		return 0
	}
	if !hit {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
