package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tempizhere/shortlink/internal/cache"
	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/repository"
	"go.uber.org/zap"
)

// DefaultResolutionTTL время жизни записи resolution:<code> по умолчанию
const DefaultResolutionTTL = 24 * time.Hour

// createAttempts число попыток записи при конфликте кода
const createAttempts = 2

// ClickSink принимает клик на асинхронную запись; false означает, что клик отброшен
type ClickSink interface {
	Enqueue(req models.ClickRequest) bool
}

// Options настройки Service
type Options struct {
	BaseURL       string
	ResolutionTTL time.Duration
	CascadeClicks bool
	Generator     GeneratorOptions
	// Now подменяется в тестах
	Now func() time.Time
}

// Service реализует создание и разрешение коротких ссылок
type Service struct {
	repo      repository.Repository
	cache     cache.Cache
	clicks    ClickSink
	generator *Generator
	logger    *zap.Logger
	opts      Options
}

// NewService создаёт новый экземпляр Service; clicks может быть nil
func NewService(repo repository.Repository, c cache.Cache, clicks ClickSink, logger *zap.Logger, opts Options) *Service {
	if opts.ResolutionTTL <= 0 {
		opts.ResolutionTTL = DefaultResolutionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:      repo,
		cache:     c,
		clicks:    clicks,
		generator: NewGenerator(repo, opts.Generator, logger),
		logger:    logger,
		opts:      opts,
	}
}

// ShortURL возвращает полный короткий URL для кода
func (s *Service) ShortURL(code string) string {
	return strings.TrimRight(s.opts.BaseURL, "/") + "/" + code
}

// CreateLink создаёт ссылку или возвращает существующую для того же URL.
// Второе значение true, если ссылка создана этим вызовом.
func (s *Service) CreateLink(ctx context.Context, in models.CreateLinkInput) (*models.Link, bool, error) {
	normalized, err := NormalizeURL(in.OriginalURL)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.FindByOriginalURL(ctx, normalized)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("find by url: %w", err)
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := s.pickCode(ctx, in.CustomAlias)
		if err != nil {
			return nil, false, err
		}

		now := s.opts.Now()
		if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
			return nil, false, models.ErrExpirationInPast
		}

		link := &models.Link{
			Code:        code,
			OriginalURL: normalized,
			CustomAlias: in.CustomAlias,
			OwnerID:     in.OwnerID,
			CreatedAt:   now.UTC(),
			ExpiresAt:   in.ExpiresAt,
			IsActive:    true,
		}
		created, err := s.repo.Create(ctx, link)
		switch {
		case err == nil:
			s.cacheResolution(ctx, created)
			s.logger.Info("Link created", zap.String("code", created.Code), zap.String("original_url", created.OriginalURL))
			return created, true, nil
		case errors.Is(err, repository.ErrURLConflict):
			return s.raceWinner(ctx, normalized)
		case errors.Is(err, repository.ErrCodeConflict):
			s.logger.Warn("Code conflict on create, retrying", zap.String("code", code), zap.Int("attempt", attempt+1))
			continue
		default:
			return nil, false, fmt.Errorf("create link: %w", err)
		}
	}
	return nil, false, models.ErrCreationConflict
}

// pickCode возвращает алиас, если он свободен, иначе генерирует код
func (s *Service) pickCode(ctx context.Context, alias string) (string, error) {
	if alias == "" {
		code, err := s.generator.Next(ctx)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		return code, nil
	}

	if err := ValidateAlias(alias); err != nil {
		return "", err
	}
	taken, err := s.repo.AliasExists(ctx, alias)
	if err != nil {
		return "", fmt.Errorf("check alias: %w", err)
	}
	if !taken {
		// алиас становится кодом, поэтому проверяем и пространство кодов
		taken, err = s.repo.CodeExists(ctx, alias)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
	}
	if taken {
		return "", models.ErrAliasTaken
	}
	return alias, nil
}

// raceWinner возвращает ссылку, созданную конкурентом для того же URL
func (s *Service) raceWinner(ctx context.Context, normalized string) (*models.Link, bool, error) {
	winner, err := s.repo.FindByOriginalURL(ctx, normalized)
	if err == nil {
		return winner, false, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		// победитель успел удалить ссылку
		return nil, false, models.ErrCreationConflict
	}
	return nil, false, fmt.Errorf("find race winner: %w", err)
}

// resolutionTTL не даёт записи в кэше пережить срок действия ссылки
func (s *Service) resolutionTTL(link *models.Link) time.Duration {
	ttl := s.opts.ResolutionTTL
	if link.ExpiresAt != nil {
		if left := link.ExpiresAt.Sub(s.opts.Now()); left < ttl {
			ttl = left
		}
	}
	return ttl
}

func (s *Service) cacheResolution(ctx context.Context, link *models.Link) {
	ttl := s.resolutionTTL(link)
	if ttl <= 0 {
		return
	}
	key := cache.ResolutionKey(link.Code)
	if err := s.cache.Set(ctx, key, link.OriginalURL, ttl); err != nil {
		s.logger.Warn("Failed to write cache", zap.String("key", key), zap.Error(err))
	}
}

// Resolve возвращает исходный URL по коду. Если meta не nil, клик ставится в очередь записи.
func (s *Service) Resolve(ctx context.Context, code string, meta *models.RequestMeta) (string, error) {
	key := cache.ResolutionKey(code)
	originalURL, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to read cache", zap.String("key", key), zap.Error(err))
	}

	if !hit {
		link, err := s.repo.FindByCode(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return "", models.ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("find by code: %w", err)
		}
		switch link.Status(s.opts.Now()) {
		case models.StatusDeactivated:
			return "", models.ErrDeactivated
		case models.StatusExpired:
			return "", models.ErrExpired
		}
		originalURL = link.OriginalURL
		s.cacheResolution(ctx, link)
	}

	if meta != nil && s.clicks != nil {
		req := models.ClickRequest{Code: code, Meta: *meta, OccurredAt: s.opts.Now().UTC()}
		if !s.clicks.Enqueue(req) {
			s.logger.Warn("Click dropped", zap.String("code", code))
		}
	}
	return originalURL, nil
}

// UpdateLink меняет активность или срок действия ссылки и сбрасывает её запись в кэше
func (s *Service) UpdateLink(ctx context.Context, code string, patch models.LinkPatch) (*models.Link, error) {
	if patch.ExpiresAt != nil && !patch.ClearExpiry && !patch.ExpiresAt.After(s.opts.Now()) {
		return nil, models.ErrExpirationInPast
	}
	// счётчики меняет только запись кликов
	patch.ClickDelta = 0
	patch.LastAccessedAt = nil

	link, err := s.repo.Update(ctx, code, patch)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	s.invalidate(ctx, cache.ResolutionKey(code))
	s.logger.Info("Link updated", zap.String("code", code), zap.Bool("is_active", link.IsActive))
	return link, nil
}

// DeleteLink мягко удаляет ссылку; код остаётся занятым
func (s *Service) DeleteLink(ctx context.Context, code string) error {
	deleted, err := s.repo.Delete(ctx, code, s.opts.CascadeClicks)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	if !deleted {
		return models.ErrNotFound
	}
	s.invalidate(ctx, cache.ResolutionKey(code))
	if s.opts.CascadeClicks {
		s.invalidate(ctx, cache.ClickCounterKey(code))
	}
	s.logger.Info("Link deleted", zap.String("code", code), zap.Bool("cascade", s.opts.CascadeClicks))
	return nil
}

func (s *Service) invalidate(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to invalidate cache", zap.String("key", key), zap.Error(err))
	}
}

// Ping проверяет доступность хранилища
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
