package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tempizhere/shortlink/internal/models"
)

// MemoryRepository реализует Repository в памяти
type MemoryRepository struct {
	mutex   sync.RWMutex
	links   map[string]*models.Link // code -> link, включая удалённые
	byURL   map[string]string       // original_url -> code, только неудалённые
	byAlias map[string]string       // custom_alias -> code
	clicks  map[string][]models.ClickEvent
}

// NewMemoryRepository создаёт новый экземпляр MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		links:   make(map[string]*models.Link),
		byURL:   make(map[string]string),
		byAlias: make(map[string]string),
		clicks:  make(map[string][]models.ClickEvent),
	}
}

func cloneLink(l *models.Link) *models.Link {
	c := *l
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		c.ExpiresAt = &t
	}
	if l.LastAccessedAt != nil {
		t := *l.LastAccessedAt
		c.LastAccessedAt = &t
	}
	return &c
}

// FindByCode возвращает ссылку по коду
func (r *MemoryRepository) FindByCode(_ context.Context, code string) (*models.Link, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	l, ok := r.links[code]
	if !ok || l.DeletedFlag {
		return nil, ErrNotFound
	}
	return cloneLink(l), nil
}

// FindByOriginalURL возвращает ссылку по исходному URL
func (r *MemoryRepository) FindByOriginalURL(_ context.Context, originalURL string) (*models.Link, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	code, ok := r.byURL[originalURL]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneLink(r.links[code]), nil
}

// FindByAlias возвращает ссылку по алиасу
func (r *MemoryRepository) FindByAlias(_ context.Context, alias string) (*models.Link, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	code, ok := r.byAlias[alias]
	if !ok || r.links[code].DeletedFlag {
		return nil, ErrNotFound
	}
	return cloneLink(r.links[code]), nil
}

// Create сохраняет новую ссылку
func (r *MemoryRepository) Create(_ context.Context, link *models.Link) (*models.Link, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.createLocked(link)
}

// checkCreateLocked проверяет уникальность кода, алиаса и URL без изменения состояния
func (r *MemoryRepository) checkCreateLocked(link *models.Link) error {
	if _, exists := r.links[link.Code]; exists {
		return ErrCodeConflict
	}
	if link.CustomAlias != "" {
		if _, exists := r.byAlias[link.CustomAlias]; exists {
			return ErrCodeConflict
		}
	}
	if !link.DeletedFlag {
		if _, exists := r.byURL[link.OriginalURL]; exists {
			return ErrURLConflict
		}
	}
	return nil
}

func (r *MemoryRepository) createLocked(link *models.Link) (*models.Link, error) {
	if err := r.checkCreateLocked(link); err != nil {
		return nil, err
	}

	stored := cloneLink(link)
	r.links[stored.Code] = stored
	if !stored.DeletedFlag {
		r.byURL[stored.OriginalURL] = stored.Code
	}
	if stored.CustomAlias != "" {
		r.byAlias[stored.CustomAlias] = stored.Code
	}
	return cloneLink(stored), nil
}

// Update применяет частичное изменение к ссылке
func (r *MemoryRepository) Update(_ context.Context, code string, patch models.LinkPatch) (*models.Link, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.updateLocked(code, patch)
}

// liveLocked возвращает неудалённую ссылку без копирования
func (r *MemoryRepository) liveLocked(code string) (*models.Link, bool) {
	l, ok := r.links[code]
	if !ok || l.DeletedFlag {
		return nil, false
	}
	return l, true
}

func (r *MemoryRepository) updateLocked(code string, patch models.LinkPatch) (*models.Link, error) {
	l, ok := r.liveLocked(code)
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(l)
	return cloneLink(l), nil
}

// Delete помечает ссылку удалённой
func (r *MemoryRepository) Delete(_ context.Context, code string, cascade bool) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.deleteLocked(code, cascade), nil
}

func (r *MemoryRepository) deleteLocked(code string, cascade bool) bool {
	l, ok := r.liveLocked(code)
	if !ok {
		return false
	}
	l.DeletedFlag = true
	delete(r.byURL, l.OriginalURL)
	if cascade {
		delete(r.clicks, code)
	}
	return true
}

// CodeExists проверяет, занят ли код
func (r *MemoryRepository) CodeExists(_ context.Context, code string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.links[code]
	return ok, nil
}

// AliasExists проверяет, занят ли алиас
func (r *MemoryRepository) AliasExists(_ context.Context, alias string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.byAlias[alias]
	return ok, nil
}

// ListClickEvents возвращает клики ссылки по убыванию времени
func (r *MemoryRepository) ListClickEvents(_ context.Context, code string, filter models.ClickFilter) ([]models.ClickEvent, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []models.ClickEvent
	for _, ev := range r.clicks[code] {
		if filter.Match(ev.OccurredAt) {
			result = append(result, ev)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})
	return page(result, filter.Skip, filter.Limit), nil
}

// AppendClickEvent сохраняет клик
func (r *MemoryRepository) AppendClickEvent(_ context.Context, event *models.ClickEvent) (*models.ClickEvent, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.appendLocked(event), nil
}

func (r *MemoryRepository) appendLocked(event *models.ClickEvent) *models.ClickEvent {
	ev := *event
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	r.clicks[ev.Code] = append(r.clicks[ev.Code], ev)
	return &ev
}

// CountClickEvents возвращает число кликов в интервале фильтра
func (r *MemoryRepository) CountClickEvents(_ context.Context, code string, filter models.ClickFilter) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var n int64
	for _, ev := range r.clicks[code] {
		if filter.Match(ev.OccurredAt) {
			n++
		}
	}
	return n, nil
}

// Ping всегда успешен
func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

// Clear очищает все данные в хранилище
func (r *MemoryRepository) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.links = make(map[string]*models.Link)
	r.byURL = make(map[string]string)
	r.byAlias = make(map[string]string)
	r.clicks = make(map[string][]models.ClickEvent)
}
