package repository

//go:generate mockgen -destination=../mocks/mock_repository.go -package=mocks github.com/tempizhere/shortlink/internal/repository Repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tempizhere/shortlink/internal/models"
)

var (
	// ErrNotFound возвращается, когда ссылки нет или она удалена
	ErrNotFound = errors.New("record not found")
	// ErrUniqueViolation нарушение ограничения уникальности
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrCodeConflict код или алиас уже заняты
	ErrCodeConflict = fmt.Errorf("code conflict: %w", ErrUniqueViolation)
	// ErrURLConflict для original_url уже есть неудалённая ссылка
	ErrURLConflict = fmt.Errorf("original url conflict: %w", ErrUniqueViolation)
)

// Repository определяет интерфейс хранилища ссылок и кликов
type Repository interface {
	// FindByCode возвращает неудалённую ссылку по коду или ErrNotFound
	FindByCode(ctx context.Context, code string) (*models.Link, error)
	// FindByOriginalURL возвращает неудалённую ссылку по нормализованному URL или ErrNotFound
	FindByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error)
	// FindByAlias возвращает неудалённую ссылку по алиасу или ErrNotFound
	FindByAlias(ctx context.Context, alias string) (*models.Link, error)
	// Create сохраняет ссылку; при конфликте возвращает ErrCodeConflict или ErrURLConflict
	Create(ctx context.Context, link *models.Link) (*models.Link, error)
	// Update применяет частичное изменение или возвращает ErrNotFound
	Update(ctx context.Context, code string, patch models.LinkPatch) (*models.Link, error)
	// Delete помечает ссылку удалённой; cascade удаляет её клики
	Delete(ctx context.Context, code string, cascade bool) (bool, error)
	// CodeExists учитывает и удалённые ссылки: код не переиспользуется
	CodeExists(ctx context.Context, code string) (bool, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
	// ListClickEvents возвращает клики по убыванию времени
	ListClickEvents(ctx context.Context, code string, filter models.ClickFilter) ([]models.ClickEvent, error)
	AppendClickEvent(ctx context.Context, event *models.ClickEvent) (*models.ClickEvent, error)
	CountClickEvents(ctx context.Context, code string, filter models.ClickFilter) (int64, error)
	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error
}

// Database определяет интерфейс для работы с базой данных; реализуется *sql.DB
type Database interface {
	PingContext(ctx context.Context) error
	Close() error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// page применяет skip/limit к уже отсортированному срезу
func page(events []models.ClickEvent, skip, limit int) []models.ClickEvent {
	if skip >= len(events) {
		return []models.ClickEvent{}
	}
	if skip > 0 {
		events = events[skip:]
	}
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events
}
