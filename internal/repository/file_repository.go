package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tempizhere/shortlink/internal/models"
	"go.uber.org/zap"
)

// Типы записей журнала
const (
	opLink   = "link"
	opPatch  = "patch"
	opDelete = "delete"
	opClick  = "click"
)

// patchRecord полная форма LinkPatch для журнала
type patchRecord struct {
	IsActive       *bool      `json:"is_active,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClearExpiry    bool       `json:"clear_expiry,omitempty"`
	ClickDelta     int64      `json:"click_delta,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// journalRecord представляет строку в JSON-файле
type journalRecord struct {
	Op      string             `json:"op"`
	Code    string             `json:"code,omitempty"`
	Link    *models.Link       `json:"link,omitempty"`
	Patch   *patchRecord       `json:"patch,omitempty"`
	Cascade bool               `json:"cascade,omitempty"`
	Click   *models.ClickEvent `json:"click,omitempty"`
}

// FileRepository реализует Repository поверх MemoryRepository, дописывая изменения в журнал
type FileRepository struct {
	mem      *MemoryRepository
	filePath string
	file     *os.File
	logger   *zap.Logger
	writeMu  sync.Mutex
}

// NewFileRepository создаёт новый экземпляр FileRepository и восстанавливает состояние из файла
func NewFileRepository(filePath string, logger *zap.Logger) (*FileRepository, error) {
	repo := &FileRepository{
		mem:      NewMemoryRepository(),
		filePath: filePath,
		logger:   logger,
	}

	// Создаём директорию, если не существует
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}

	if err := repo.replay(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	repo.file = file
	return repo, nil
}

func (r *FileRepository) replay() error {
	file, err := os.Open(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	m := r.mem
	m.mutex.Lock()
	defer m.mutex.Unlock()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec journalRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			// Пропускаем некорректные строки и логируем это
			r.logger.Warn("Skipping invalid JSON line", zap.String("line", string(scanner.Bytes())), zap.Error(err))
			continue
		}
		switch rec.Op {
		case opLink:
			if rec.Link == nil {
				continue
			}
			if _, err := m.createLocked(rec.Link); err != nil {
				r.logger.Warn("Skipping conflicting link record", zap.String("code", rec.Link.Code), zap.Error(err))
			}
		case opPatch:
			if rec.Patch == nil {
				continue
			}
			if _, err := m.updateLocked(rec.Code, rec.Patch.toPatch()); err != nil {
				r.logger.Warn("Skipping patch for unknown link", zap.String("code", rec.Code))
			}
		case opDelete:
			m.deleteLocked(rec.Code, rec.Cascade)
		case opClick:
			if rec.Click != nil {
				m.appendLocked(rec.Click)
			}
		default:
			r.logger.Warn("Skipping unknown journal record", zap.String("op", rec.Op))
		}
	}
	return scanner.Err()
}

func (p *patchRecord) toPatch() models.LinkPatch {
	return models.LinkPatch{
		IsActive:       p.IsActive,
		ExpiresAt:      p.ExpiresAt,
		ClearExpiry:    p.ClearExpiry,
		ClickDelta:     p.ClickDelta,
		LastAccessedAt: p.LastAccessedAt,
	}
}

// append дописывает запись в журнал; вызывается под writeMu
func (r *FileRepository) append(rec journalRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := r.file.Write(data); err != nil {
		r.logger.Error("Failed to write journal record", zap.String("op", rec.Op), zap.Error(err))
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}

// FindByCode возвращает ссылку по коду
func (r *FileRepository) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	return r.mem.FindByCode(ctx, code)
}

// FindByOriginalURL возвращает ссылку по исходному URL
func (r *FileRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error) {
	return r.mem.FindByOriginalURL(ctx, originalURL)
}

// FindByAlias возвращает ссылку по алиасу
func (r *FileRepository) FindByAlias(ctx context.Context, alias string) (*models.Link, error) {
	return r.mem.FindByAlias(ctx, alias)
}

// Create фиксирует ссылку в журнале и только затем сохраняет её в памяти
func (r *FileRepository) Create(_ context.Context, link *models.Link) (*models.Link, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	m := r.mem
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.checkCreateLocked(link); err != nil {
		return nil, err
	}
	if err := r.append(journalRecord{Op: opLink, Link: link}); err != nil {
		return nil, err
	}
	return m.createLocked(link)
}

// Update фиксирует изменение в журнале и применяет его к ссылке
func (r *FileRepository) Update(_ context.Context, code string, patch models.LinkPatch) (*models.Link, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	m := r.mem
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.liveLocked(code); !ok {
		return nil, ErrNotFound
	}
	rec := journalRecord{Op: opPatch, Code: code, Patch: &patchRecord{
		IsActive:       patch.IsActive,
		ExpiresAt:      patch.ExpiresAt,
		ClearExpiry:    patch.ClearExpiry,
		ClickDelta:     patch.ClickDelta,
		LastAccessedAt: patch.LastAccessedAt,
	}}
	if err := r.append(rec); err != nil {
		return nil, err
	}
	return m.updateLocked(code, patch)
}

// Delete помечает ссылку удалённой
func (r *FileRepository) Delete(_ context.Context, code string, cascade bool) (bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	m := r.mem
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.liveLocked(code); !ok {
		return false, nil
	}
	if err := r.append(journalRecord{Op: opDelete, Code: code, Cascade: cascade}); err != nil {
		return false, err
	}
	return m.deleteLocked(code, cascade), nil
}

// CodeExists проверяет, занят ли код
func (r *FileRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	return r.mem.CodeExists(ctx, code)
}

// AliasExists проверяет, занят ли алиас
func (r *FileRepository) AliasExists(ctx context.Context, alias string) (bool, error) {
	return r.mem.AliasExists(ctx, alias)
}

// ListClickEvents возвращает клики ссылки
func (r *FileRepository) ListClickEvents(ctx context.Context, code string, filter models.ClickFilter) ([]models.ClickEvent, error) {
	return r.mem.ListClickEvents(ctx, code, filter)
}

// AppendClickEvent сохраняет клик
func (r *FileRepository) AppendClickEvent(_ context.Context, event *models.ClickEvent) (*models.ClickEvent, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	m := r.mem
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// id назначается до записи, чтобы журнал и память совпадали
	ev := *event
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if err := r.append(journalRecord{Op: opClick, Click: &ev}); err != nil {
		return nil, err
	}
	return m.appendLocked(&ev), nil
}

// CountClickEvents возвращает число кликов
func (r *FileRepository) CountClickEvents(ctx context.Context, code string, filter models.ClickFilter) (int64, error) {
	return r.mem.CountClickEvents(ctx, code, filter)
}

// Ping проверяет, что файл журнала открыт
func (r *FileRepository) Ping(context.Context) error {
	if _, err := r.file.Stat(); err != nil {
		return err
	}
	return nil
}

// Close закрывает файл журнала
func (r *FileRepository) Close() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.file.Close()
}
