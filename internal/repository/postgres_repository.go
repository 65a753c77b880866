package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tempizhere/shortlink/internal/models"
	"go.uber.org/zap"
)

const uniqueViolationCode = "23505"

// Имена ограничений уникальности из миграций
const (
	constraintCode        = "links_code_key"
	constraintAlias       = "links_custom_alias_key"
	constraintOriginalURL = "links_original_url_active_key"
)

const linkColumns = `code, original_url, custom_alias, owner_id, created_at, expires_at,
	is_active, click_count, last_accessed_at, is_deleted`

const clickColumns = `id, code, source_ip, referrer, user_agent, browser, os, form_factor,
	country, region, city, latitude, longitude, occurred_at`

// PostgresRepository реализует интерфейс Repository с использованием PostgreSQL
type PostgresRepository struct {
	db     Database
	logger *zap.Logger
}

// NewPostgresRepository создаёт новый экземпляр PostgresRepository
func NewPostgresRepository(db Database, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		logger: logger,
	}
}

// classifyError переводит нарушение уникальности в ошибки репозитория
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintCode, constraintAlias:
		return ErrCodeConflict
	case constraintOriginalURL:
		return ErrURLConflict
	default:
		return fmt.Errorf("%w: %s", ErrUniqueViolation, pgErr.ConstraintName)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.Link, error) {
	var (
		l            models.Link
		alias, owner sql.NullString
		expires      sql.NullTime
		lastAccessed sql.NullTime
	)
	err := row.Scan(&l.Code, &l.OriginalURL, &alias, &owner, &l.CreatedAt, &expires,
		&l.IsActive, &l.ClickCount, &lastAccessed, &l.DeletedFlag)
	if err != nil {
		return nil, err
	}
	l.CustomAlias = alias.String
	l.OwnerID = owner.String
	if expires.Valid {
		t := expires.Time
		l.ExpiresAt = &t
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		l.LastAccessedAt = &t
	}
	return &l, nil
}

func scanClick(row rowScanner) (models.ClickEvent, error) {
	var (
		ev       models.ClickEvent
		lat, lng sql.NullFloat64
	)
	err := row.Scan(&ev.ID, &ev.Code, &ev.SourceIP, &ev.Referrer, &ev.UserAgentRaw,
		&ev.Device.Browser, &ev.Device.OS, &ev.Device.FormFactor,
		&ev.Geo.Country, &ev.Geo.Region, &ev.Geo.City, &lat, &lng, &ev.OccurredAt)
	if err != nil {
		return ev, err
	}
	if lat.Valid && lng.Valid {
		ev.Geo.Coordinates = &models.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return ev, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg string) (*models.Link, error) {
	query := "SELECT " + linkColumns + " FROM links WHERE " + where + " AND NOT is_deleted"
	l, err := scanLink(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get link from database", zap.String("where", where), zap.String("arg", arg), zap.Error(err))
		return nil, err
	}
	return l, nil
}

// FindByCode возвращает ссылку по коду
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	return r.findOne(ctx, "code = $1", code)
}

// FindByOriginalURL возвращает ссылку по исходному URL
func (r *PostgresRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*models.Link, error) {
	return r.findOne(ctx, "original_url = $1", originalURL)
}

// FindByAlias возвращает ссылку по алиасу
func (r *PostgresRepository) FindByAlias(ctx context.Context, alias string) (*models.Link, error) {
	return r.findOne(ctx, "custom_alias = $1", alias)
}

// Create сохраняет ссылку
func (r *PostgresRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	query := "INSERT INTO links (" + linkColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING " + linkColumns
	created, err := scanLink(r.db.QueryRowContext(ctx, query,
		link.Code, link.OriginalURL, nullString(link.CustomAlias), nullString(link.OwnerID),
		link.CreatedAt, nullTime(link.ExpiresAt), link.IsActive, link.ClickCount,
		nullTime(link.LastAccessedAt), link.DeletedFlag))
	if err != nil {
		classified := classifyError(err)
		if !errors.Is(classified, ErrUniqueViolation) {
			r.logger.Error("Failed to save link to database", zap.String("code", link.Code), zap.Error(err))
		}
		return nil, classified
	}
	return created, nil
}

// Update применяет частичное изменение к ссылке
func (r *PostgresRepository) Update(ctx context.Context, code string, patch models.LinkPatch) (*models.Link, error) {
	query := `UPDATE links SET
		is_active = COALESCE($2, is_active),
		expires_at = CASE WHEN $3 THEN NULL ELSE COALESCE($4, expires_at) END,
		click_count = click_count + $5,
		last_accessed_at = GREATEST(last_accessed_at, $6)
	WHERE code = $1 AND NOT is_deleted
	RETURNING ` + linkColumns
	l, err := scanLink(r.db.QueryRowContext(ctx, query, code,
		nullBool(patch.IsActive), patch.ClearExpiry, nullTime(patch.ExpiresAt),
		patch.ClickDelta, nullTime(patch.LastAccessedAt)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to update link", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	return l, nil
}

// Delete помечает ссылку удалённой и при cascade удаляет её клики
func (r *PostgresRepository) Delete(ctx context.Context, code string, cascade bool) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to start transaction", zap.Error(err))
		return false, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, "UPDATE links SET is_deleted = TRUE WHERE code = $1 AND NOT is_deleted", code)
	if err != nil {
		r.logger.Error("Failed to delete link", zap.String("code", code), zap.Error(err))
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}
	if cascade {
		if _, err := tx.ExecContext(ctx, "DELETE FROM click_events WHERE code = $1", code); err != nil {
			r.logger.Error("Failed to delete click events", zap.String("code", code), zap.Error(err))
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		r.logger.Error("Failed to commit transaction", zap.Error(err))
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// CodeExists проверяет, занят ли код
func (r *PostgresRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS (SELECT 1 FROM links WHERE code = $1)", code)
}

// AliasExists проверяет, занят ли алиас
func (r *PostgresRepository) AliasExists(ctx context.Context, alias string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS (SELECT 1 FROM links WHERE custom_alias = $1)", alias)
}

// clickWhere строит условие выборки кликов по фильтру
func clickWhere(code string, filter models.ClickFilter) (string, []any) {
	conds := []string{"code = $1"}
	args := []any{code}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

// ListClickEvents возвращает клики по убыванию времени
func (r *PostgresRepository) ListClickEvents(ctx context.Context, code string, filter models.ClickFilter) ([]models.ClickEvent, error) {
	where, args := clickWhere(code, filter)
	query := "SELECT " + clickColumns + " FROM click_events WHERE " + where + " ORDER BY occurred_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list click events", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	events := []models.ClickEvent{}
	for rows.Next() {
		ev, err := scanClick(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// AppendClickEvent сохраняет клик
func (r *PostgresRepository) AppendClickEvent(ctx context.Context, event *models.ClickEvent) (*models.ClickEvent, error) {
	ev := *event
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	var lat, lng any
	if ev.Geo.Coordinates != nil {
		lat, lng = ev.Geo.Coordinates.Latitude, ev.Geo.Coordinates.Longitude
	}
	query := "INSERT INTO click_events (" + clickColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)"
	_, err := r.db.ExecContext(ctx, query,
		ev.ID, ev.Code, ev.SourceIP, ev.Referrer, ev.UserAgentRaw,
		ev.Device.Browser, ev.Device.OS, ev.Device.FormFactor,
		ev.Geo.Country, ev.Geo.Region, ev.Geo.City, lat, lng, ev.OccurredAt)
	if err != nil {
		r.logger.Error("Failed to save click event", zap.String("code", ev.Code), zap.Error(err))
		return nil, err
	}
	return &ev, nil
}

// CountClickEvents возвращает число кликов
func (r *PostgresRepository) CountClickEvents(ctx context.Context, code string, filter models.ClickFilter) (int64, error) {
	where, args := clickWhere(code, filter)
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM click_events WHERE "+where, args...).Scan(&n); err != nil {
		r.logger.Error("Failed to count click events", zap.String("code", code), zap.Error(err))
		return 0, err
	}
	return n, nil
}

// Ping проверяет соединение с базой данных
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
