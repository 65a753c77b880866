// Package proto содержит сообщения и описание gRPC сервиса коротких ссылок
package proto

import (
	"time"

	"github.com/tempizhere/shortlink/internal/analytics"
	"github.com/tempizhere/shortlink/internal/models"
)

// CreateLinkRequest запрос на создание ссылки
type CreateLinkRequest struct {
	URL       string     `json:"url"`
	Alias     string     `json:"alias,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateLinkResponse созданная или найденная ссылка
type CreateLinkResponse struct {
	Link models.LinkResponse `json:"link"`
}

// ResolveRequest запрос на разрешение кода; Track включает запись клика
type ResolveRequest struct {
	Code      string `json:"code"`
	Referrer  string `json:"referrer,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Track     bool   `json:"track,omitempty"`
}

// ResolveResponse исходный URL
type ResolveResponse struct {
	OriginalURL string `json:"original_url"`
}

// GetAnalyticsRequest запрос отчёта аналитики
type GetAnalyticsRequest struct {
	Code     string     `json:"code"`
	View     string     `json:"view"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Interval string     `json:"interval,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Skip     int        `json:"skip,omitempty"`
}

// GetAnalyticsResponse отчёт аналитики
type GetAnalyticsResponse struct {
	Result *analytics.Result `json:"result"`
}

// UpdateLinkRequest изменение активности или срока действия ссылки
type UpdateLinkRequest struct {
	Code  string           `json:"code"`
	Patch models.LinkPatch `json:"patch"`
}

// UpdateLinkResponse ссылка после изменения
type UpdateLinkResponse struct {
	Link *models.Link `json:"link"`
}

// DeleteLinkRequest запрос на удаление ссылки
type DeleteLinkRequest struct {
	Code string `json:"code"`
}

// DeleteLinkResponse пустой ответ на удаление
type DeleteLinkResponse struct{}

// PingRequest запрос проверки состояния
type PingRequest struct{}

// PingResponse состояние хранилища
type PingResponse struct {
	StorageAvailable bool `json:"storage_available"`
}
