// Package geo определяет местоположение клиента по IP.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tempizhere/shortlink/internal/models"
	"go.uber.org/zap"
)

// Параметры по умолчанию
const (
	DefaultMemoTTL = time.Hour
	DefaultTimeout = 2 * time.Second
)

// Resolver определяет местоположение по IP; при любой ошибке возвращает models.UnknownGeo
type Resolver interface {
	Lookup(ctx context.Context, ip string) models.Geo
}

// NopResolver всегда возвращает models.UnknownGeo
type NopResolver struct{}

// Lookup реализует Resolver
func (NopResolver) Lookup(context.Context, string) models.Geo {
	return models.UnknownGeo()
}

// ipwhoResponse ответ сервиса, совместимого с ipwho.is
type ipwhoResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Country   string   `json:"country"`
	Region    string   `json:"region"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// IPWhoResolver запрашивает HTTP-сервис и запоминает ответы на memoTTL
type IPWhoResolver struct {
	baseURL string
	client  *http.Client
	memo    *gocache.Cache
	logger  *zap.Logger
}

// NewIPWhoResolver создаёт новый экземпляр IPWhoResolver; client может быть nil
func NewIPWhoResolver(baseURL string, client *http.Client, memoTTL time.Duration, logger *zap.Logger) *IPWhoResolver {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if memoTTL <= 0 {
		memoTTL = DefaultMemoTTL
	}
	return &IPWhoResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		memo:    gocache.New(memoTTL, 2*memoTTL),
		logger:  logger,
	}
}

// Lookup реализует Resolver
func (r *IPWhoResolver) Lookup(ctx context.Context, ip string) models.Geo {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return models.UnknownGeo()
	}
	key := addr.String()
	if v, ok := r.memo.Get(key); ok {
		return v.(models.Geo)
	}

	g, err := r.fetch(ctx, key)
	if err != nil {
		r.logger.Warn("Geo lookup failed", zap.String("ip", key), zap.Error(err))
		return models.UnknownGeo()
	}
	r.memo.SetDefault(key, g)
	return g
}

func (r *IPWhoResolver) fetch(ctx context.Context, ip string) (models.Geo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+url.PathEscape(ip), nil)
	if err != nil {
		return models.Geo{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return models.Geo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Geo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body ipwhoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Geo{}, fmt.Errorf("decode response: %w", err)
	}
	if !body.Success {
		return models.Geo{}, fmt.Errorf("lookup rejected: %s", body.Message)
	}

	g := models.Geo{
		Country: orUnknown(body.Country),
		Region:  orUnknown(body.Region),
		City:    orUnknown(body.City),
	}
	if body.Latitude != nil && body.Longitude != nil {
		g.Coordinates = &models.Coordinates{Latitude: *body.Latitude, Longitude: *body.Longitude}
	}
	return g, nil
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}
