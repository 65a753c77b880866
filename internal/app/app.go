// Package app содержит HTTP-обработчики сервиса коротких ссылок.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tempizhere/shortlink/internal/analytics"
	"github.com/tempizhere/shortlink/internal/auth"
	"github.com/tempizhere/shortlink/internal/middleware"
	"github.com/tempizhere/shortlink/internal/models"
	"github.com/tempizhere/shortlink/internal/service"
	"go.uber.org/zap"
)

// Создаём структуры для JSON
type CreateLinkRequest struct {
	URL       string     `json:"url"`
	Alias     string     `json:"alias,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
}

// Analytics получает представления аналитики по ссылке
type Analytics interface {
	Get(ctx context.Context, code string, v analytics.View, opts analytics.Options) (*analytics.Result, error)
}

// App содержит хендлеры и зависимости
type App struct {
	svc       *service.Service
	analytics Analytics
	logger    *zap.Logger
}

// NewApp создаёт новое приложение
func NewApp(svc *service.Service, a Analytics, logger *zap.Logger) *App {
	return &App{svc: svc, analytics: a, logger: logger}
}

// RouterOptions параметры маршрутизатора
type RouterOptions struct {
	Verifier      *auth.Verifier
	TrustedSubnet string
}

// Router собирает маршруты и middleware
func (a *App) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(a.logger))

	r.Get("/ping", a.HandlePing)
	r.Get("/{code}", a.HandleRedirect)

	r.Route("/api/links", func(r chi.Router) {
		r.Use(middleware.Gzip)
		if opts.Verifier != nil {
			r.Use(middleware.Owner(opts.Verifier, a.logger))
		}
		r.Post("/", a.HandleCreateLink)
		r.Get("/{code}/analytics/{view}", a.HandleAnalytics)

		r.Group(func(r chi.Router) {
			r.Use(middleware.TrustedSubnet(opts.TrustedSubnet, a.logger))
			r.Patch("/{code}", a.HandleUpdateLink)
			r.Delete("/{code}", a.HandleDeleteLink)
		})
	})
	return r
}

// HandleCreateLink обрабатывает POST-запросы на "/api/links"
func (a *App) HandleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ownerID, _ := middleware.OwnerID(r.Context())
	link, created, err := a.svc.CreateLink(r.Context(), models.CreateLinkInput{
		OriginalURL: req.URL,
		CustomAlias: req.Alias,
		OwnerID:     ownerID,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	a.writeJSONResponse(w, status, models.LinkResponse{
		Code:        link.Code,
		ShortURL:    a.svc.ShortURL(link.Code),
		OriginalURL: link.OriginalURL,
		ExpiresAt:   link.ExpiresAt,
		Created:     created,
	})
}

// HandleRedirect обрабатывает GET-запросы на "/{code}"
func (a *App) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	meta := &models.RequestMeta{
		IP:        middleware.ClientIP(r),
		Referrer:  r.Referer(),
		UserAgent: r.UserAgent(),
	}
	originalURL, err := a.svc.Resolve(r.Context(), code, meta)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, originalURL, http.StatusTemporaryRedirect)
}

// HandleAnalytics обрабатывает GET-запросы на "/api/links/{code}/analytics/{view}"
func (a *App) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	view, err := analytics.ParseView(chi.URLParam(r, "view"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	opts, err := parseAnalyticsOptions(r)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	res, err := a.analytics.Get(r.Context(), chi.URLParam(r, "code"), view, opts)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, res)
}

// HandleUpdateLink обрабатывает PATCH-запросы на "/api/links/{code}"
func (a *App) HandleUpdateLink(w http.ResponseWriter, r *http.Request) {
	var patch models.LinkPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		a.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	link, err := a.svc.UpdateLink(r.Context(), chi.URLParam(r, "code"), patch)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.writeJSONResponse(w, http.StatusOK, link)
}

// HandleDeleteLink обрабатывает DELETE-запросы на "/api/links/{code}"
func (a *App) HandleDeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.DeleteLink(r.Context(), chi.URLParam(r, "code")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePing обрабатывает GET-запросы на "/ping"
func (a *App) HandlePing(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Ping(r.Context()); err != nil {
		a.logger.Error("Storage ping failed", zap.Error(err))
		http.Error(w, "Storage unavailable", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// parseAnalyticsOptions читает from, to, interval, limit и skip из строки запроса
func parseAnalyticsOptions(r *http.Request) (analytics.Options, error) {
	q := r.URL.Query()
	var opts analytics.Options

	for name, dst := range map[string]**time.Time{"from": &opts.From, "to": &opts.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, fmt.Errorf("%w: %s must be RFC3339", models.ErrInvalidAnalyticsOptions, name)
		}
		*dst = &t
	}

	for name, dst := range map[string]*int{"limit": &opts.Limit, "skip": &opts.Skip} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: %s must be an integer", models.ErrInvalidAnalyticsOptions, name)
		}
		*dst = n
	}

	opts.Interval = analytics.Interval(q.Get("interval"))
	return opts, nil
}

// statusFor сопоставляет доменные ошибки HTTP-статусам
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidURL),
		errors.Is(err, models.ErrInvalidAliasFormat),
		errors.Is(err, models.ErrExpirationInPast),
		errors.Is(err, models.ErrInvalidAnalyticsOptions):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAliasTaken), errors.Is(err, models.ErrCreationConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDeactivated), errors.Is(err, models.ErrExpired):
		return http.StatusGone
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		a.logger.Error("Request failed", zap.String("uri", r.RequestURI), zap.Error(err))
		a.writeError(w, status, http.StatusText(status))
		return
	}
	a.writeError(w, status, err.Error())
}

func (a *App) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSONResponse(w, status, ErrorResponse{Error: msg})
}

// writeJSONResponse пишет JSON-ответ с проверкой ошибок
func (a *App) writeJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		a.logger.Error("Failed to encode JSON", zap.Error(err))
		http.Error(w, "Failed to encode JSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		a.logger.Warn("Failed to write response", zap.Error(err))
	}
}
