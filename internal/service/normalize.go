package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/tempizhere/shortlink/internal/models"
)

var schemePrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// NormalizeURL приводит URL к каноническому виду: добавляет https://, если схемы нет,
// проверяет, что это абсолютный http(s) URL, и убирает завершающий слэш пути.
// Повторная нормализация результат не меняет.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", models.ErrInvalidURL)
	}
	if !schemePrefix.MatchString(s) {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: not absolute", models.ErrInvalidURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", models.ErrInvalidURL, u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)

	// Серия завершающих слэшей считается одним слэшем; закодированный %2F слэшем не является
	if escaped := u.EscapedPath(); strings.HasSuffix(escaped, "/") {
		trimmed := strings.TrimRight(escaped, "/")
		path, err := url.PathUnescape(trimmed)
		if err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrInvalidURL, err)
		}
		u.Path, u.RawPath = path, trimmed
	}
	return u.String(), nil
}
