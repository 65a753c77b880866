// Package device определяет браузер, ОС и тип устройства по User-Agent.
package device

import (
	"strings"

	"github.com/mssola/useragent"
	"github.com/tempizhere/shortlink/internal/models"
)

// Типы устройств
const (
	Desktop = "Desktop"
	Mobile  = "Mobile"
	Tablet  = "Tablet"
	Bot     = "Bot"
)

// Parse разбирает строку User-Agent; неизвестные части заменяются на models.Unknown
func Parse(raw string) models.Device {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.UnknownDevice()
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	d := models.Device{
		Browser:    orUnknown(browser),
		OS:         orUnknown(ua.OSInfo().Name),
		FormFactor: formFactor(ua, raw),
	}
	return d
}

func formFactor(ua *useragent.UserAgent, raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case ua.Bot():
		return Bot
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"),
		strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"):
		return Tablet
	case ua.Mobile():
		return Mobile
	case ua.Mozilla() != "":
		return Desktop
	default:
		return models.Unknown
	}
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}
