// Package analytics считает статистику кликов по короткой ссылке
// и мемоизирует результаты в кэше по отпечатку параметров запроса.
package analytics

import (
	"fmt"

	"github.com/tempizhere/shortlink/internal/models"
)

// View вид аналитического отчёта
type View int

const (
	ViewSummary View = iota
	ViewClicks
	ViewReferrers
	ViewBrowsers
	ViewDevices
	ViewOS
	ViewLocations
	ViewTimeSeries
)

var viewNames = map[View]string{
	ViewSummary:    "summary",
	ViewClicks:     "clicks",
	ViewReferrers:  "referrers",
	ViewBrowsers:   "browsers",
	ViewDevices:    "devices",
	ViewOS:         "os",
	ViewLocations:  "locations",
	ViewTimeSeries: "timeSeries",
}

func (v View) String() string {
	if name, ok := viewNames[v]; ok {
		return name
	}
	return fmt.Sprintf("View(%d)", int(v))
}

// ParseView возвращает View по имени из запроса
func ParseView(name string) (View, error) {
	for v, n := range viewNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown view %q", models.ErrInvalidAnalyticsOptions, name)
}

// grouped возвращает true для отчётов с группировкой по полю клика
func (v View) grouped() bool {
	_, ok := dimensions[v]
	return ok
}

// dimension извлекает из клика значение для группировки
type dimension func(ev *models.ClickEvent) string

var dimensions = map[View]dimension{
	ViewReferrers: func(ev *models.ClickEvent) string {
		if ev.Referrer == "" {
			return models.DirectReferrer
		}
		return ev.Referrer
	},
	ViewBrowsers: func(ev *models.ClickEvent) string { return orUnknown(ev.Device.Browser) },
	ViewDevices:  func(ev *models.ClickEvent) string { return orUnknown(ev.Device.FormFactor) },
	ViewOS:       func(ev *models.ClickEvent) string { return orUnknown(ev.Device.OS) },
	ViewLocations: func(ev *models.ClickEvent) string {
		return orUnknown(ev.Geo.City) + ", " + orUnknown(ev.Geo.Country)
	},
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}
	return s
}
