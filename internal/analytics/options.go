package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tempizhere/shortlink/internal/models"
)

// Interval шаг временного ряда
type Interval string

const (
	IntervalDay  Interval = "day"
	IntervalHour Interval = "hour"
)

// Ограничения и значения по умолчанию
const (
	DefaultClicksLimit = 50
	DefaultGroupLimit  = 10
	MaxLimit           = 1000
	MaxBuckets         = 2000
	DefaultBuckets     = 14
)

// Options параметры запроса аналитики
type Options struct {
	From     *time.Time
	To       *time.Time
	Interval Interval
	Limit    int
	Skip     int
}

func (i Interval) step() time.Duration {
	if i == IntervalHour {
		return time.Hour
	}
	return 24 * time.Hour
}

// normalize проверяет параметры и заполняет значения по умолчанию.
// Параметры, не влияющие на отчёт, обнуляются, чтобы не дробить ключ кэша.
func (o Options) normalize(v View) (Options, error) {
	if o.Limit < 0 || o.Skip < 0 {
		return o, fmt.Errorf("%w: negative limit or skip", models.ErrInvalidAnalyticsOptions)
	}
	if o.From != nil && o.To != nil && o.From.After(*o.To) {
		return o, fmt.Errorf("%w: from is after to", models.ErrInvalidAnalyticsOptions)
	}
	switch o.Interval {
	case "":
		o.Interval = IntervalDay
	case IntervalDay, IntervalHour:
	default:
		return o, fmt.Errorf("%w: unknown interval %q", models.ErrInvalidAnalyticsOptions, o.Interval)
	}
	if o.From != nil {
		t := o.From.UTC()
		o.From = &t
	}
	if o.To != nil {
		t := o.To.UTC()
		o.To = &t
	}

	switch {
	case v == ViewClicks:
		o.Limit = clampLimit(o.Limit, DefaultClicksLimit)
		o.Interval = ""
	case v.grouped():
		o.Limit = clampLimit(o.Limit, DefaultGroupLimit)
		o.Interval = ""
	case v == ViewTimeSeries:
		o.Limit, o.Skip = 0, 0
	case v == ViewSummary:
		o.Limit, o.Skip = 0, 0
	default:
		return o, fmt.Errorf("%w: unknown view %d", models.ErrInvalidAnalyticsOptions, int(v))
	}
	return o, nil
}

func clampLimit(limit, def int) int {
	if limit == 0 {
		return def
	}
	return min(limit, MaxLimit)
}

// Fingerprint детерминированный отпечаток нормализованных параметров
func (o Options) Fingerprint() string {
	parts := []string{
		formatTime(o.From),
		formatTime(o.To),
		string(o.Interval),
		strconv.Itoa(o.Limit),
		strconv.Itoa(o.Skip),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (o Options) filter() models.ClickFilter {
	return models.ClickFilter{From: o.From, To: o.To}
}
