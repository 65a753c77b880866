package models

import "time"

// Unknown подставляется вместо отсутствующих производных полей клика
const Unknown = "Unknown"

// DirectReferrer подставляется вместо пустого referrer
const DirectReferrer = "Direct/None"

// LinkStatus описывает состояние ссылки при разрешении
type LinkStatus int

const (
	StatusResolvable LinkStatus = iota
	StatusDeactivated
	StatusExpired
)

// Link хранит соответствие короткого кода исходному URL
type Link struct {
	Code           string     `json:"code"`
	OriginalURL    string     `json:"original_url"`
	CustomAlias    string     `json:"custom_alias,omitempty"`
	OwnerID        string     `json:"owner_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	ClickCount     int64      `json:"click_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	DeletedFlag    bool       `json:"is_deleted" db:"is_deleted"`
}

// Status возвращает состояние ссылки на момент now
func (l *Link) Status(now time.Time) LinkStatus {
	if !l.IsActive {
		return StatusDeactivated
	}
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return StatusExpired
	}
	return StatusResolvable
}

// Device описывает клиента, полученного из User-Agent
type Device struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	FormFactor string `json:"form_factor"`
}

// Coordinates хранит широту и долготу
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Geo описывает местоположение по IP
type Geo struct {
	Country     string       `json:"country"`
	Region      string       `json:"region"`
	City        string       `json:"city"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// UnknownDevice возвращает Device, заполненный значением Unknown
func UnknownDevice() Device {
	return Device{Browser: Unknown, OS: Unknown, FormFactor: Unknown}
}

// UnknownGeo возвращает Geo, заполненный значением Unknown
func UnknownGeo() Geo {
	return Geo{Country: Unknown, Region: Unknown, City: Unknown}
}

// ClickEvent одно обращение к короткой ссылке
type ClickEvent struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"`
	SourceIP     string    `json:"source_ip"`
	Referrer     string    `json:"referrer"`
	UserAgentRaw string    `json:"user_agent"`
	Device       Device    `json:"device"`
	Geo          Geo       `json:"geo"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RequestMeta метаданные запроса, нужные для записи клика
type RequestMeta struct {
	IP        string `json:"ip"`
	Referrer  string `json:"referrer"`
	UserAgent string `json:"user_agent"`
}

// ClickRequest задание на запись клика
type ClickRequest struct {
	Code       string
	Meta       RequestMeta
	OccurredAt time.Time
}

// CreateLinkInput входные данные для создания ссылки
type CreateLinkInput struct {
	OriginalURL string     `json:"original_url"`
	CustomAlias string     `json:"custom_alias,omitempty"`
	OwnerID     string     `json:"owner_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// LinkPatch частичное изменение ссылки; nil-поля не меняются
type LinkPatch struct {
	IsActive       *bool      `json:"is_active,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ClearExpiry    bool       `json:"clear_expiry,omitempty"`
	ClickDelta     int64      `json:"-"`
	LastAccessedAt *time.Time `json:"-"`
}

// Apply применяет изменение к ссылке
func (p LinkPatch) Apply(l *Link) {
	if p.IsActive != nil {
		l.IsActive = *p.IsActive
	}
	if p.ClearExpiry {
		l.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		l.ExpiresAt = &t
	}
	l.ClickCount += p.ClickDelta
	if p.LastAccessedAt != nil {
		t := *p.LastAccessedAt
		if l.LastAccessedAt == nil || t.After(*l.LastAccessedAt) {
			l.LastAccessedAt = &t
		}
	}
}

// ClickFilter ограничивает выборку кликов; нулевые значения не ограничивают
type ClickFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
	Skip  int
}

// Match проверяет, попадает ли время клика в интервал фильтра
func (f ClickFilter) Match(t time.Time) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && t.After(*f.To) {
		return false
	}
	return true
}

// LinkResponse ответ на создание ссылки
type LinkResponse struct {
	Code        string     `json:"code"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Created     bool       `json:"created"`
}
