// Package events публикует записанные клики в NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tempizhere/shortlink/internal/models"
	"go.uber.org/zap"
)

// SubjectPrefix префикс темы; полная тема clicks.<code>
const SubjectPrefix = "clicks."

// Subject возвращает тему для кликов по коду
func Subject(code string) string {
	return SubjectPrefix + code
}

// Publisher отправляет клики во внешний поток
type Publisher interface {
	Publish(ctx context.Context, event *models.ClickEvent) error
}

// NATSPublisher публикует клики в core NATS без подтверждения доставки
type NATSPublisher struct {
	conn *nats.Conn
}

// Connect подключается к NATS с бесконечным переподключением
func Connect(url string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("shortlink"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(conn), nil
}

// NewNATSPublisher создаёт новый экземпляр NATSPublisher
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// Publish реализует Publisher
func (p *NATSPublisher) Publish(_ context.Context, event *models.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode click: %w", err)
	}
	if err := p.conn.Publish(Subject(event.Code), data); err != nil {
		return fmt.Errorf("publish click: %w", err)
	}
	return nil
}

// Close сбрасывает буфер и закрывает соединение
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
