package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject - subject, в который публикуются уведомления.
const DefaultSubject = "tipping.notifications"

// NATS публикует уведомления в NATS для сервиса уведомлений.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS подключается к серверу NATS.
func NewNATS(url, subject string) (*NATS, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url, nats.Name("tipping-service"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATS{conn: conn, subject: subject}, nil
}

func (n *NATS) CreateNotification(ctx context.Context, notification Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: n.subject,
		Data:    data,
		Header:  nats.Header{"Notification-Type": []string{string(notification.Type)}},
	}
	return n.conn.PublishMsg(msg)
}

// Close отправляет буферизованные сообщения и закрывает соединение.
func (n *NATS) Close() error {
	return n.conn.Drain()
}
