// Package queue публикует доменные события в RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// notificationsQueue — очередь событий для административной панели.
const notificationsQueue = "admin.notifications"

// Publisher отправляет события уведомлений в брокер. Соединение открывается
// на каждую публикацию: поток событий редкий, а упавший брокер не должен
// держать сервис на мёртвом соединении.
type Publisher struct {
	url string
}

// NewPublisher создаёт издателя для указанного адреса брокера.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// Publish сериализует событие в JSON и кладёт его в очередь уведомлений.
// Сообщения персистентные, очередь durable. Ошибка возвращается вызывающему,
// который сам решает, прерывать ли основной поток.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.url == "" {
		return fmt.Errorf("amqp publisher not configured")
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(notificationsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", notificationsQueue, false, false, pub); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}
