package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitOpts struct {
	URL     string
	Durable bool
}

// Rabbit 单连接单 channel；amqp channel 不是并发安全的，发布时加锁
type Rabbit struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	durable  bool
	declared map[string]bool
}

func NewRabbit(o RabbitOpts) (*Rabbit, error) {
	if strings.TrimSpace(o.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.Dial(o.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Rabbit{conn: conn, ch: ch, durable: o.Durable, declared: map[string]bool{}}, nil
}

func (r *Rabbit) Publish(ctx context.Context, queue string, body []byte, headers map[string]string) error {
	if strings.TrimSpace(queue) == "" {
		return errors.New("rabbitmq queue is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.declared[queue] {
		if _, err := r.ch.QueueDeclare(queue, r.durable, false, false, false, nil); err != nil {
			return err
		}
		r.declared[queue] = true
	}

	tbl := amqp.Table{}
	for k, v := range headers {
		tbl[k] = v
	}
	mode := amqp.Transient
	if r.durable {
		mode = amqp.Persistent
	}
	return r.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		DeliveryMode: mode,
		Headers:      tbl,
		Body:         body,
	})
}

func (r *Rabbit) Close() error {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
