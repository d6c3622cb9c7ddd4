// internal/queue/rabbit.go
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// Broker announces queued jobs to push-mode workers over RabbitMQ. Messages
// carry only the job token; the store holds the payload and is the authority
// on job state, so a redelivered or stale announcement is harmless.
type Broker struct {
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
}

func NewBroker(url, queueName string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &Broker{conn: conn, ch: ch, queueName: queueName}, nil
}

func (b *Broker) Close() {
	b.ch.Close()
	b.conn.Close()
}

type tokenMessage struct {
	JobToken string `json:"job_token"`
}

// PublishTokens announces each job to the worker queue.
func (b *Broker) PublishTokens(tokens []string) error {
	for _, token := range tokens {
		body, err := json.Marshal(tokenMessage{JobToken: token})
		if err != nil {
			return err
		}
		err = b.ch.Publish(
			"",          // exchange
			b.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				DeliveryMode: amqp.Persistent,
				ContentType:  "application/json",
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish job %s: %w", token, err)
		}
	}
	return nil
}

// Consume registers a manual-ack consumer with the given prefetch, which
// bounds the number of unacknowledged deliveries per worker process.
func (b *Broker) Consume(prefetch int) (<-chan amqp.Delivery, error) {
	if err := b.ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return b.ch.Consume(
		b.queueName,
		"",    // consumer tag
		false, // autoAck off for at-least-once
		false,
		false,
		false,
		nil,
	)
}

// DecodeToken extracts the job token from a broker message body.
func DecodeToken(body []byte) (string, error) {
	var msg tokenMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return "", fmt.Errorf("decode job message: %w", err)
	}
	if msg.JobToken == "" {
		return "", fmt.Errorf("job message missing token")
	}
	return msg.JobToken, nil
}
