/**
 * @description
 * This package provides the RabbitMQ producer and consumer for the service.
 * The producer publishes ledger job envelopes to the job exchange; the
 * consumer binds the ledger event queue and dispatches confirmations to
 * handlers.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/landchain/registry-service/internal/domain"
)

// JobProducer holds the RabbitMQ connection and channel for publishing ledger jobs.
type JobProducer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	routingKey string
}

// Publisher is the interface implemented by types that can publish ledger jobs.
type Publisher interface {
	PublishLedgerJob(ctx context.Context, jobType domain.LedgerJobType, payload map[string]interface{}) (string, error)
	Close()
}

// JobProducerFallback is a minimal publisher used when RabbitMQ is unavailable
// at startup. Every publish fails, which leaves records in their last durable
// status instead of silently dropping jobs.
type JobProducerFallback struct{}

func (p *JobProducerFallback) PublishLedgerJob(ctx context.Context, jobType domain.LedgerJobType, payload map[string]interface{}) (string, error) {
	log.Printf("level=warn component=rabbitmq_producer mode=fallback msg=\"ledger job publish skipped\" job_type=%s", jobType)
	return "", errors.New("rabbitmq unavailable")
}

func (p *JobProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewJobProducer creates and returns a new JobProducer bound to the ledger job
// exchange and routing key.
func NewJobProducer(amqpURL, exchange, routingKey string) (*JobProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &JobProducer{conn: conn, channel: ch, exchange: exchange, routingKey: routingKey}, nil
}

// PublishLedgerJob wraps the payload in a job envelope and publishes it to the
// ledger job exchange. It returns the job's correlation id.
func (p *JobProducer) PublishLedgerJob(ctx context.Context, jobType domain.LedgerJobType, payload map[string]interface{}) (string, error) {
	job := domain.NewLedgerJob(jobType, payload)
	if err := p.publish(ctx, p.exchange, p.routingKey, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// publish sends a message to a specific exchange with a routing key.
func (p *JobProducer) publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	// Ensure the exchange exists (durable topic)
	if err := p.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"exchange declare failed; reopening channel\" exchange=%s err=%v", exchange, err)
		// Attempt simple channel reopen once
		if p.conn != nil {
			if ch, chErr := p.conn.Channel(); chErr == nil {
				p.channel = ch
				if err2 := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err2 != nil {
					return err2
				}
			} else {
				return chErr
			}
		} else {
			return err
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Printf("level=error component=rabbitmq_producer msg=\"json marshal failed\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        jsonBody,
		},
	)
	if err != nil {
		log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" exchange=%s routing_key=%s err=%v", exchange, routingKey, err)
		// One-shot retry: reopen channel and try again
		if p.conn != nil {
			if ch, chErr := p.conn.Channel(); chErr == nil {
				p.channel = ch
				// re-declare exchange and retry
				if exErr := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); exErr == nil {
					err = p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
						ContentType: "application/json",
						Timestamp:   time.Now(),
						Body:        jsonBody,
					})
					if err == nil {
						return nil
					}
				}
			}
		}
		return err
	}
	return nil
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *JobProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
