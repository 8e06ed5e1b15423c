package mq

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "events"
)

// dialMaxElapsed bounds how long NewConnection keeps retrying; the broker
// often comes up after the app in docker-compose setups.
var dialMaxElapsed = 30 * time.Second

// NewConnection creates a new RabbitMQ connection, retrying with exponential backoff.
func NewConnection(url string) (*amqp091.Connection, error) {
	var conn *amqp091.Connection
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = dialMaxElapsed

	err := backoff.Retry(func() error {
		c, err := amqp091.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, b)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange declares the events exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
