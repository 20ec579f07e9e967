package simpleproducer

import (
	"fmt"

	"github.com/streadway/amqp"
)

type Producer struct {
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
}

func New(exchange string, conn *amqp.Connection) *Producer {
	return &Producer{exchange: exchange, conn: conn}
}

func (p *Producer) Connect() error {
	channel, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("cannot open amqp channel, %w", err)
	}

	err = channel.ExchangeDeclare(p.exchange, "fanout", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("cannot declare amqp exchange, %w", err)
	}

	p.channel = channel

	return nil
}

func (p *Producer) Publish(body []byte) error {
	err := p.channel.Publish(p.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("cannot publish amqp message, %w", err)
	}

	return nil
}

func (p *Producer) Close() error {
	if p.channel == nil {
		return nil
	}

	return p.channel.Close()
}
