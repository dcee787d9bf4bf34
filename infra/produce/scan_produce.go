package produce

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ScanTaskQueue      = "scan.tasks"
	ScanExchange       = "scan.exchange"
	ScanTaskRoutingKey = "scan.execute"
)

// ScanTaskMessage references a queued scan row. The parameters are carried
// in the message so the worker does not re-read mutable submission state.
type ScanTaskMessage struct {
	ScanID         string   `json:"scan_id"`
	Targets        []string `json:"targets"`
	Profile        string   `json:"profile"`
	Ports          *string  `json:"ports,omitempty"`
	TimingTemplate string   `json:"timing_template"`
	CallbackURL    *string  `json:"callback_url,omitempty"`
	Timestamp      int64    `json:"timestamp"`
}

// ScanProduceService publishes scan tasks to the durable scan queue.
type ScanProduceService struct {
	channel *amqp.Channel
}

func InitScanProduceService(channel *amqp.Channel) *ScanProduceService {
	service := &ScanProduceService{
		channel: channel,
	}

	err := channel.ExchangeDeclare(
		ScanExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Scan exchange: " + err.Error())
	}

	_, err = channel.QueueDeclare(
		ScanTaskQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic("Failed to declare Scan task queue: " + err.Error())
	}

	err = channel.QueueBind(
		ScanTaskQueue,
		ScanTaskRoutingKey,
		ScanExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind Scan task queue: " + err.Error())
	}

	return service
}

// PublishScanTask enqueues one scan for execution. Messages are persistent;
// delivery is at-least-once and the worker compensates with its idempotent
// state transition.
func (s *ScanProduceService) PublishScanTask(ctx context.Context, msg ScanTaskMessage) error {
	msg.Timestamp = time.Now().Unix()

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		ScanExchange,
		ScanTaskRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
