package ingest

import (
	"context"
	"errors"

	"github.com/openallotment/allotment-core/internal/infrastructure/logging"
	"github.com/openallotment/allotment-core/internal/infrastructure/mqtt"
)

// Subscriber is the slice of the MQTT client the listener needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Listener subscribes to the telemetry topic and feeds messages to the
// processor. The broker delivers at-least-once; processing is idempotent
// enough that redelivery is harmless (activation is conditional, readings
// are append-only duplicates).
type Listener struct {
	client    Subscriber
	processor *Processor
	qos       byte
	logger    *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewListener creates a telemetry listener.
func NewListener(client Subscriber, processor *Processor, qos byte, logger *logging.Logger) *Listener {
	return &Listener{
		client:    client,
		processor: processor,
		qos:       qos,
		logger:    logger,
	}
}

// Start subscribes to sensors/+/data. The context bounds all message
// processing started after this call.
func (l *Listener) Start(ctx context.Context) error {
	l.ctx, l.cancel = context.WithCancel(ctx)

	topic := mqtt.Topics{}.AllSensorData()
	if err := l.client.Subscribe(topic, l.qos, l.handleMessage); err != nil {
		l.cancel()
		return err
	}

	l.logger.Info("telemetry listener started", "topic", topic, "qos", l.qos)
	return nil
}

// Stop unsubscribes and cancels in-flight processing.
func (l *Listener) Stop() error {
	if l.cancel != nil {
		l.cancel()
	}
	return l.client.Unsubscribe(mqtt.Topics{}.AllSensorData())
}

// handleMessage runs once per inbound publication, on paho's handler
// goroutine. Validation rejects are logged and dropped; store failures
// are returned so the wrapper logs them as handler errors.
func (l *Listener) handleMessage(topic string, payload []byte) error {
	topicUID, ok := mqtt.ParseSensorDataTopic(topic)
	if !ok {
		l.logger.Warn("telemetry on unexpected topic", "topic", topic)
		return nil
	}

	msg, err := ParseMessage(payload)
	if err != nil {
		l.logger.Warn("dropping telemetry message", "topic", topic, "error", err)
		return nil
	}

	// The payload UID is authoritative; a mismatch with the topic
	// segment means a misbehaving publisher and is worth a log line.
	if msg.DeviceUID != topicUID {
		l.logger.Warn("payload uid disagrees with topic",
			"topic_uid", topicUID,
			"payload_uid", msg.DeviceUID,
		)
	}

	_, err = l.processor.Process(l.ctx, msg)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnprovisionedDevice), errors.Is(err, ErrUnknownDevice):
		l.logger.Warn("dropping telemetry message", "topic", topic, "error", err)
		return nil
	default:
		return err
	}
}
