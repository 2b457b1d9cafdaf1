package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"logitrack/pkg/logger"
)

// KafkaPublisher buffers messages in an inbox drained by one goroutine.
// Messages are keyed by order id so one order's events stay ordered.
type KafkaPublisher struct {
	w        messageWriter
	mu       sync.RWMutex
	closed   bool
	inbox    chan kafka.Message
	closeCh  chan struct{}
	producer string
	log      logger.ILogger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaPublisher(brokers []string, topic, producer string, buf int, log logger.ILogger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, producer, buf, log)
}

func newKafkaPublisher(w messageWriter, producer string, buf int, log logger.ILogger) *KafkaPublisher {
	if buf <= 0 {
		buf = 1
	}
	return &KafkaPublisher{
		w:        w,
		inbox:    make(chan kafka.Message, buf),
		closeCh:  make(chan struct{}),
		producer: producer,
		log:      log,
	}
}

func (p *KafkaPublisher) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			if err := p.w.WriteMessages(context.Background(), m); err != nil {
				p.log.Error("failed to write event", logger.String("key", string(m.Key)), logger.Error(err))
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Error("failed to close kafka writer", logger.Error(err))
		}
	}()
}

func (p *KafkaPublisher) Publish(_ context.Context, eventType, orderID string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("failed to encode event payload", logger.String("event", eventType), logger.Error(err))
		return
	}
	value, err := json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.producer,
		CorrelationID: orderID,
		Payload:       body,
	})
	if err != nil {
		p.log.Error("failed to encode event", logger.String("event", eventType), logger.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(orderID),
		Value: value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(eventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warning("publisher closed, dropping event",
			logger.String("event", eventType), logger.String("order_id", orderID))
		return
	}
	select {
	case p.inbox <- msg:
	default:
		p.log.Warning("event inbox full, dropping event",
			logger.String("event", eventType), logger.String("order_id", orderID))
	}
}

// Close stops accepting events; the goroutine flushes the rest and exits.
// Events published afterwards are dropped.
func (p *KafkaPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

func (p *KafkaPublisher) WaitClosed() { <-p.closeCh }
